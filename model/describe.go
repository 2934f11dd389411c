package model

import (
	"fmt"

	"github.com/CraigKelly/greta/shape"
)

// NodeInfo describes one node of a compiled model for display
type NodeInfo struct {
	ID     string
	Label  string
	Kind   string
	Shape  shape.Shape
	Detail string // operation, family or transform
	Target bool
}

// EdgeInfo is a directed edge between two NodeInfo IDs
type EdgeInfo struct {
	From string
	To   string
	Role string // operand, parameter or distribution
}

// Description is the structure of a compiled model, ready to be rendered
type Description struct {
	Name  string
	Nodes []NodeInfo
	Edges []EdgeInfo
}

func arrayID(a *Array) string {
	return fmt.Sprintf("a%d", a.id)
}

func distID(d *Distribution) string {
	return fmt.Sprintf("d%d", d.id)
}

// Describe lists arrays in dependency order followed by distributions, with
// edges running from inputs to the nodes that use them
func (m *Model) Describe() *Description {
	desc := &Description{Name: m.Name}

	targets := make(map[*Array]bool, len(m.targets))
	for _, t := range m.targets {
		targets[t] = true
	}
	transforms := make(map[*Array]transform, len(m.free))
	for _, fp := range m.free {
		transforms[fp.array] = fp.tr
	}

	for _, a := range m.order {
		info := NodeInfo{
			ID:     arrayID(a),
			Label:  a.Label(),
			Kind:   a.Kind().String(),
			Shape:  a.shape,
			Target: targets[a],
		}
		switch a.kind {
		case Operation:
			info.Detail = a.op.Kind.String()
			for _, o := range a.op.Operands {
				desc.Edges = append(desc.Edges, EdgeInfo{From: arrayID(o), To: info.ID, Role: "operand"})
			}
		case Variable:
			info.Detail = transforms[a].kind.String()
		}
		desc.Nodes = append(desc.Nodes, info)
	}

	for _, bd := range m.dists {
		detail := bd.family.String()
		if bd.truncLower != nil {
			detail += " (truncated)"
		}
		id := distID(bd.dist)
		desc.Nodes = append(desc.Nodes, NodeInfo{
			ID:     id,
			Label:  bd.dist.Label(),
			Kind:   "distribution node",
			Shape:  bd.dist.dim,
			Detail: detail,
		})
		for _, p := range bd.params {
			desc.Edges = append(desc.Edges, EdgeInfo{From: arrayID(p), To: id, Role: "parameter"})
		}
		desc.Edges = append(desc.Edges, EdgeInfo{From: id, To: arrayID(bd.value), Role: "distribution"})
	}

	return desc
}
