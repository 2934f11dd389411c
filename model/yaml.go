package model

import (
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/CraigKelly/greta/autodiff"
	"github.com/CraigKelly/greta/dist"
)

// YAMLReader reads models written as a list of named nodes, for example
//
//	targets: [mu, sigma]
//	nodes:
//	  - name: y
//	    data: [4.8, 5.3, 5.1]
//	  - name: mu
//	    distribution: {family: normal, params: [0, 10]}
//	  - name: sigma
//	    variable: {lower: 0}
//	  - observe: y
//	    distribution: {family: normal, params: [mu, sigma], dim: [3]}
//
// Operands and parameters are node names or numbers. Data may be inline
// (a number, a list or a list of rows) or a file holding the row and column
// counts followed by the values row by row. Index positions are 0-based.
type YAMLReader struct {
	Dir string // data files are relative to this directory
}

type yamlModel struct {
	Targets []string   `yaml:"targets"`
	Nodes   []yamlNode `yaml:"nodes"`
}

type yamlNode struct {
	Name         string        `yaml:"name"`
	Data         interface{}   `yaml:"data"`
	File         string        `yaml:"file"`
	Variable     *yamlVariable `yaml:"variable"`
	Op           *yamlOp       `yaml:"op"`
	Distribution *yamlDist     `yaml:"distribution"`
	Observe      string        `yaml:"observe"`
}

type yamlVariable struct {
	Lower interface{} `yaml:"lower"`
	Upper interface{} `yaml:"upper"`
	Dim   []int       `yaml:"dim"`
}

type yamlOp struct {
	Kind  string        `yaml:"kind"`
	Args  []interface{} `yaml:"args"`
	Power float64       `yaml:"power"`
	Rows  []int         `yaml:"rows"`
	Cols  []int         `yaml:"cols"`
}

type yamlDist struct {
	Family string        `yaml:"family"`
	Params []interface{} `yaml:"params"`
	Dim    []int         `yaml:"dim"`
}

// ReadModel implements the model.Reader interface
func (r YAMLReader) ReadModel(data []byte) (*Graph, []*Array, error) {
	var doc yamlModel
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, errors.Wrapf(err, "Invalid model YAML")
	}
	if len(doc.Nodes) < 1 {
		return nil, nil, errors.Errorf("Model has no nodes")
	}

	g := NewGraph()
	for i, n := range doc.Nodes {
		a, err := r.readNode(g, &n)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Node %d (%s)", i+1, n.Name)
		}
		if n.Name != "" {
			if _, err := g.Assign(n.Name, a); err != nil {
				return nil, nil, err
			}
		}
	}

	var targets []*Array
	for _, name := range doc.Targets {
		a, ok := g.Lookup(name)
		if !ok {
			return nil, nil, errors.Errorf("Unknown target %s", name)
		}
		targets = append(targets, a)
	}
	return g, targets, nil
}

func (r YAMLReader) readNode(g *Graph, n *yamlNode) (*Array, error) {
	switch {
	case n.Observe != "":
		if n.Distribution == nil {
			return nil, errors.Errorf("observe %s needs a distribution", n.Observe)
		}
		target, ok := g.Lookup(n.Observe)
		if !ok {
			return nil, errors.Errorf("Unknown node %s", n.Observe)
		}
		d, err := r.readDist(g, n.Distribution)
		if err != nil {
			return nil, err
		}
		if err := g.SetDistribution(target, d); err != nil {
			return nil, err
		}
		return target, nil

	case n.Distribution != nil:
		d, err := r.readDist(g, n.Distribution)
		if err != nil {
			return nil, err
		}
		return d.NewVariable()

	case n.Variable != nil:
		lower, err := yamlValue(n.Variable.Lower)
		if err != nil {
			return nil, err
		}
		upper, err := yamlValue(n.Variable.Upper)
		if err != nil {
			return nil, err
		}
		return g.Variable(lower, upper, n.Variable.Dim...)

	case n.Op != nil:
		return r.readOp(g, n.Op)

	case n.File != "":
		m, err := r.readDataFile(n.File)
		if err != nil {
			return nil, err
		}
		return g.Data(m)

	case n.Data != nil:
		v, err := yamlValue(n.Data)
		if err != nil {
			return nil, err
		}
		return g.Data(v)
	}
	return nil, errors.Errorf("Node needs one of data, file, variable, op or distribution")
}

func (r YAMLReader) readDist(g *Graph, yd *yamlDist) (*Distribution, error) {
	f, err := dist.Lookup(yd.Family)
	if err != nil {
		return nil, err
	}
	params, err := operands(g, yd.Params)
	if err != nil {
		return nil, err
	}
	return g.NewDistribution(f, params, yd.Dim...)
}

func lookupOp(name string) (OpKind, bool) {
	name = strings.TrimSpace(name)
	for k, s := range opNames {
		if strings.EqualFold(s, name) {
			return OpKind(k), true
		}
	}
	return 0, false
}

func (r YAMLReader) readOp(g *Graph, yo *yamlOp) (*Array, error) {
	k, ok := lookupOp(yo.Kind)
	if !ok {
		return nil, errors.Errorf("Unknown operation %q", yo.Kind)
	}
	args, err := operands(g, yo.Args)
	if err != nil {
		return nil, err
	}

	want := 1
	switch k {
	case OpAdd, OpSub, OpMul, OpDiv, OpMatMul:
		want = 2
	case OpCbind, OpRbind:
		want = len(args)
		if want < 1 {
			want = 1
		}
	}
	if len(args) != want {
		return nil, errors.Errorf("%s takes %d arguments, got %d", k, want, len(args))
	}

	switch k {
	case OpAdd:
		return g.Add(args[0], args[1])
	case OpSub:
		return g.Sub(args[0], args[1])
	case OpMul:
		return g.Mul(args[0], args[1])
	case OpDiv:
		return g.Div(args[0], args[1])
	case OpMatMul:
		return g.MatMul(args[0], args[1])
	case OpNeg:
		return g.Neg(args[0])
	case OpPow:
		return g.Pow(args[0], yo.Power)
	case OpTranspose:
		return g.Transpose(args[0])
	case OpExp:
		return g.Exp(args[0])
	case OpLog:
		return g.Log(args[0])
	case OpSqrt:
		return g.Sqrt(args[0])
	case OpIlogit:
		return g.Ilogit(args[0])
	case OpSum:
		return g.Sum(args[0])
	case OpMean:
		return g.Mean(args[0])
	case OpRowSums:
		return g.RowSums(args[0])
	case OpColSums:
		return g.ColSums(args[0])
	case OpIndex:
		return g.Index(args[0], yo.Rows, yo.Cols)
	case OpCbind:
		return g.Cbind(args...)
	case OpRbind:
		return g.Rbind(args...)
	}
	return nil, errors.Errorf("Unsupported operation %s", k)
}

// operands resolves names to arrays and converts numbers
func operands(g *Graph, raw []interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(raw))
	for i, v := range raw {
		if name, ok := v.(string); ok {
			a, found := g.Lookup(name)
			if !found {
				return nil, errors.Errorf("Unknown node %s", name)
			}
			out[i] = a
			continue
		}
		x, err := yamlValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func yamlNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// yamlValue converts a decoded number, list or list of lists (nil passes
// through)
func yamlValue(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if x, ok := yamlNumber(v); ok {
		return x, nil
	}
	list, ok := v.([]interface{})
	if !ok || len(list) < 1 {
		return nil, errors.Wrapf(ErrDataValidation, "Expected a number or a non-empty list, got %v", v)
	}

	if _, nested := list[0].([]interface{}); !nested {
		vec := make([]float64, len(list))
		for i, e := range list {
			x, ok := yamlNumber(e)
			if !ok {
				return nil, errors.Wrapf(ErrDataValidation, "Non-numeric element %v", e)
			}
			vec[i] = x
		}
		return vec, nil
	}

	rows := make([][]float64, len(list))
	for i, e := range list {
		row, err := yamlValue(e)
		if err != nil {
			return nil, err
		}
		vec, ok := row.([]float64)
		if !ok {
			return nil, errors.Wrapf(ErrDataValidation, "Row %d is not a list of numbers", i+1)
		}
		rows[i] = vec
	}
	return rows, nil
}

func (r YAMLReader) readDataFile(name string) (*autodiff.Matrix, error) {
	if !filepath.IsAbs(name) && r.Dir != "" {
		name = filepath.Join(r.Dir, name)
	}
	data, err := ioutil.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ data from %s", name)
	}
	return ReadMatrix(string(data))
}
