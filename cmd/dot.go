package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/greta/model"
)

func newDotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dot",
		Short: "Write the compiled model as a graphviz digraph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return DotOutput(sp)
		},
	}
}

// node styles by kind
var dotStyles = map[string]string{
	"data":              "shape=box, style=filled, fillcolor=lightgrey",
	"variable":          "shape=circle",
	"operation":         "shape=diamond",
	"distribution":      "shape=box, style=filled, fillcolor=lightgrey",
	"distribution node": "shape=ellipse, style=dashed",
}

func dotQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// writeDot renders a model description in the graphviz language
func writeDot(w io.Writer, desc *model.Description) error {
	var b strings.Builder

	fmt.Fprintf(&b, "digraph %s {\n", dotQuote(desc.Name))
	for _, n := range desc.Nodes {
		label := n.Label
		if len(n.Detail) > 0 {
			label += "\\n" + n.Detail
		}
		if !n.Shape.IsScalar() {
			label += "\\n" + n.Shape.String()
		}
		style := dotStyles[n.Kind]
		if n.Target {
			style += ", penwidth=2"
		}
		fmt.Fprintf(&b, "    %s [label=%s, %s];\n", n.ID, dotQuote(label), style)
	}
	for _, e := range desc.Edges {
		if e.Role == "distribution" {
			fmt.Fprintf(&b, "    %s -> %s [style=dashed];\n", e.From, e.To)
		} else {
			fmt.Fprintf(&b, "    %s -> %s;\n", e.From, e.To)
		}
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// DotOutput reads a given model and outputs a graphviz description
func DotOutput(sp *startupParams) error {
	mod, err := loadModel(sp)
	if err != nil {
		return err
	}
	desc := mod.Describe()

	if len(sp.traceFile) < 1 {
		return writeDot(sp.out.Writer(), desc)
	}

	sp.logger.Info("writing model graph", "file", sp.traceFile)
	f, err := os.Create(sp.traceFile)
	if err != nil {
		return errors.Wrapf(err, "Could not CREATE dot file %s", sp.traceFile)
	}
	if err := writeDot(f, desc); err != nil {
		f.Close()
		return errors.Wrapf(err, "Could not WRITE dot file %s", sp.traceFile)
	}
	return f.Close()
}
