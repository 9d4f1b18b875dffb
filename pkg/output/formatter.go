package output

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/vfgtools/vfg-extract/pkg/cycles"
	"github.com/vfgtools/vfg-extract/pkg/extract"
)

// PrintExtractionReport prints a formatted summary of one extraction run
func PrintExtractionReport(input, output string, vfgNodes, vfgEdges int, model *extract.Model, found []cycles.Cycle) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Println("VFG Extract - Model Report")
	bold.Println("==========================")
	fmt.Printf("Input: %s\n", input)
	fmt.Printf("VFG: %d nodes, %d edges\n", vfgNodes, vfgEdges)

	edges := 0
	for _, n := range model.Nodes() {
		edges += len(n.Lower())
	}
	green.Printf("Model: %d nodes, %d edges\n", model.Len(), edges)
	fmt.Println()

	if len(found) > 0 {
		red.Printf("CYCLES DETECTED: %d\n", len(found))
		for i, c := range found {
			yellow.Printf("  cycle %d (%d nodes):\n", i+1, len(c.Nodes))
			for _, name := range c.Nodes {
				cyan.Printf("    %s\n", name)
			}
		}
		fmt.Println()
	}

	bold.Println("MODEL NODES:")
	for _, n := range model.Nodes() {
		cyan.Printf("  %s(%d)", n.Kind.String(), n.ID)
		fmt.Printf("  %s\n", n.Label)
	}
	fmt.Println()

	green.Printf("Written: %s\n", output)
}
