package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"errdeltas/internal/project"
)

var graphCmd = &cobra.Command{
	Use:   "graph <dir>",
	Short: "Print the project graph of a checked out repository as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		g, err := project.Discover(args[0])
		if err != nil {
			return fmt.Errorf("discover %s: %w", args[0], err)
		}
		if g.HasError() {
			for _, d := range g.Errored() {
				fmt.Fprintf(cmd.ErrOrStderr(), "graph: %s: %s\n", g.Rel(d.Path), d.Status)
			}
		}

		order, _ := cmd.Flags().GetBool("build-order")
		var payload any = g.View()
		if order {
			plan := g.BuildOrder()
			payload = struct {
				Graph   project.GraphView `json:"graph"`
				Configs []string          `json:"buildOrder"`
				Scripts []string          `json:"scripts"`
				Cyclic  []string          `json:"cyclic"`
			}{
				Graph:   g.View(),
				Configs: relPaths(g, plan.Configs),
				Scripts: relPaths(g, plan.Scripts),
				Cyclic:  relPaths(g, plan.Cyclic),
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	},
}

func init() {
	graphCmd.Flags().Bool("build-order", false, "include the order projects would be built in")
}

func relPaths(g *project.Graph, ds []*project.Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, g.Rel(d.Path))
	}
	return out
}
