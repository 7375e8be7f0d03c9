package main

import (
	"fmt"
	"sort"

	"capsolve/internal/mangle"
	"capsolve/internal/world"

	"github.com/spf13/cobra"
)

func (a *app) factsCmd() *cobra.Command {
	var statsOnly bool

	cmd := &cobra.Command{
		Use:   "facts [world] [predicate]",
		Short: "Dump the relation store of a world",
		Long: `Prints the facts the world derived from its declarations. With a predicate, only
that relation is printed. Known predicates: capability, impl, supercap, super_reach.`,
		Args: cobra.MaximumNArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 1 {
				return world.WorldPredicates, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveDefault
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, _, err := a.loadWorld(a.worldPath(args))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if statsOnly {
				renderStats(cmd, w.Stats())
				return nil
			}

			var facts []mangle.Fact
			if len(args) == 2 {
				facts, err = w.FactsFor(args[1])
				if err != nil {
					return err
				}
				sort.Slice(facts, func(i, j int) bool { return facts[i].String() < facts[j].String() })
			} else {
				facts = w.Facts()
			}
			for _, f := range facts {
				fmt.Fprintln(out, f.String())
			}
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d facts", len(facts))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&statsOnly, "stats", false, "Only print per-predicate counts")
	return cmd
}

func renderStats(cmd *cobra.Command, stats mangle.Stats) {
	out := cmd.OutOrStdout()
	preds := make([]string, 0, len(stats.PredicateCounts))
	for p := range stats.PredicateCounts {
		preds = append(preds, p)
	}
	sort.Strings(preds)
	for _, p := range preds {
		fmt.Fprintf(out, "%-12s %d\n", p, stats.PredicateCounts[p])
	}
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%-12s %d", "total", stats.TotalFacts)))
}
