package main

import (
	"fmt"

	"capsolve/internal/world"

	"github.com/spf13/cobra"
)

func (a *app) candidatesCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "candidates [world]",
		Short: "List the candidates assembled for one goal",
		Long: `Assembles and evaluates the candidates of one goal without merging them, then
prints the merged outcome. Useful to see why a goal is ambiguous.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, specs, s, err := a.loadWorld(a.worldPath(args))
			if err != nil {
				return err
			}
			selected, err := selectGoals(specs, []string{name})
			if err != nil {
				return err
			}
			res := solveGoal(s, selected[0], true)
			renderResults(cmd.OutOrStdout(), []goalResult{res}, true)
			if res.Err != nil {
				return fmt.Errorf("goal %q: %w", name, res.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "goal", "g", "", "Goal to inspect")
	_ = cmd.MarkFlagRequired("goal")
	_ = cmd.RegisterFlagCompletionFunc("goal", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		f, err := world.ReadFile(args[0])
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return goalNames(f.Goals), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// goalNames lists the goals of a world file for shell completion.
func goalNames(specs []world.GoalSpec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}
