package cli

import (
	"context"
	"fmt"
	"math"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pomplan/internal/app"
	"pomplan/internal/optimize"
	"pomplan/internal/planner"
)

func newOptimizeCmd() *cobra.Command {
	var budget time.Duration
	cmd := &cobra.Command{
		Use:   "optimize STRATEGY",
		Short: "Shuffle the plan toward a strategy for a fixed time",
		Long:  "Shuffle the plan toward a strategy for a fixed time. Run 'pomplan strategies' for the list.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := optimize.Lookup(args[0])
			if err != nil {
				return err
			}
			if budget <= 0 {
				return fmt.Errorf("--budget must be > 0")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var res optimize.Result[*planner.Schedule]
				err := a.Mutate(ctx, "optimize", "", func(p *planner.Planner) (string, error) {
					res = p.Optimize(strategy, budget)
					return fmt.Sprintf("%s score=%.1f iterations=%d", strategy.Name, res.Score, res.Iterations), nil
				})
				if err != nil {
					return err
				}
				if flagJSON {
					// JSON has no NaN; an unscorable plan reports a null score.
					var score any = res.Score
					if math.IsNaN(res.Score) {
						score = nil
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"strategy":   strategy.Name,
						"score":      score,
						"iterations": res.Iterations,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scored %.1f with %s after trying %d times\n", res.Score, strategy.Name, res.Iterations)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&budget, "budget", 2*time.Second, "How long to search")
	return cmd
}

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List optimization strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := optimize.Strategies()
			if flagJSON {
				type item struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				}
				out := make([]item, 0, len(list))
				for _, s := range list {
					out = append(out, item{s.Name, s.Description})
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Description)
			}
			return tw.Flush()
		},
	}
}

func newRescheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule",
		Short: "Rebuild every slot from now, e.g. after changing the cadence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var unsat []string
				err := a.Mutate(ctx, "reschedule", "", func(p *planner.Planner) (string, error) {
					unsat = p.Reschedule()
					return fmt.Sprintf("slots=%d", len(p.Plan())), nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rescheduled; %d unsatisfied\n", len(unsat))
				return nil
			})
		},
	}
}
