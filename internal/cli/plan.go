package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pomplan/internal/app"
	"pomplan/internal/planner"
)

func newViewCmd() *cobra.Command {
	var (
		task  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "view",
		Short: "List the plan slot by slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p := a.Planner()
				entries := p.Plan()
				if task != "" {
					id, _, err := resolveTask(p, task)
					if err != nil {
						return err
					}
					entries = slices.DeleteFunc(entries, func(e planner.PlanEntry) bool { return e.TaskID != id })
				}
				if limit > 0 && len(entries) > limit {
					entries = entries[:limit]
				}
				if flagJSON {
					return printJSON(cmd.OutOrStdout(), entries)
				}

				loc := p.Settings().Location
				if loc == nil {
					loc = time.Local
				}
				tasks := p.Tasks()
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tIN\tSTATE\tTASK")
				for _, e := range entries {
					state := "-"
					if e.State != nil {
						state = e.State.String()
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						e.At.In(loc).Format("Mon Jan 02 15:04"),
						humanize.Time(e.At),
						state,
						taskName(tasks, e.TaskID),
					)
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				if unsat := p.Unsatisfied(); len(unsat) > 0 {
					names := make([]string, 0, len(unsat))
					for _, id := range unsat {
						names = append(names, taskName(tasks, id))
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Unsatisfied: %s\n", strings.Join(names, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "Only slots held by this task")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many slots")
	return cmd
}

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List tasks with their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p := a.Planner()
				ids := make([]string, 0)
				for id := range p.Tasks() {
					ids = append(ids, id)
				}
				slices.Sort(ids)
				reports := make([]taskReport, 0, len(ids))
				for _, id := range ids {
					reports = append(reports, buildReport(p, id))
				}
				if flagJSON {
					return printJSON(cmd.OutOrStdout(), reports)
				}
				if len(reports) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tPRIO\tDUE\tREMAINING\tSLOTS\tOK")
				for _, r := range reports {
					ok := "yes"
					if !r.Satisfied {
						ok = "NO"
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
						r.ID, r.Task.Name, r.Task.Prio, humanize.Time(r.Task.Window.End), r.Remaining, r.Slots, ok)
				}
				return tw.Flush()
			})
		},
	}
}

func newNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Show what should be happening right now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p := a.Planner()
				cur, ok := p.Current(time.Now())
				if flagJSON {
					if !ok {
						return printJSON(cmd.OutOrStdout(), nil)
					}
					return printJSON(cmd.OutOrStdout(), cur)
				}
				w := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintln(w, "Outside the active period.")
					return nil
				}
				fmt.Fprintf(w, "%s until %s", cur.Entry.State, cur.Entry.Interval.End.Format("15:04"))
				if cur.Entry.State.IsWork() {
					fmt.Fprintf(w, ": %s", taskName(p.Tasks(), cur.TaskID))
				}
				fmt.Fprintln(w)
				return nil
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent plan changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				entries, err := a.History(ctx, limit)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(cmd.OutOrStdout(), entries)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tACTION\tTASK\tDETAIL\tUNSATISFIED")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", humanize.Time(e.At), e.Action, e.TaskID, e.Detail, e.Unsatisfied)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries")
	return cmd
}
