package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pomplan/internal/app"
	"pomplan/internal/period"
	"pomplan/internal/planner"
)

type taskFlags struct {
	id       string
	name     string
	start    string
	end      string
	estimate time.Duration
	worked   time.Duration
	priority uint32
	remoteID string
}

func newAddCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a task",
		Long: `Add a task that must be worked on for --estimate somewhere between
--start (default: now) and --end. Higher --priority tasks can take slots
from lower ones when time is short.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				now := time.Now()
				loc := a.Planner().Settings().Location
				start := now
				if f.start != "" {
					var err error
					if start, err = parseWhen(f.start, loc, now); err != nil {
						return fmt.Errorf("--start: %w", err)
					}
				}
				end, err := parseWhen(f.end, loc, now)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				if !end.After(start) {
					return fmt.Errorf("--end must be after --start")
				}
				if f.estimate <= 0 {
					return fmt.Errorf("--estimate must be > 0")
				}

				id := strings.TrimSpace(f.id)
				if id == "" {
					id = uuid.New().String()[:8]
				}
				if _, exists := a.Planner().Task(id); exists {
					return fmt.Errorf("task %s already exists; use edit", id)
				}
				task := planner.Task{
					Name:      args[0],
					Prio:      f.priority,
					Window:    period.New(start, end),
					Estimated: f.estimate,
					RemoteID:  f.remoteID,
				}
				err = a.Mutate(ctx, "add", id, func(p *planner.Planner) (string, error) {
					return task.Name, p.InsertTask(id, task)
				})
				if err != nil {
					return err
				}
				return reportTask(cmd, a, id)
			})
		},
	}
	cmd.Flags().StringVar(&f.id, "id", "", "Task ID (default: random)")
	cmd.Flags().StringVar(&f.start, "start", "", "Earliest time to work on it (default: now)")
	cmd.Flags().StringVar(&f.end, "end", "", "Deadline (RFC3339, \"YYYY-MM-DD HH:MM\", or +duration)")
	cmd.Flags().DurationVar(&f.estimate, "estimate", 0, "Estimated effort, e.g. 2h30m")
	cmd.Flags().Uint32Var(&f.priority, "priority", 0, "Priority; higher wins")
	cmd.Flags().StringVar(&f.remoteID, "remote-id", "", "External tracker ID")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("estimate")
	return cmd
}

func newEditCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "edit TASK",
		Short: "Change a task; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				id, task, err := resolveTask(a.Planner(), args[0])
				if err != nil {
					return err
				}
				now := time.Now()
				loc := a.Planner().Settings().Location
				changed := cmd.Flags().Changed

				if changed("name") {
					task.Name = f.name
				}
				if changed("start") {
					if task.Window.Start, err = parseWhen(f.start, loc, now); err != nil {
						return fmt.Errorf("--start: %w", err)
					}
				}
				if changed("end") {
					if task.Window.End, err = parseWhen(f.end, loc, now); err != nil {
						return fmt.Errorf("--end: %w", err)
					}
				}
				if changed("estimate") {
					task.Estimated = f.estimate
				}
				if changed("worked") {
					task.Worked = f.worked
				}
				if changed("priority") {
					task.Prio = f.priority
				}
				if changed("remote-id") {
					task.RemoteID = f.remoteID
				}

				err = a.Mutate(ctx, "edit", id, func(p *planner.Planner) (string, error) {
					return task.Name, p.InsertTask(id, task)
				})
				if err != nil {
					return err
				}
				return reportTask(cmd, a, id)
			})
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "", "New name")
	cmd.Flags().StringVar(&f.start, "start", "", "New earliest start")
	cmd.Flags().StringVar(&f.end, "end", "", "New deadline")
	cmd.Flags().DurationVar(&f.estimate, "estimate", 0, "New estimated effort")
	cmd.Flags().DurationVar(&f.worked, "worked", 0, "Total effort already spent")
	cmd.Flags().Uint32Var(&f.priority, "priority", 0, "New priority")
	cmd.Flags().StringVar(&f.remoteID, "remote-id", "", "New external tracker ID")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove TASK",
		Aliases: []string{"rm"},
		Short:   "Remove a task and free its slots",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				id, task, err := resolveTask(a.Planner(), args[0])
				if err != nil {
					return err
				}
				err = a.Mutate(ctx, "remove", id, func(p *planner.Planner) (string, error) {
					return task.Name, p.RemoveTask(id)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", task.Name, id)
				return nil
			})
		},
	}
}

func newWorkedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worked TASK DURATION",
		Short: "Log effort spent on a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", args[1], err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				id, task, err := resolveTask(a.Planner(), args[0])
				if err != nil {
					return err
				}
				var remaining time.Duration
				err = a.Mutate(ctx, "worked", id, func(p *planner.Planner) (string, error) {
					var err error
					remaining, err = p.LogWork(id, d)
					return d.String(), err
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s remaining\n", task.Name, remaining)
				return nil
			})
		},
	}
}

type taskReport struct {
	ID        string        `json:"id"`
	Task      planner.Task  `json:"task"`
	Slots     int           `json:"slots"`
	Remaining time.Duration `json:"remaining"`
	Satisfied bool          `json:"satisfied"`
}

func buildReport(p *planner.Planner, id string) taskReport {
	t, _ := p.Task(id)
	return taskReport{
		ID:        id,
		Task:      t,
		Slots:     p.Occupancy()[id],
		Remaining: t.Remaining(),
		Satisfied: !slices.Contains(p.Unsatisfied(), id),
	}
}

func reportTask(cmd *cobra.Command, a *app.App, id string) error {
	r := buildReport(a.Planner(), id)
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), r)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s  %s  %d slots", r.ID, r.Task.Name, r.Slots)
	if !r.Satisfied {
		fmt.Fprint(w, "  (not enough time before the deadline)")
	}
	fmt.Fprintln(w)
	return nil
}
