package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/plastinin/identtracker/internal/domain"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxParallelWaits ограничение одновременных ожиданий в wait
const maxParallelWaits = 8

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		rawParams string
		pairs     []string
		wait      bool
		pf        pollFlags
	)

	cmd := &cobra.Command{
		Use:   "submit FILE_ID ALGORITHM_KEY",
		Short: "Create an identification task",
		Long: `Create an identification task for an uploaded network file.

Examples:
  identctl submit 42 algo-v2
  identctl submit 42 algo-v2 --param top_k=20 --param mode=fast
  identctl submit 42 algo-v2 --params '{"seeds":[1,2]}' --wait --timeout 5m`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid FILE_ID %q: %w", args[0], err)
			}
			params, err := parseParams(rawParams, pairs)
			if err != nil {
				return err
			}

			lifecycle, err := ctx.ensure()
			if err != nil {
				return err
			}

			task, err := lifecycle.Submit(cmd.Context(), domain.Submission{
				FileID:       fileID,
				AlgorithmKey: args[1],
				Params:       params,
			})
			if err != nil {
				return err
			}

			if wait {
				if _, err := lifecycle.PollUntilTerminal(cmd.Context(), task, ctx.preferences(cmd, &pf)); err != nil {
					_ = printTasks(cmd, ctx.flags.json, []domain.TaskSnapshot{task.Snapshot()})
					return err
				}
			}

			snap := task.Snapshot()
			if err := printTasks(cmd, ctx.flags.json, []domain.TaskSnapshot{snap}); err != nil {
				return err
			}
			if wait {
				return outcomeError(snap)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rawParams, "params", "", "Algorithm parameters as a JSON object")
	cmd.Flags().StringArrayVar(&pairs, "param", nil, "Algorithm parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the task reaches a final state")
	addPollFlags(cmd, &pf)

	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status TASK_ID...",
		Short: "Poll the current status of tasks once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lifecycle, err := ctx.ensure()
			if err != nil {
				return err
			}

			snaps := make([]domain.TaskSnapshot, 0, len(args))
			var errs []error
			for _, id := range args {
				task, err := domain.AttachTask(id, time.Now())
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if _, err := lifecycle.Poll(cmd.Context(), task); err != nil {
					errs = append(errs, err)
					continue
				}
				snaps = append(snaps, task.Snapshot())
			}

			if len(snaps) > 0 {
				if err := printTasks(cmd, ctx.flags.json, snaps); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newWaitCommand(ctx *commandContext) *cobra.Command {
	var pf pollFlags

	cmd := &cobra.Command{
		Use:   "wait TASK_ID...",
		Short: "Wait until tasks reach a final state",
		Long: `Poll tasks until each one succeeds, fails, is cancelled or times out.
The timeout is counted from the moment identctl starts waiting.

Examples:
  identctl wait t-1
  identctl wait t-1 t-2 t-3 --interval 2s --timeout 30m`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lifecycle, err := ctx.ensure()
			if err != nil {
				return err
			}
			prefs := ctx.preferences(cmd, &pf)

			snaps := make([]domain.TaskSnapshot, len(args))
			errs := make([]error, len(args))

			var g errgroup.Group
			g.SetLimit(maxParallelWaits)
			for i, id := range args {
				i, id := i, id
				g.Go(func() error {
					task, err := domain.AttachTask(id, time.Now())
					if err != nil {
						errs[i] = err
						return nil
					}
					_, errs[i] = lifecycle.PollUntilTerminal(cmd.Context(), task, prefs)
					snaps[i] = task.Snapshot()
					if errs[i] == nil {
						errs[i] = outcomeError(snaps[i])
					}
					return nil
				})
			}
			_ = g.Wait()

			printed := make([]domain.TaskSnapshot, 0, len(snaps))
			for _, s := range snaps {
				if s.ID != "" {
					printed = append(printed, s)
				}
			}
			if err := printTasks(cmd, ctx.flags.json, printed); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}

	addPollFlags(cmd, &pf)
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel TASK_ID",
		Short: "Cancel a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lifecycle, err := ctx.ensure()
			if err != nil {
				return err
			}

			task, err := domain.AttachTask(args[0], time.Now())
			if err != nil {
				return err
			}
			if _, err := lifecycle.Cancel(cmd.Context(), task); err != nil {
				return err
			}
			return printTasks(cmd, ctx.flags.json, []domain.TaskSnapshot{task.Snapshot()})
		},
	}
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "result TASK_ID",
		Short: "Show the top ranked nodes of a succeeded task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 0 {
				return fmt.Errorf("--top must not be negative")
			}
			lifecycle, err := ctx.ensure()
			if err != nil {
				return err
			}

			task, err := domain.AttachTask(args[0], time.Now())
			if err != nil {
				return err
			}
			// Результат доступен только после подтверждения успеха сервером
			if _, err := lifecycle.Poll(cmd.Context(), task); err != nil {
				return err
			}
			result, err := lifecycle.FetchResult(cmd.Context(), task)
			if err != nil {
				return err
			}
			return printScores(cmd, ctx.flags.json, result, top)
		},
	}

	cmd.Flags().IntVar(&top, "top", domain.DefaultTopK, "Number of nodes to show; 0 shows all")
	return cmd
}

// outcomeError ненулевой код выхода для задач, завершившихся без результата
func outcomeError(s domain.TaskSnapshot) error {
	switch s.State {
	case domain.TaskStateSucceeded:
		return nil
	case domain.TaskStateFailed:
		return fmt.Errorf("task %s failed: %s", s.ID, s.ErrorMessage)
	default:
		return fmt.Errorf("task %s finished in state %s", s.ID, s.State)
	}
}
