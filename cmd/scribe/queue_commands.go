package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/queue"
	"scribe/internal/textutil"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueJobsCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sources and their pipeline progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilter(statusFilter)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				sources, err := store.ListSources(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(sources) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(sources))
				for _, source := range sources {
					title := strings.TrimSpace(source.Title)
					if title == "" {
						title = "(untitled)"
					}
					detail := source.Stage
					if source.Status == queue.StatusFailed && source.ProcessingError != "" {
						detail = textutil.Truncate(strings.TrimSpace(source.ProcessingError), 60)
					}
					rows = append(rows, []string{
						strconv.FormatInt(source.ID, 10),
						string(source.SourceType),
						title,
						string(source.Status),
						detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Title", "Status", "Stage"},
					rows,
					0,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Comma-separated status filter (pending, processing, failed, completed)")
	return cmd
}

func newQueueJobsCommand(ctx *commandContext) *cobra.Command {
	var stateFilter string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := parseStateFilter(stateFilter)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				jobs, err := store.ListJobs(cmd.Context(), states...)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						string(job.Type),
						strconv.FormatInt(job.SourceID, 10),
						string(job.State),
						fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
						textutil.Truncate(strings.TrimSpace(job.LastError), 60),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Source", "State", "Attempts", "Last Error"},
					rows,
					0, 2, 4,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&stateFilter, "state", "s", "", "Comma-separated state filter (queued, running, done, failed)")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [source-id ...]",
		Short: "Requeue failed sources for another attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				sources, err := store.RetryFailedSources(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				var jobs int64
				if len(ids) == 0 {
					jobs, err = store.RetryFailedJobs(cmd.Context(), 0)
					if err != nil {
						return err
					}
				} else {
					for _, id := range ids {
						count, err := store.RetryFailedJobs(cmd.Context(), id)
						if err != nil {
							return err
						}
						jobs += count
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d sources (%d jobs requeued)\n", sources, jobs)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove sources, jobs, and notes from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.Clear(cmd.Context(), failedOnly)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d sources\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only remove failed sources")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show aggregate queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Sources:    %d\n", health.Sources)
				fmt.Fprintf(out, "Pending:    %d\n", health.Pending)
				fmt.Fprintf(out, "Processing: %d\n", health.Processing)
				fmt.Fprintf(out, "Completed:  %d\n", health.Completed)
				fmt.Fprintf(out, "Failed:     %d\n", health.Failed)
				fmt.Fprintf(out, "Queued jobs: %d\n", health.QueuedJobs)
				return nil
			})
		},
	}
}

func parseStatusFilter(filter string) ([]queue.Status, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	var statuses []queue.Status
	for _, raw := range strings.Split(filter, ",") {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", strings.TrimSpace(raw))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseStateFilter(filter string) ([]queue.JobState, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	known := map[string]queue.JobState{
		"queued":  queue.JobQueued,
		"running": queue.JobRunning,
		"done":    queue.JobDone,
		"failed":  queue.JobFailed,
	}
	var states []queue.JobState
	for _, raw := range strings.Split(filter, ",") {
		state, ok := known[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			return nil, fmt.Errorf("unknown job state %q", strings.TrimSpace(raw))
		}
		states = append(states, state)
	}
	return states, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid source id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
