package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts, stage readiness, and external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(func(cfg *config.Config, env *pipeline.Env) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				health, err := env.Store.Health(cmd.Context())
				if err != nil {
					return err
				}
				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Sources", statusInfo, fmt.Sprintf("%d total", health.Sources), colorize))
				fmt.Fprintln(out, renderStatusLine("Pending", statusInfo, fmt.Sprintf("%d", health.Pending), colorize))
				fmt.Fprintln(out, renderStatusLine("Processing", statusInfo, fmt.Sprintf("%d", health.Processing), colorize))
				fmt.Fprintln(out, renderStatusLine("Completed", statusOK, fmt.Sprintf("%d", health.Completed), colorize))
				failedKind := statusOK
				if health.Failed > 0 {
					failedKind = statusError
				}
				fmt.Fprintln(out, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d", health.Failed), colorize))
				fmt.Fprintln(out, renderStatusLine("Queued jobs", statusInfo, fmt.Sprintf("%d", health.QueuedJobs), colorize))

				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Stages", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, jobType := range sortedJobTypes(env) {
					stageHealth := env.Handlers()[jobType].HealthCheck(cmd.Context())
					if stageHealth.Ready {
						fmt.Fprintln(out, renderStatusLine(string(jobType), statusOK, "", colorize))
					} else {
						fmt.Fprintln(out, renderStatusLine(string(jobType), statusWarn, stageHealth.Detail, colorize))
					}
				}

				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
					if status.Available {
						fmt.Fprintln(out, renderStatusLine(status.Name, statusOK, status.Command, colorize))
						continue
					}
					kind := statusError
					if status.Optional {
						kind = statusWarn
					}
					fmt.Fprintln(out, renderStatusLine(status.Name, kind, status.Detail, colorize))
				}
				return nil
			})
		},
	}
}

func sortedJobTypes(env *pipeline.Env) []queue.JobType {
	handlers := env.Handlers()
	jobTypes := make([]queue.JobType, 0, len(handlers))
	for jobType := range handlers {
		jobTypes = append(jobTypes, jobType)
	}
	sort.Slice(jobTypes, func(i, j int) bool { return jobTypes[i] < jobTypes[j] })
	return jobTypes
}
