package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/notes"
	"scribe/internal/queue"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <source-id>",
		Short: "Print the assembled note for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				source, err := store.GetSource(cmd.Context(), id)
				if err != nil {
					return err
				}
				if source == nil {
					return fmt.Errorf("source %d not found", id)
				}

				note, err := notes.NewStore(store.DB()).BySource(cmd.Context(), id)
				if err != nil {
					return err
				}
				if note == nil {
					return fmt.Errorf("no note for source %d yet (status: %s, stage: %s)", id, source.Status, source.Stage)
				}
				fmt.Fprintln(cmd.OutOrStdout(), note.Markdown)
				return nil
			})
		},
	}
}
