package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sheetmill/internal/ipc"
	"sheetmill/internal/queue"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue FILE...",
		Short: "Queue files for conversion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					if client != nil {
						resp, err := client.Enqueue(arg)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Enqueued job %d for %s\n", resp.Job.ID, resp.Job.SourceRef)
						continue
					}
					job, err := store.Enqueue(cmd.Context(), arg)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Enqueued job %d for %s\n", job.ID, job.SourceRef)
				}
				return nil
			})
		},
	}
}
