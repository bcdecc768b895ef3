package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sheetmill/internal/ipc"
	"sheetmill/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the conversion queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueDescribeCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueClearCompletedCommand(ctx))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))
	queueCmd.AddCommand(newQueueRecoverCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueDBHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var jobs []ipc.Job
				if client != nil {
					resp, err := client.QueueList(listStatuses)
					if err != nil {
						return err
					}
					jobs = resp.Jobs
				} else {
					var statuses []queue.Status
					for _, raw := range listStatuses {
						if parsed, ok := queue.ParseStatus(raw); ok {
							statuses = append(statuses, parsed)
						}
					}
					listed, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					jobs = ipc.FromJobs(listed)
				}

				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Source", "Status", "Created", "Output"},
					buildJobListRows(jobs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newQueueDescribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "describe ID",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			id := ids[0]
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var job ipc.Job
				if client != nil {
					resp, err := client.QueueDescribe(id)
					if err != nil {
						return err
					}
					job = resp.Job
				} else {
					found, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if found == nil {
						return fmt.Errorf("job %d not found", id)
					}
					job = ipc.FromJob(found)
				}
				printJobDetail(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var health queue.HealthSummary
				if client != nil {
					resp, err := client.QueueHealth()
					if err != nil {
						return err
					}
					health = queue.HealthSummary{
						Total:   resp.Total,
						Pending: resp.Pending,
						Running: resp.Running,
						Ready:   resp.Ready,
						Failed:  resp.Failed,
					}
				} else {
					var err error
					health, err = store.Health(cmd.Context())
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nPending: %d\nRunning: %d\nReady: %d\nFailed: %d\n",
					health.Total, health.Pending, health.Running, health.Ready, health.Failed)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var removed int64
				if client != nil {
					resp, err := client.QueueClear()
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					var err error
					removed, err = store.Clear(cmd.Context())
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d jobs\n", removed)
				return nil
			})
		},
	}
}

func newQueueClearCompletedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove converted jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var removed int64
				if client != nil {
					resp, err := client.QueueClearCompleted()
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					var err error
					removed, err = store.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d converted jobs\n", removed)
				return nil
			})
		},
	}
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var removed int64
				if client != nil {
					resp, err := client.QueueClearFailed()
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					var err error
					removed, err = store.ClearFailed(cmd.Context())
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed jobs\n", removed)
				return nil
			})
		},
	}
}

func newQueueRecoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Return orphaned running jobs to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var updated int64
				if client != nil {
					resp, err := client.QueueRecover()
					if err != nil {
						return err
					}
					updated = resp.Updated
				} else {
					var err error
					updated, err = store.RecoverStale(cmd.Context())
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Returned %d running jobs to pending\n", updated)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [ID...]",
		Short: "Re-queue failed jobs as fresh pending rows",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					updated, err := retryJobs(cmd, client, store, nil)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Re-queued %d failed jobs\n", updated)
					return nil
				}

				byID, err := jobsByID(cmd, client, store)
				if err != nil {
					return err
				}
				for _, id := range ids {
					job, ok := byID[id]
					if !ok {
						fmt.Fprintf(out, "Job %d not found\n", id)
						continue
					}
					if job.Status != string(queue.StatusFailed) {
						fmt.Fprintf(out, "Job %d is not in failed state\n", id)
						continue
					}
					updated, err := retryJobs(cmd, client, store, []int64{id})
					if err != nil {
						return err
					}
					if updated > 0 {
						fmt.Fprintf(out, "Job %d re-queued\n", id)
					} else {
						fmt.Fprintf(out, "Job %d is not in failed state\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueDBHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "db-health",
		Short: "Check job database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var health queue.DatabaseHealth
				if client != nil {
					resp, err := client.DatabaseHealth()
					if err != nil {
						return err
					}
					health = queue.DatabaseHealth{
						DBPath:           resp.DBPath,
						DatabaseExists:   resp.DatabaseExists,
						DatabaseReadable: resp.DatabaseReadable,
						TableExists:      resp.TableExists,
						ColumnsPresent:   resp.ColumnsPresent,
						MissingColumns:   resp.MissingColumns,
						IntegrityCheck:   resp.IntegrityCheck,
						TotalJobs:        resp.TotalJobs,
						Error:            resp.Error,
					}
				} else {
					var err error
					health, err = store.CheckHealth(cmd.Context())
					if err != nil {
						return err
					}
				}
				printDatabaseHealth(cmd.OutOrStdout(), health)
				return nil
			})
		},
	}
}

// retryJobs re-queues failed jobs through whichever backend is available.
// A nil id list retries every failed job.
func retryJobs(cmd *cobra.Command, client *ipc.Client, store *queue.Store, ids []int64) (int64, error) {
	if client != nil {
		resp, err := client.QueueRetry(ids)
		if err != nil {
			return 0, err
		}
		return resp.Updated, nil
	}
	return store.RetryFailed(cmd.Context(), ids...)
}

func jobsByID(cmd *cobra.Command, client *ipc.Client, store *queue.Store) (map[int64]ipc.Job, error) {
	var jobs []ipc.Job
	if client != nil {
		resp, err := client.QueueList(nil)
		if err != nil {
			return nil, err
		}
		jobs = resp.Jobs
	} else {
		listed, err := store.List(cmd.Context())
		if err != nil {
			return nil, err
		}
		jobs = ipc.FromJobs(listed)
	}

	byID := make(map[int64]ipc.Job, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
	}
	return byID, nil
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJobDetail(out io.Writer, job ipc.Job) {
	fmt.Fprintf(out, "ID: %d\n", job.ID)
	fmt.Fprintf(out, "Source: %s\n", job.SourceRef)
	fmt.Fprintf(out, "Status: %s\n", formatStatusLabel(job.Status))
	fmt.Fprintf(out, "Created: %s\n", formatDisplayTime(job.CreatedAt))
	if job.StartedAt != "" {
		fmt.Fprintf(out, "Started: %s\n", formatDisplayTime(job.StartedAt))
	}
	if job.FinishedAt != "" {
		fmt.Fprintf(out, "Finished: %s\n", formatDisplayTime(job.FinishedAt))
	}
	if job.OutputRef != "" {
		fmt.Fprintf(out, "Output: %s\n", job.OutputRef)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", job.ErrorMessage)
	}
}

func printDatabaseHealth(out io.Writer, health queue.DatabaseHealth) {
	fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
	fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
	fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
	fmt.Fprintf(out, "conversion_jobs table present: %s\n", yesNo(health.TableExists))
	if len(health.ColumnsPresent) > 0 {
		cols := append([]string(nil), health.ColumnsPresent...)
		sort.Strings(cols)
		fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
	}
	if len(health.MissingColumns) > 0 {
		missing := append([]string(nil), health.MissingColumns...)
		sort.Strings(missing)
		fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
	} else {
		fmt.Fprintln(out, "Missing columns: none")
	}
	fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
	fmt.Fprintf(out, "Total jobs: %d\n", health.TotalJobs)
	if health.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", health.Error)
	}
}
