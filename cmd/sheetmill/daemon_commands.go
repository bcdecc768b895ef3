package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sheetmill/internal/daemonrun"
	"sheetmill/internal/ipc"
	"sheetmill/internal/queue"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var logLevel string
	var development bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Run the sheetmill daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	startCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	startCmd.Flags().BoolVar(&development, "development", false, "Include source locations in log output")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the sheetmill daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			socket := ctx.socketPath()
			client, err := ipc.Dial(socket)
			if err != nil {
				if isDaemonDown(err) {
					fmt.Fprintln(stdout, "Daemon is not running")
					return nil
				}
				return wrapDialError(err, socket)
			}
			defer client.Close()

			resp, err := client.Stop()
			if err != nil {
				return err
			}
			if resp.Stopped {
				fmt.Fprintln(stdout, "Daemon stopped")
			} else {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				var stats map[string]int
				if client != nil {
					resp, err := client.Status()
					if err != nil {
						return err
					}
					for _, line := range renderSectionHeader("Daemon", colorize) {
						fmt.Fprintln(stdout, line)
					}
					for _, line := range daemonStatusLines(resp, colorize) {
						fmt.Fprintln(stdout, line)
					}
					fmt.Fprintln(stdout)
					for _, line := range renderSectionHeader("Worker", colorize) {
						fmt.Fprintln(stdout, line)
					}
					for _, line := range workerStatusLines(resp, colorize) {
						fmt.Fprintln(stdout, line)
					}
					stats = resp.QueueStats
				} else {
					for _, line := range renderSectionHeader("Daemon", colorize) {
						fmt.Fprintln(stdout, line)
					}
					fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
					fmt.Fprintln(stdout, renderStatusLine("Socket", statusInfo, ctx.socketPath(), colorize))
					counts, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					stats = make(map[string]int, len(counts))
					for status, count := range counts {
						stats[string(status)] = count
					}
				}

				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprint(stdout, table)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func daemonStatusLines(resp *ipc.StatusResponse, colorize bool) []string {
	kind := statusWarn
	detail := "Not running"
	if resp.Running {
		kind = statusOK
		detail = fmt.Sprintf("Running (pid %d)", resp.PID)
	}
	return []string{
		renderStatusLine("Daemon", kind, detail, colorize),
		renderStatusLine("Database", statusInfo, resp.QueueDBPath, colorize),
		renderStatusLine("Lock file", statusInfo, resp.LockPath, colorize),
	}
}

func workerStatusLines(resp *ipc.StatusResponse, colorize bool) []string {
	kind := statusWarn
	detail := "Stopped"
	if resp.WorkerRunning {
		kind = statusOK
		detail = "Running"
	}
	lines := []string{
		renderStatusLine("Worker", kind, detail, colorize),
		renderStatusLine("Jobs claimed", statusInfo, fmt.Sprintf("%d", resp.JobsClaimed), colorize),
		renderStatusLine("Jobs converted", statusInfo, fmt.Sprintf("%d", resp.JobsConverted), colorize),
		renderStatusLine("Jobs failed", statusInfo, fmt.Sprintf("%d", resp.JobsFailed), colorize),
	}
	if resp.LastJob != nil {
		detail := fmt.Sprintf("#%d %s (%s)", resp.LastJob.ID, resp.LastJob.SourceRef, formatStatusLabel(resp.LastJob.Status))
		lines = append(lines, renderStatusLine("Last job", statusInfo, detail, colorize))
	}
	if strings.TrimSpace(resp.LastError) != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, resp.LastError, colorize))
	}
	return lines
}
