package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"sheetmill/internal/ipc"
	"sheetmill/internal/queue"
)

// statusDisplayOrder fixes the lifecycle order for status summaries; states
// the store never produced still render, appended alphabetically.
var statusDisplayOrder = []string{
	string(queue.StatusPending),
	string(queue.StatusRunning),
	string(queue.StatusReady),
	string(queue.StatusFailed),
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(stats))
	keys := make([]string, 0, len(stats))
	for _, key := range statusDisplayOrder {
		if _, ok := stats[key]; ok {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	var extra []string
	for key := range stats {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildJobListRows(jobs []ipc.Job) [][]string {
	if len(jobs) == 0 {
		return nil
	}
	sorted := make([]ipc.Job, len(jobs))
	copy(sorted, jobs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID > sorted[j].ID
	})

	rows := make([][]string, 0, len(sorted))
	for _, job := range sorted {
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			job.SourceRef,
			formatStatusLabel(job.Status),
			formatDisplayTime(job.CreatedAt),
			job.OutputRef,
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}
