package queue

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, source_ref, status, created_at, started_at, finished_at, output_ref, error_message"

// sqliteTimeLayout matches CURRENT_TIMESTAMP so worker-written rows compare
// cleanly with rows written by the enqueueing application.
const sqliteTimeLayout = "2006-01-02 15:04:05"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id          int64
		sourceRef   string
		statusStr   string
		createdRaw  sql.NullString
		startedRaw  sql.NullString
		finishedRaw sql.NullString
		outputRef   sql.NullString
		errMessage  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceRef,
		&statusStr,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
		&outputRef,
		&errMessage,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		SourceRef:    sourceRef,
		Status:       Status(statusStr),
		OutputRef:    outputRef.String,
		ErrorMessage: errMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(sqliteTimeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
