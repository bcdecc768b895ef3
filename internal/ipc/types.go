package ipc

import (
	"time"

	"sheetmill/internal/queue"
)

// dateTimeFormat is used for RFC3339 timestamps in wire payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job is the wire representation of a queue row.
type Job struct {
	ID           int64  `json:"id"`
	SourceRef    string `json:"source_ref"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	FinishedAt   string `json:"finished_at,omitempty"`
	OutputRef    string `json:"output_ref,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// FromJob converts a queue row into its wire representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:           job.ID,
		SourceRef:    job.SourceRef,
		Status:       string(job.Status),
		OutputRef:    job.OutputRef,
		ErrorMessage: job.ErrorMessage,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	dto.StartedAt = formatOptionalTime(job.StartedAt)
	dto.FinishedAt = formatOptionalTime(job.FinishedAt)
	return dto
}

// FromJobs converts queue rows into wire representations, preserving order.
func FromJobs(jobs []*queue.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

func formatOptionalTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/worker status information.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	WorkerRunning bool           `json:"worker_running"`
	QueueStats    map[string]int `json:"queue_stats"`
	LastError     string         `json:"last_error"`
	LastJob       *Job           `json:"last_job"`
	JobsClaimed   uint64         `json:"jobs_claimed"`
	JobsConverted uint64         `json:"jobs_converted"`
	JobsFailed    uint64         `json:"jobs_failed"`
	LockPath      string         `json:"lock_path"`
	QueueDBPath   string         `json:"queue_db_path"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// EnqueueRequest inserts a pending conversion job.
type EnqueueRequest struct {
	SourceRef string `json:"source_ref"`
}

// EnqueueResponse contains the created queue entry.
type EnqueueResponse struct {
	Job Job `json:"job"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Jobs []Job `json:"jobs"`
}

// QueueDescribeRequest fetches a single queue entry by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Job Job `json:"job"`
}

// QueueClearRequest removes all jobs.
type QueueClearRequest struct{}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearCompletedRequest removes converted jobs.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed entries.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueClearFailedRequest removes failed jobs.
type QueueClearFailedRequest struct{}

// QueueClearFailedResponse reports number of removed entries.
type QueueClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// QueueRecoverRequest returns orphaned running jobs to pending.
type QueueRecoverRequest struct{}

// QueueRecoverResponse reports number of recovered jobs.
type QueueRecoverResponse struct {
	Updated int64 `json:"updated"`
}

// QueueRetryRequest re-queues failed jobs. Empty list means all failed jobs.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of jobs re-queued.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueHealthRequest fetches aggregate queue diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue counts per lifecycle state.
type QueueHealthResponse struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Running int `json:"running"`
	Ready   int `json:"ready"`
	Failed  int `json:"failed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalJobs        int      `json:"total_jobs"`
	Error            string   `json:"error"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
