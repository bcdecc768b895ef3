package worker

import "sheetmill/internal/queue"

// StatusSummary represents lightweight worker diagnostics. Queue totals
// live in the store; callers combine both views.
type StatusSummary struct {
	Running   bool       `json:"running"`
	LastError string     `json:"last_error,omitempty"`
	LastJob   *queue.Job `json:"last_job,omitempty"`
	Stats     Stats      `json:"stats"`
}

// Status returns the latest worker information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, Stats: m.stats}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		job := *m.lastJob
		summary.LastJob = &job
	}
	m.mu.RUnlock()
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) noteClaim(job *queue.Job) Stats {
	m.mu.Lock()
	m.stats.Claimed++
	snapshot := m.stats
	claimed := *job
	m.lastJob = &claimed
	m.mu.Unlock()
	return snapshot
}

func (m *Manager) noteSuccess(job *queue.Job, outputRef string) Stats {
	m.mu.Lock()
	m.stats.Converted++
	snapshot := m.stats
	if m.lastJob != nil && m.lastJob.ID == job.ID {
		m.lastJob.Status = queue.StatusReady
		m.lastJob.OutputRef = outputRef
		m.lastJob.ErrorMessage = ""
	}
	m.mu.Unlock()
	return snapshot
}

func (m *Manager) noteFailure(job *queue.Job, message string) Stats {
	m.mu.Lock()
	m.stats.Failed++
	snapshot := m.stats
	if m.lastJob != nil && m.lastJob.ID == job.ID {
		m.lastJob.Status = queue.StatusFailed
		m.lastJob.ErrorMessage = message
	}
	m.mu.Unlock()
	return snapshot
}
