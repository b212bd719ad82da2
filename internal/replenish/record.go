package replenish

import "time"

// Trigger names who started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerCommand  Trigger = "command"
)

// Record is the persisted form of one finished run.
type Record struct {
	RunID      string    `json:"run_id"`
	Trigger    Trigger   `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Request    Request   `json:"request"`
	Result     Result    `json:"result"`
	Error      string    `json:"error,omitempty"`
}

// RecordSink receives finished runs. Implementations must not block the
// caller for long; the host calls them from its loop.
type RecordSink interface {
	WriteRun(rec Record) error
}
