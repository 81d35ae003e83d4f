package model

type ProgressEventType string

const (
	EventConnected ProgressEventType = "connected"
	EventProgress  ProgressEventType = "progress"
	EventComplete  ProgressEventType = "complete"
	EventKeepalive ProgressEventType = "keepalive"
)

// ProgressEvent is the transient message relayed to viewers. It is never
// persisted; durable progress lives in the result store and is recovered by
// the polling fallback. Subscribers must ignore unrecognized event types.
type ProgressEvent struct {
	Type                ProgressEventType `json:"type"`
	JobKey              string            `json:"job_key,omitempty"`
	Current             int               `json:"current,omitempty"`
	Total               int               `json:"total,omitempty"`
	CompletedCategories []string          `json:"completed_categories,omitempty"`
}

// ProgressSnapshot is what the polling fallback reads from durable state.
type ProgressSnapshot struct {
	JobKey    string    `json:"job_key"`
	Status    JobStatus `json:"status"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Completed []string  `json:"completed"`
	LastError string    `json:"last_error,omitempty"`
}
