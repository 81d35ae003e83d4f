package model

import "time"

// DimensionResult is one analyzed business dimension for a job. Results are
// upserted on (JobKey, Dimension) so a retried attempt writing the same
// dimension twice is harmless.
type DimensionResult struct {
	JobKey    string    `json:"job_key"`
	SessionID string    `json:"session_id"`
	Dimension string    `json:"dimension"`
	Summary   string    `json:"summary"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}
