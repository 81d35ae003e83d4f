package model

import (
	"fmt"
	"strings"
	"time"

	"startup-analysis-pipeline/internal/domain"
)

type ExecutionMode string

const (
	ModeFull         ExecutionMode = "full"
	ModeCriticalOnly ExecutionMode = "critical_only"
	ModeProgressive  ExecutionMode = "progressive"
)

// AnalysisPayload is the validated submission body. Modes and the optional
// dimension subset replace the untyped pass-through payload of v1; validation
// happens at submission time, not inside the worker.
type AnalysisPayload struct {
	SessionID    string        `json:"session_id"`
	Mode         ExecutionMode `json:"mode"`
	Dimensions   []string      `json:"dimensions,omitempty"`
	Profile      string        `json:"profile,omitempty"`
	ScrapedText  string        `json:"scraped_text,omitempty"`
	DocumentRefs []string      `json:"document_refs,omitempty"`
}

// Validate rejects malformed payloads at submission time so the worker never
// sees them. An empty mode defaults to full.
func (p *AnalysisPayload) Validate() error {
	if strings.TrimSpace(p.SessionID) == "" {
		return domain.ErrSessionRequired
	}
	switch p.Mode {
	case "":
		p.Mode = ModeFull
	case ModeFull, ModeCriticalOnly, ModeProgressive:
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownMode, p.Mode)
	}
	for _, d := range p.Dimensions {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("%w: blank dimension name", domain.ErrInvalidPayload)
		}
	}
	return nil
}

// JobRequest is the immutable unit of submission. JobKey is the mutual
// exclusion scope: one logical analysis per key at a time.
type JobRequest struct {
	JobKey      string          `json:"job_key"`
	Payload     AnalysisPayload `json:"payload"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobAttempt is the mutable lifecycle record owned by the queue. Retried
// copies of a job are distinct attempts of the same logical job; for a given
// JobKey at most one attempt is ever active.
type JobAttempt struct {
	ID              string
	JobKey          string
	Attempt         int
	Status          JobStatus
	Payload         AnalysisPayload
	TotalDimensions int
	LastError       string
	NextRunAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *JobAttempt) Terminal() bool {
	return a.Status == JobStatusCompleted || a.Status == JobStatusFailed
}
