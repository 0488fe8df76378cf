package types

import "time"

type ExecutionStatus string

const (
	ExecutionStarted ExecutionStatus = "STARTED"
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailed  ExecutionStatus = "FAILED"
)

// ExecutionRecord tracks one run of a function or coaching job.
type ExecutionRecord struct {
	ExecutionID string
	Service     string
	UserID      string
	TriggerType string
	Status      ExecutionStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	Outputs     map[string]interface{}
}

// MonthlyReport is a generated month-in-review.
type MonthlyReport struct {
	UserID    string
	Month     string // yyyy-mm
	Text      string
	Stats     MonthlyStats
	CreatedAt time.Time
}
