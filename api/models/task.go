package models

import (
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Task is one queued conversion: the staged upload plus its requested
// format pair and, once finished, where the result landed.
type Task struct {
	ID               string
	TraceID          string
	OriginalFilename string
	FilePath         string
	SourceFormat     string
	TargetFormat     string
	Options          map[string]string
	Status           TaskStatus
	ErrorKind        string
	ErrorMessage     string
	ResultPath       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}
