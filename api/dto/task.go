package dto

import (
	"errors"

	"cadconverter/conversion/entities"
)

var ErrTaskNotFound = errors.New("task not found")

type CreateTaskRequest struct {
	OriginalFilename string            `json:"original_filename"`
	FilePath         string            `json:"file_path"`
	SourceFormat     string            `json:"source_format"`
	TargetFormat     string            `json:"target_format"`
	Options          map[string]string `json:"options,omitempty"`
}

type TaskResponse struct {
	ID               string  `json:"id"`
	TraceID          string  `json:"trace_id,omitempty"`
	OriginalFilename string  `json:"original_filename,omitempty"`
	SourceFormat     string  `json:"source_format,omitempty"`
	TargetFormat     string  `json:"target_format,omitempty"`
	Status           string  `json:"status"`
	ErrorKind        string  `json:"error_kind,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

// ExtractResponse lists the entities pulled out of one drawing.
type ExtractResponse struct {
	FileName string             `json:"file_name"`
	Count    int                `json:"count"`
	Elements []entities.Element `json:"elements"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
