package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cadconverter/api/dto"
	"cadconverter/api/middleware"
	"cadconverter/api/models"
	"cadconverter/api/validation"
)

// TaskService is the async-path surface the handler depends on.
type TaskService interface {
	CreateTask(ctx context.Context, traceID string, req *dto.CreateTaskRequest) (*dto.TaskResponse, error)
	GetTaskStatus(ctx context.Context, taskID string) (*dto.TaskResponse, error)
	GetTaskResult(ctx context.Context, taskID string) (*models.Task, error)
}

// TaskHandler serves the queued conversion path: the upload is staged
// on shared storage and converted by the worker.
type TaskHandler struct {
	service     TaskService
	uploadDir   string
	maxFileSize int64
	logger      *zap.Logger
}

func NewTaskHandler(service TaskService, uploadDir string, maxFileSize int64, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service:     service,
		uploadDir:   uploadDir,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleError(w, "Missing file", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	source := strings.ToLower(r.FormValue("source"))
	target := strings.ToLower(r.FormValue("target"))
	if source == "" || target == "" {
		h.handleError(w, "Missing source/target parameters", validation.ErrMissingFormat, traceID, http.StatusBadRequest)
		return
	}

	if header.Size > h.maxFileSize {
		h.handleError(w, "File too large", validation.ErrFileTooLarge, traceID, http.StatusBadRequest)
		return
	}

	fileType, err := validation.DetectFileType(file)
	if err != nil {
		h.handleError(w, "Unrecognized file type", err, traceID, http.StatusBadRequest)
		return
	}
	if !validation.MatchesFormat(fileType, source) {
		h.handleError(w, "File content does not match declared format", validation.ErrFormatMismatch, traceID, http.StatusBadRequest)
		return
	}

	// Staged under a fresh ID so concurrent uploads of the same
	// filename never collide.
	filename := filepath.Base(header.Filename)
	filePath := filepath.Join(h.uploadDir, uuid.New().String()+filepath.Ext(filename))

	dst, err := os.Create(filePath)
	if err != nil {
		h.handleError(w, "Failed to save file", err, traceID, http.StatusInternalServerError)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(filePath)
		h.handleError(w, "Failed to write file", err, traceID, http.StatusInternalServerError)
		return
	}

	var options map[string]string
	if version := r.FormValue("version"); version != "" {
		options = map[string]string{"version": version}
	}

	req := &dto.CreateTaskRequest{
		OriginalFilename: filename,
		FilePath:         filePath,
		SourceFormat:     source,
		TargetFormat:     target,
		Options:          options,
	}

	resp, err := h.service.CreateTask(r.Context(), traceID, req)
	if err != nil {
		os.Remove(filePath)
		h.handleError(w, "Failed to create task", err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Task submitted",
		zap.String("trace_id", traceID),
		zap.String("task_id", resp.ID),
		zap.String("filename", filename),
		zap.String("source", source),
		zap.String("target", target),
	)

	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := r.PathValue("id")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetTaskStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, dto.ErrTaskNotFound) {
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get task status", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// Result streams the converted artifact of a completed task.
func (h *TaskHandler) Result(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := r.PathValue("id")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	task, err := h.service.GetTaskResult(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, dto.ErrTaskNotFound) {
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get task", err, traceID, http.StatusInternalServerError)
		return
	}

	if task.Status != models.StatusCompleted || task.ResultPath == "" {
		h.handleError(w, "Task has no result", nil, traceID, http.StatusConflict)
		return
	}

	f, err := os.Open(task.ResultPath)
	if err != nil {
		h.handleError(w, "Failed to open result", err, traceID, http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(task.ResultPath)))
	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, f)
}

func (h *TaskHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
