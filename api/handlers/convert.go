package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cadconverter/api/dto"
	"cadconverter/api/middleware"
	"cadconverter/api/validation"
	"cadconverter/conversion"
)

// ConversionRunner is the pipeline surface the handler needs; tests
// substitute a fake.
type ConversionRunner interface {
	Run(ctx context.Context, req *conversion.Request) *conversion.Result
}

// HealthChecker probes whether the converter backends can run at all.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// ConvertHandler serves the synchronous conversion path: upload in,
// converted file out, all within one request.
type ConvertHandler struct {
	runner      ConversionRunner
	checker     HealthChecker
	maxFileSize int64
	logger      *zap.Logger
}

func NewConvertHandler(runner ConversionRunner, checker HealthChecker, maxFileSize int64, logger *zap.Logger) *ConvertHandler {
	return &ConvertHandler{
		runner:      runner,
		checker:     checker,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.handleError(w, "Failed to parse form", "", err, traceID, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleError(w, "Missing file", "", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	source := strings.ToLower(r.FormValue("source"))
	target := strings.ToLower(r.FormValue("target"))
	if source == "" || target == "" {
		h.handleError(w, "Missing source/target parameters", "", validation.ErrMissingFormat, traceID, http.StatusBadRequest)
		return
	}

	if header.Size > h.maxFileSize {
		h.handleError(w, "File too large", "", validation.ErrFileTooLarge, traceID, http.StatusBadRequest)
		return
	}

	fileType, err := validation.DetectFileType(file)
	if err != nil {
		h.handleError(w, "Unrecognized file type", "", err, traceID, http.StatusBadRequest)
		return
	}
	if !validation.MatchesFormat(fileType, source) {
		h.handleError(w, "File content does not match declared format", "", validation.ErrFormatMismatch, traceID, http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.handleError(w, "Failed to read file", "", err, traceID, http.StatusInternalServerError)
		return
	}

	var options map[string]string
	if version := r.FormValue("version"); version != "" {
		options = map[string]string{"version": version}
	}

	req := &conversion.Request{
		ID:           uuid.New().String(),
		Filename:     filepath.Base(header.Filename),
		Data:         data,
		SourceFormat: source,
		TargetFormat: target,
		Options:      options,
	}

	h.logger.Info("Conversion started",
		zap.String("trace_id", traceID),
		zap.String("request_id", req.ID),
		zap.String("source", source),
		zap.String("target", target),
		zap.Int("bytes", len(data)),
	)

	res := h.runner.Run(r.Context(), req)
	if !res.Succeeded {
		h.handleError(w, res.Failure.Message, string(res.Failure.Kind), res.Failure, traceID, statusFromKind(res.Failure.Kind))
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.OutputName))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(res.Size, 10))
	w.Write(res.Output)
}

// Health reports liveness of the conversion core: 200 only when every
// configured converter binary is present and executable.
func (h *ConvertHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.Healthy(r.Context()); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "converter unavailable"})
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func statusFromKind(kind conversion.ErrorKind) int {
	switch kind {
	case conversion.KindUnsupportedFormat:
		return http.StatusUnprocessableEntity
	case conversion.KindTimeout:
		return http.StatusGatewayTimeout
	case conversion.KindConversionFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *ConvertHandler) handleError(w http.ResponseWriter, message, kind string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Kind:    kind,
		TraceID: traceID,
	})
}
