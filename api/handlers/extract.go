package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cadconverter/api/dto"
	"cadconverter/api/middleware"
	"cadconverter/api/validation"
	"cadconverter/conversion"
	"cadconverter/conversion/entities"
)

// ExtractHandler serves entity extraction: upload a drawing, get back
// its lines, circles and text as JSON. DWG uploads are converted to DXF
// through the pipeline first; DXF uploads are parsed directly.
type ExtractHandler struct {
	runner      ConversionRunner
	maxFileSize int64
	logger      *zap.Logger
}

func NewExtractHandler(runner ConversionRunner, maxFileSize int64, logger *zap.Logger) *ExtractHandler {
	return &ExtractHandler{
		runner:      runner,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
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

	if header.Size > h.maxFileSize {
		h.handleError(w, "File too large", "", validation.ErrFileTooLarge, traceID, http.StatusBadRequest)
		return
	}

	fileType, err := validation.DetectFileType(file)
	if err != nil {
		h.handleError(w, "Unrecognized file type", "", err, traceID, http.StatusBadRequest)
		return
	}
	if fileType != validation.FileTypeDWG && fileType != validation.FileTypeDXF {
		h.handleError(w, "Only DWG and DXF drawings can be extracted",
			string(conversion.KindUnsupportedFormat), validation.ErrInvalidFileType,
			traceID, http.StatusUnprocessableEntity)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.handleError(w, "Failed to read file", "", err, traceID, http.StatusInternalServerError)
		return
	}

	requestID := uuid.New().String()

	// DWG has no readable entity stream; route it through the converter
	// and parse the resulting DXF.
	if fileType == validation.FileTypeDWG {
		res := h.runner.Run(r.Context(), &conversion.Request{
			ID:           requestID,
			Filename:     filepath.Base(header.Filename),
			Data:         data,
			SourceFormat: "dwg",
			TargetFormat: "dxf",
		})
		if !res.Succeeded {
			h.handleError(w, res.Failure.Message, string(res.Failure.Kind), res.Failure, traceID, statusFromKind(res.Failure.Kind))
			return
		}
		data = res.Output
	}

	elements, err := entities.Parse(bytes.NewReader(data))
	if err != nil {
		h.handleError(w, "Failed to parse drawing entities",
			string(conversion.KindConversionFailed), err,
			traceID, http.StatusUnprocessableEntity)
		return
	}

	h.logger.Info("Entities extracted",
		zap.String("trace_id", traceID),
		zap.String("request_id", requestID),
		zap.String("filename", header.Filename),
		zap.Int("count", len(elements)),
	)

	h.respondJSON(w, http.StatusOK, dto.ExtractResponse{
		FileName: header.Filename,
		Count:    len(elements),
		Elements: elements,
	})
}

func (h *ExtractHandler) handleError(w http.ResponseWriter, message, kind string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	h.respondJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Kind:    kind,
		TraceID: traceID,
	})
}

func (h *ExtractHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
