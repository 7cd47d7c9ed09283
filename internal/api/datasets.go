package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/apigen/apigen/internal/dataset"
	"github.com/apigen/apigen/internal/generation"
	"github.com/apigen/apigen/internal/observability"
)

const maxCreateBodyBytes = 1 << 20

type createResponse struct {
	APIName string          `json:"apiName"`
	Data    json.RawMessage `json:"data"`
}

func handleCreateDataset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Datasets == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASETS_NOT_CONFIGURED", "dataset service is not configured", false, nil)
		return
	}

	baseName := r.URL.Query().Get("apiName")
	if _, err := generation.ValidateAPIName(baseName); err != nil {
		writeServiceError(deps, w, r, err)
		return
	}

	request, err := decodeGenerationRequest(http.MaxBytesReader(w, r.Body, maxCreateBodyBytes))
	if err != nil {
		var validationErr *generation.ValidationError
		if errors.As(err, &validationErr) {
			writeServiceError(deps, w, r, err)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, string(generation.CodeInvalidJSON), generation.MessageInvalidJSON, false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Datasets.Create(r.Context(), generation.CreateInput{BaseName: baseName, Request: request})
	if err != nil {
		writeServiceError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createResponse{APIName: result.Record.APIName, Data: result.Record.Data})
}

func handleGetDataset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Datasets == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASETS_NOT_CONFIGURED", "dataset service is not configured", false, nil)
		return
	}
	record, err := deps.Datasets.Get(r.Context(), apiNameFromRequest(r))
	if err != nil {
		writeServiceError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// apiNameFromRequest prefers the {apiName} path value over the query string.
func apiNameFromRequest(r *http.Request) string {
	if name := r.PathValue("apiName"); name != "" {
		return name
	}
	return r.URL.Query().Get("apiName")
}

func decodeGenerationRequest(body io.Reader) (dataset.GenerationRequest, error) {
	var request dataset.GenerationRequest
	if err := json.NewDecoder(body).Decode(&request); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			switch typeErr.Field {
			case "columns":
				return dataset.GenerationRequest{}, &generation.ValidationError{Code: generation.CodeValidationFailed, Message: generation.MessageColumnsNotArray}
			case "numRows":
				return dataset.GenerationRequest{}, &generation.ValidationError{Code: generation.CodeValidationFailed, Message: generation.MessageNumRowsInvalid}
			case "description":
				return dataset.GenerationRequest{}, &generation.ValidationError{Code: generation.CodeValidationFailed, Message: generation.MessageFieldsRequired}
			}
		}
		return dataset.GenerationRequest{}, err
	}
	return request, nil
}

// writeServiceError maps workflow errors to the public envelope. Only
// validation messages reach the caller verbatim; everything else is logged.
func writeServiceError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *generation.ValidationError
	if errors.As(err, &validationErr) {
		writeError(r.Context(), w, http.StatusBadRequest, string(validationErr.Code), validationErr.Message, false, nil)
		return
	}

	code := generation.CodeOf(err)
	if code == generation.CodeNotFound {
		writeError(r.Context(), w, http.StatusNotFound, string(code), code.PublicMessage(), false, nil)
		return
	}
	if code == "" {
		code = generation.CodeGenerationFailed
	}

	attrs := []any{
		slog.String("error_code", string(code)),
		slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
		slog.Any("error", err),
	}
	var stageErr *generation.Error
	if errors.As(err, &stageErr) {
		attrs = append(attrs, slog.String("stage", string(stageErr.Stage)))
	}
	observability.LoggerOrDiscard(deps.Logger).ErrorContext(r.Context(), "dataset request failed", attrs...)

	retryable := code != generation.CodeNameUnavailable
	writeError(r.Context(), w, http.StatusInternalServerError, string(code), code.PublicMessage(), retryable, nil)
}

func trimmedQueryParam(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
