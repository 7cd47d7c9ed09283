package api

import (
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/apigen/apigen/internal/export"
	"github.com/apigen/apigen/internal/observability"
)

func handleExportDataset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Datasets == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASETS_NOT_CONFIGURED", "dataset service is not configured", false, nil)
		return
	}
	format, err := export.ParseFormat(trimmedQueryParam(r, "format"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "FORMAT_UNSUPPORTED", err.Error(), false, map[string]any{"supported": []string{string(export.FormatJSON), string(export.FormatParquet)}})
		return
	}

	record, err := deps.Datasets.Get(r.Context(), apiNameFromRequest(r))
	if err != nil {
		writeServiceError(deps, w, r, err)
		return
	}

	var payload []byte
	if deps.Archive != nil {
		archived, err := deps.Archive.Open(r.Context(), record.APIName, format)
		if err == nil {
			payload = archived
		} else {
			observability.LoggerOrDiscard(deps.Logger).DebugContext(r.Context(), "archived export unavailable, encoding from store", slog.String("api_name", record.APIName), slog.Any("error", err))
		}
	}
	if payload == nil {
		payload, err = export.Encode(format, record.Data)
		if err != nil {
			writeError(r.Context(), w, http.StatusUnprocessableEntity, "EXPORT_FAILED", "dataset could not be encoded", false, map[string]any{"details": err.Error()})
			return
		}
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": record.APIName + "." + string(format),
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
