package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/apigen/apigen/internal/export"
)

type fakeArchive struct {
	payloads map[export.Format][]byte
	calls    int
}

func (a *fakeArchive) Open(_ context.Context, _ string, format export.Format) ([]byte, error) {
	a.calls++
	payload, ok := a.payloads[format]
	if !ok {
		return nil, errors.New("object not found")
	}
	return payload, nil
}

func TestExportDatasetJSON(t *testing.T) {
	h := newTestHandler(t, testConfig(t), &scriptedModel{reply: replyWith("d", `[{"a":1},{"a":2}]`)}, nil)
	postCreate(t, h, "demo", validCreateBody)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/datasets/demo/export", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, `filename=demo.json`) {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if !strings.Contains(rr.Body.String(), "\n  {\n") {
		t.Fatalf("body not indented: %s", rr.Body.String())
	}
}

func TestExportDatasetParquet(t *testing.T) {
	h := newTestHandler(t, testConfig(t), &scriptedModel{reply: replyWith("d", `[{"a":1},{"a":2}]`)}, nil)
	postCreate(t, h, "demo", validCreateBody)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/datasets/demo/export?format=parquet", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/vnd.apache.parquet" {
		t.Fatalf("Content-Type = %q", got)
	}
	file, err := parquet.OpenFile(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("parquet.OpenFile() error = %v", err)
	}
	if file.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", file.NumRows())
	}
}

func TestExportDatasetPrefersArchive(t *testing.T) {
	archive := &fakeArchive{payloads: map[export.Format][]byte{export.FormatJSON: []byte("archived\n")}}
	var logs bytes.Buffer
	h := newTestHandler(t, testConfig(t), &scriptedModel{reply: replyWith("d", `[{"a":1}]`)}, func(deps *Dependencies) {
		deps.Archive = archive
		deps.Logger = slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	})
	postCreate(t, h, "demo", validCreateBody)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/datasets/demo/export?format=json", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Body.String() != "archived\n" {
		t.Fatalf("body = %q, want archived payload", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/datasets/demo/export?format=parquet", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("fallback status = %d", rr.Code)
	}
	if archive.calls != 2 {
		t.Fatalf("archive calls = %d, want 2", archive.calls)
	}
	if !strings.Contains(logs.String(), `"api_name":"demo"`) || !strings.Contains(logs.String(), `"error":"object not found"`) {
		t.Fatalf("fallback log = %s", logs.String())
	}
}

func TestExportDatasetErrors(t *testing.T) {
	h := newTestHandler(t, testConfig(t), &scriptedModel{reply: replyWith("d", `[]`)}, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/datasets/demo/export?format=csv", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "FORMAT_UNSUPPORTED" {
		t.Fatalf("body = %v", body)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/datasets/missing/export", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
