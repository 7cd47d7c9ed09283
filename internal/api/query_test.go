package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apigen/apigen/internal/query"
)

type fakeQueryEngine struct {
	requests []query.Request
	result   query.Result
	err      error
}

func (e *fakeQueryEngine) Execute(_ context.Context, req query.Request) (query.Result, error) {
	e.requests = append(e.requests, req)
	if e.err != nil {
		return query.Result{}, e.err
	}
	return e.result, nil
}

func newQueryHandler(t *testing.T, engine *fakeQueryEngine) http.Handler {
	t.Helper()
	cfg := testConfig(t)
	cfg.Query.MaxRowLimit = 100
	h := newTestHandler(t, cfg, &scriptedModel{reply: replyWith("d", `[{"name":"Go","rank":1}]`)}, func(deps *Dependencies) {
		deps.QueryEngine = engine
	})
	if rr := postCreate(t, h, "demo", validCreateBody); rr.Code != http.StatusOK {
		t.Fatalf("create status = %d", rr.Code)
	}
	return h
}

func postQuery(h http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestQueryDatasetSuccess(t *testing.T) {
	engine := &fakeQueryEngine{result: query.Result{
		Columns:     []string{"name"},
		Rows:        [][]any{{"Go"}},
		ScannedRows: 1,
		Duration:    3 * time.Millisecond,
	}}
	h := newQueryHandler(t, engine)

	rr := postQuery(h, "/v1/datasets/demo/query", `{"sql":"SELECT name FROM dataset","row_limit":500}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["api_name"] != "demo" {
		t.Fatalf("api_name = %v", body["api_name"])
	}
	if len(engine.requests) != 1 {
		t.Fatalf("engine requests = %d", len(engine.requests))
	}
	req := engine.requests[0]
	if req.RowLimit != 100 {
		t.Fatalf("RowLimit = %d, want capped 100", req.RowLimit)
	}
	if len(req.Sources) != 1 || req.Sources[0].TableName != "dataset" {
		t.Fatalf("Sources = %+v", req.Sources)
	}
	if string(req.Sources[0].Data) != `[{"name":"Go","rank":1}]` {
		t.Fatalf("source data = %s", req.Sources[0].Data)
	}
}

func TestQueryDatasetRejections(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{name: "unknown field", target: "/v1/datasets/demo/query", body: `{"sql":"SELECT 1","extra":true}`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "empty sql", target: "/v1/datasets/demo/query", body: `{"sql":"  "}`, status: http.StatusBadRequest, code: "SQL_REQUIRED"},
		{name: "write statement", target: "/v1/datasets/demo/query", body: `{"sql":"DELETE FROM dataset"}`, status: http.StatusBadRequest, code: "SQL_NOT_ALLOWED"},
		{name: "unknown dataset", target: "/v1/datasets/missing/query", body: `{"sql":"SELECT 1"}`, status: http.StatusNotFound, code: "API_NOT_FOUND"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeQueryEngine{}
			h := newQueryHandler(t, engine)
			rr := postQuery(h, tc.target, tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d (body=%s)", rr.Code, tc.status, rr.Body.String())
			}
			if body := decodeBody(t, rr); body["error_code"] != tc.code {
				t.Fatalf("error_code = %v, want %s", body["error_code"], tc.code)
			}
			if len(engine.requests) != 0 {
				t.Fatalf("engine requests = %d, want 0", len(engine.requests))
			}
		})
	}
}

func TestQueryDatasetExecutionFailure(t *testing.T) {
	h := newQueryHandler(t, &fakeQueryEngine{err: errors.New("binder error")})
	rr := postQuery(h, "/v1/datasets/demo/query", `{"sql":"SELECT nope FROM dataset"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "QUERY_EXECUTION_FAILED" {
		t.Fatalf("body = %v", body)
	}
}

func TestQueryDatasetDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Query.Enabled = false
	h := newTestHandler(t, cfg, &scriptedModel{reply: replyWith("d", `[]`)}, func(deps *Dependencies) {
		deps.QueryEngine = &fakeQueryEngine{}
	})
	rr := postQuery(h, "/v1/datasets/demo/query", `{"sql":"SELECT 1"}`)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestEffectiveRowLimit(t *testing.T) {
	tests := []struct {
		requested, max, want int
	}{
		{requested: 0, max: 100, want: 100},
		{requested: 10, max: 100, want: 10},
		{requested: 500, max: 100, want: 100},
		{requested: 7, max: 0, want: 7},
		{requested: -1, max: 0, want: 0},
	}
	for _, tc := range tests {
		if got := effectiveRowLimit(tc.requested, tc.max); got != tc.want {
			t.Fatalf("effectiveRowLimit(%d, %d) = %d, want %d", tc.requested, tc.max, got, tc.want)
		}
	}
}
