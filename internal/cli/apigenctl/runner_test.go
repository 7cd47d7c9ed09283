package apigenctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunCreateCommand(t *testing.T) {
	var gotMethod, gotPath, gotName string
	var gotBody createBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotName = r.URL.Query().Get("apiName")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"apiName":"demo-1","data":[]}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-description", "top languages",
		"-rows", "3",
		"-columns", "name, rank",
		"create", "demo",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodPost || gotPath != "/api/generate" || gotName != "demo" {
		t.Fatalf("request = %s %s apiName=%q", gotMethod, gotPath, gotName)
	}
	if gotBody.Description != "top languages" || gotBody.NumRows != 3 {
		t.Fatalf("body = %+v", gotBody)
	}
	if len(gotBody.Columns) != 2 || gotBody.Columns[1].Title != "rank" {
		t.Fatalf("columns = %+v", gotBody.Columns)
	}
	if !bytes.Contains(stdout.Bytes(), []byte(`"apiName": "demo-1"`)) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunGetCommand(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"apiName":"demo"}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "get", "demo"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/datasets/demo" {
		t.Fatalf("path = %s", gotPath)
	}
}

func TestRunExportWritesFile(t *testing.T) {
	var gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFormat = r.URL.Query().Get("format")
		_, _ = w.Write([]byte("PAR1...PAR1"))
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "demo.parquet")
	code := Run(context.Background(), []string{"-base-url", srv.URL, "-format", "parquet", "-o", target, "export", "demo"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotFormat != "parquet" {
		t.Fatalf("format = %q", gotFormat)
	}
	written, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(written) != "PAR1...PAR1" {
		t.Fatalf("written = %q", written)
	}
}

func TestRunQueryCommand(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"columns":["n"],"rows":[[1]]}`))
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "query", "demo", "SELECT", "count(*)", "FROM", "dataset"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/datasets/demo/query" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotBody["sql"] != "SELECT count(*) FROM dataset" {
		t.Fatalf("sql = %q", gotBody["sql"])
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":"API_NOT_FOUND"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "get", "missing"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	for _, args := range [][]string{{"unknown"}, {"create"}, {"query", "demo"}, {}} {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != 2 {
			t.Fatalf("Run(%v) exit code = %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("Run(%v) expected usage output", args)
		}
	}
}

func TestParseColumnsSkipsBlanks(t *testing.T) {
	columns := parseColumns(" name ,, rank,")
	if len(columns) != 2 || columns[0].Title != "name" || columns[1].Title != "rank" {
		t.Fatalf("parseColumns() = %+v", columns)
	}
}
