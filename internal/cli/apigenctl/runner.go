package apigenctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type column struct {
	Title string `json:"title"`
}

type createBody struct {
	Description string   `json:"description"`
	NumRows     int      `json:"numRows"`
	Columns     []column `json:"columns"`
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("apigenctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "apigen API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 90s)")
	description := fs.String("description", "", "dataset description (create)")
	rows := fs.Int("rows", 10, "number of rows to generate (create)")
	columns := fs.String("columns", "", "comma-separated column titles (create)")
	format := fs.String("format", "json", "export format: json|parquet (export)")
	output := fs.String("o", "", "write export to file instead of stdout (export)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	apiName := strings.TrimSpace(fs.Arg(1))
	method := http.MethodGet
	path := ""
	var body []byte
	raw := false
	switch command {
	case "health":
		path = "/v1/health"
	case "ready":
		path = "/v1/ready"
	case "create":
		if apiName == "" {
			_, _ = fmt.Fprintln(stderr, "create requires an api name")
			return 2
		}
		payload, err := json.Marshal(createBody{
			Description: *description,
			NumRows:     *rows,
			Columns:     parseColumns(*columns),
		})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "encode request: %v\n", err)
			return 1
		}
		method, path, body = http.MethodPost, "/api/generate?apiName="+url.QueryEscape(apiName), payload
	case "get":
		if apiName == "" {
			_, _ = fmt.Fprintln(stderr, "get requires an api name")
			return 2
		}
		path = "/v1/datasets/" + url.PathEscape(apiName)
	case "export":
		if apiName == "" {
			_, _ = fmt.Fprintln(stderr, "export requires an api name")
			return 2
		}
		path = "/v1/datasets/" + url.PathEscape(apiName) + "/export?format=" + url.QueryEscape(*format)
		raw = true
	case "query":
		sqlText := strings.TrimSpace(strings.Join(fs.Args()[min(2, fs.NArg()):], " "))
		if apiName == "" || sqlText == "" {
			_, _ = fmt.Fprintln(stderr, "query requires an api name and sql")
			return 2
		}
		payload, err := json.Marshal(map[string]string{"sql": sqlText})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "encode request: %v\n", err)
			return 1
		}
		method, path, body = http.MethodPost, "/v1/datasets/"+url.PathEscape(apiName)+"/query", payload
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if raw {
		if *output != "" {
			if err := os.WriteFile(*output, responseBody, 0o644); err != nil {
				_, _ = fmt.Fprintf(stderr, "write %s: %v\n", *output, err)
				return 1
			}
			return 0
		}
		_, _ = stdout.Write(responseBody)
		return 0
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func parseColumns(raw string) []column {
	columns := []column{}
	for _, title := range strings.Split(raw, ",") {
		if title = strings.TrimSpace(title); title != "" {
			columns = append(columns, column{Title: title})
		}
	}
	return columns
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: apigenctl [flags] <command> [api-name] [sql]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health               GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  create <name>        POST /api/generate (-description, -rows, -columns)")
	_, _ = fmt.Fprintln(w, "  get <name>           GET /v1/datasets/{name}")
	_, _ = fmt.Fprintln(w, "  export <name>        GET /v1/datasets/{name}/export (-format, -o)")
	_, _ = fmt.Fprintln(w, "  query <name> <sql>   POST /v1/datasets/{name}/query")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
