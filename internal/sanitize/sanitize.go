// Package sanitize turns raw model output into JSON.
package sanitize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports model output that is not valid JSON once fences are
// removed.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "model output is not valid json"
	}
	return "model output is not valid json: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Sanitize strips markdown code fences, trims whitespace and returns the
// compacted JSON value. No shape check is made.
func Sanitize(raw string) (json.RawMessage, error) {
	text := StripFences(raw)
	if text == "" {
		return nil, &ParseError{Input: raw, Err: fmt.Errorf("empty output")}
	}
	var out bytes.Buffer
	if err := json.Compact(&out, []byte(text)); err != nil {
		return nil, &ParseError{Input: raw, Err: err}
	}
	return json.RawMessage(out.Bytes()), nil
}

func StripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 && isFenceTag(trimmed[:newline]) {
			trimmed = trimmed[newline+1:]
		} else if isFenceTag(trimmed) {
			trimmed = ""
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// isFenceTag reports whether s is a fence language tag such as "json".
func isFenceTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
