package query

import (
	"fmt"
	"strings"
)

var forbiddenKeywords = []string{
	"insert", "update", "delete", "merge", "create", "drop", "alter", "attach", "detach",
	"copy", "export", "import", "install", "load", "pragma", "set", "call", "checkpoint",
}

// ValidateReadOnly accepts a single SELECT or WITH statement.
func ValidateReadOnly(sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	if trimmed == "" {
		return fmt.Errorf("sql is required")
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("only a single statement is allowed")
	}
	words := strings.FieldsFunc(strings.ToLower(trimmed), func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(words) == 0 || (words[0] != "select" && words[0] != "with") {
		return fmt.Errorf("only SELECT or WITH queries are allowed")
	}
	for _, word := range words {
		for _, keyword := range forbiddenKeywords {
			if word == keyword {
				return fmt.Errorf("keyword %q is not allowed", strings.ToUpper(keyword))
			}
		}
	}
	return nil
}
