// Package prompt renders the text sent to the generation service.
package prompt

import (
	"fmt"
	"strings"
)

// Translation asks the model to return text in English, unchanged when it
// already is.
func Translation(text string) string {
	return fmt.Sprintf(
		"If the text is in a language other than English, translate it to English. Provide the translated text: %s. But if the text is already in English, provide the text as is. Return only the text.",
		strings.TrimSpace(text),
	)
}

// ColumnTranslation asks for the titles in English snake_case, comma separated
// and in the same order.
func ColumnTranslation(titles []string) string {
	return "Translate the following column names to English and convert multi-word names to snake_case. " +
		"Provide only the translated column names in the same order, separated by commas: " +
		strings.Join(titles, ", ")
}

// ParseColumnList splits a ColumnTranslation reply back into titles. Blank
// entries are dropped.
func ParseColumnList(reply string) []string {
	parts := strings.Split(strings.TrimSpace(reply), ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), "`\"'")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Generation(description string, rowCount int, titles []string) string {
	var b strings.Builder
	b.WriteString("Ensure if column names are multi-word, they are converted to snake_case. ")
	b.WriteString("If a column name is not in English, translate it to English.\n\n")
	b.WriteString("Generate a JSON file with the following specifications:\n")
	fmt.Fprintf(&b, "Description: %s\n", strings.TrimSpace(description))
	fmt.Fprintf(&b, "Number of Rows: %d\n", rowCount)
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(titles, ", "))
	b.WriteString("Output should be in the following JSON format:\n\n")
	b.WriteString(templateRow(titles))
	fmt.Fprintf(&b,
		"\nEnsure that the JSON format is strictly followed, and the number of rows does not exceed %d. "+
			"Do not include any additional text or explanations, only return the JSON data.\n",
		rowCount,
	)
	return b.String()
}

func templateRow(titles []string) string {
	pairs := make([]string, 0, len(titles))
	for _, title := range titles {
		pairs = append(pairs, fmt.Sprintf("%q: \"value\"", title))
	}
	return "[\n  {\n    " + strings.Join(pairs, ", ") + "\n  },\n  ...\n]\n"
}

// QueryTranslation asks for a single DuckDB query over one table answering
// question.
func QueryTranslation(tableName string, columns []string, sampleRowsJSON, question string) string {
	return fmt.Sprintf(
		"You convert natural language questions into a single DuckDB SQL query. DuckDB uses PostgreSQL-like SQL syntax.\n"+
			"Table: %s\nColumns: %s\nSample rows (JSON):\n%s\n\nQuestion:\n%s\n\n"+
			"Rules:\n- Use only the listed table and columns.\n- Output a single read-only SELECT query.\n- Return ONLY SQL. No markdown, no explanation.",
		tableName,
		strings.Join(columns, ", "),
		sampleRowsJSON,
		strings.TrimSpace(question),
	)
}
