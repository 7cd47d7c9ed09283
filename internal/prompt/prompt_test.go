package prompt

import (
	"reflect"
	"strings"
	"testing"
)

func TestTranslationEmbedsText(t *testing.T) {
	got := Translation("  en popüler diller ")
	if !strings.Contains(got, "Provide the translated text: en popüler diller.") {
		t.Fatalf("Translation() = %q", got)
	}
	if !strings.Contains(got, "already in English") {
		t.Fatalf("Translation() missing passthrough instruction: %q", got)
	}
}

func TestGenerationListsColumnsAndRowLimit(t *testing.T) {
	got := Generation("top languages", 3, []string{"name", "rank"})
	for _, want := range []string{
		"Description: top languages\n",
		"Number of Rows: 3\n",
		"Columns: name, rank\n",
		`"name": "value", "rank": "value"`,
		"does not exceed 3.",
		"only return the JSON data",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Generation() missing %q in:\n%s", want, got)
		}
	}
}

func TestGenerationQuotesTitles(t *testing.T) {
	got := Generation("d", 1, []string{`say "hi"`})
	if !strings.Contains(got, `"say \"hi\"": "value"`) {
		t.Fatalf("Generation() = %s", got)
	}
}

func TestColumnTranslation(t *testing.T) {
	got := ColumnTranslation([]string{"ad soyad", "yaş"})
	if !strings.HasSuffix(got, "separated by commas: ad soyad, yaş") {
		t.Fatalf("ColumnTranslation() = %q", got)
	}
}

func TestParseColumnList(t *testing.T) {
	got := ParseColumnList(" full_name, age ,, `city` \n")
	want := []string{"full_name", "age", "city"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseColumnList() = %#v, want %#v", got, want)
	}
}

func TestQueryTranslation(t *testing.T) {
	got := QueryTranslation("dataset", []string{"name", "rank"}, `[["Go",1]]`, " best ranked? ")
	for _, want := range []string{"Table: dataset\n", "Columns: name, rank\n", `[["Go",1]]`, "Question:\nbest ranked?\n", "Return ONLY SQL"} {
		if !strings.Contains(got, want) {
			t.Fatalf("QueryTranslation() missing %q in:\n%s", want, got)
		}
	}
}
