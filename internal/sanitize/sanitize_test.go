package sanitize

import (
	"errors"
	"testing"

	"github.com/sheetsql/sheetsql/internal/schema"
)

func TestSanitizeStripsFences(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1\n```":                       "SELECT 1",
		"```SQL\nSELECT 1\n```":                       "SELECT 1",
		"```\nSELECT 1\n```":                          "SELECT 1",
		"  SELECT 1  ":                                "SELECT 1",
		"Here you go:\n```sql\nSELECT 2\n```\nEnjoy.": "SELECT 2",
		"```sql\nSELECT 3":                            "SELECT 3",
		"```sql SELECT 4```":                          "SELECT 4",
		"```postgresql\nSELECT 5":                     "SELECT 5",
		"```PostgreSQL\r\nSELECT 6\n":                "SELECT 6",
		"```SELECT 7":                                 "SELECT 7",
		"```sqlite SELECT 8":                          "SELECT 8",
	}
	for raw, want := range cases {
		got, err := Sanitize(raw, schema.Mapping{})
		if err != nil {
			t.Fatalf("Sanitize(%q) error = %v", raw, err)
		}
		if got != want {
			t.Fatalf("Sanitize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestSanitizeRejectsEmptyOutput(t *testing.T) {
	for _, raw := range []string{"", "   ", "```sql\n```", "```\n\n```"} {
		_, err := Sanitize(raw, schema.Mapping{})
		if !errors.Is(err, ErrEmptyQuery) {
			t.Fatalf("Sanitize(%q) error = %v, want ErrEmptyQuery", raw, err)
		}
		if err.Error() != "empty generated query" {
			t.Fatalf("message = %q", err.Error())
		}
	}
}

func TestSanitizeRewritesLeakedHeaders(t *testing.T) {
	_, mapping := schema.Normalize([]string{"Total Sales", "Total Sales 2024", "Region"})

	got, err := Sanitize("SELECT Region, SUM(Total Sales 2024), SUM(Total Sales) FROM data_table GROUP BY Region", mapping)
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	want := "SELECT region, SUM(total_sales_2024), SUM(total_sales) FROM data_table GROUP BY region"
	if got != want {
		t.Fatalf("Sanitize() = %q, want %q", got, want)
	}
}

func TestSanitizeSkipsHeadersEqualToIdentifiers(t *testing.T) {
	// "a_b" is both an original header and the identifier of another column.
	_, mapping := schema.Normalize([]string{"a b", "a_b"})

	got, err := Sanitize("SELECT a_b, a_b_2 FROM data_table", mapping)
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if got != "SELECT a_b, a_b_2 FROM data_table" {
		t.Fatalf("Sanitize() = %q", got)
	}
}
