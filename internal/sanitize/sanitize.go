// Package sanitize turns raw generated text into a query that may be handed to
// a relation: fences are stripped, leaked headers rewritten, and anything that
// is not a single read-only statement is refused.
package sanitize

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/sheetsql/sheetsql/internal/schema"
)

var ErrEmptyQuery = errors.New("empty generated query")

var (
	fencedBlockPattern  = regexp.MustCompile("(?is)```[ \\t]*[a-z0-9_+-]*[ \\t]*\\r?\\n(.*?)```")
	// An unclosed fence drops any language tag that sits alone on the fence
	// line, and a known SQL tag followed by the query on the same line.
	openingFencePattern = regexp.MustCompile("(?i)^```(?:[ \\t]*[a-z0-9_+-]*[ \\t]*(?:\\r?\\n|$)|[ \\t]*(?:sql|duckdb|sqlite)\\b)?")
)

// Sanitize strips code fences and rewrites any original header text that
// leaked into raw with its normalized identifier.
func Sanitize(raw string, mapping schema.Mapping) (string, error) {
	text := StripFences(raw)
	text = rewriteHeaders(text, mapping)
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyQuery
	}
	return text, nil
}

// StripFences removes markdown code-fence delimiters and surrounding
// whitespace. When the text holds a complete fenced block, only its body is
// kept.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if match := fencedBlockPattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	text = openingFencePattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func rewriteHeaders(text string, mapping schema.Mapping) string {
	identifiers := make(map[string]bool, mapping.Len())
	for _, name := range mapping.Names() {
		identifiers[name] = true
	}

	pairs := make([]schema.Pair, 0, mapping.Len())
	for _, pair := range mapping.Pairs() {
		if strings.TrimSpace(pair.Original) == "" || identifiers[pair.Original] {
			continue
		}
		pairs = append(pairs, pair)
	}
	if len(pairs) == 0 {
		return text
	}
	// Longest original first so "Total Sales 2024" wins over "Total Sales".
	sort.SliceStable(pairs, func(i, j int) bool {
		return len(pairs[i].Original) > len(pairs[j].Original)
	})

	oldnew := make([]string, 0, len(pairs)*2)
	for _, pair := range pairs {
		oldnew = append(oldnew, pair.Original, pair.Normalized)
	}
	return strings.NewReplacer(oldnew...).Replace(text)
}
