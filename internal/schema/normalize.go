// Package schema derives safe, unique SQL identifiers from arbitrary
// spreadsheet headers and keeps the original→normalized mapping.
package schema

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxIdentifierBytes = 63

// Pair records how one header was normalized. Position is zero-based.
type Pair struct {
	Position   int
	Original   string
	Normalized string
}

// Mapping is the ordered list of original→normalized pairs for one upload.
type Mapping struct {
	pairs []Pair
}

// Normalize returns one identifier per header, in header order, together with
// the mapping. Identifiers are lowercase, identifier-safe and unique ignoring
// case. The result is deterministic, and normalizing an already normalized set
// returns it unchanged.
func Normalize(headers []string) ([]string, Mapping) {
	names := make([]string, len(headers))
	pairs := make([]Pair, len(headers))
	taken := make(map[string]bool, len(headers))

	for i, header := range headers {
		candidate := Identifier(header)
		if candidate == "" {
			candidate = "column_" + strconv.Itoa(i+1)
		}
		name := disambiguate(candidate, taken)
		taken[name] = true
		names[i] = name
		pairs[i] = Pair{Position: i, Original: header, Normalized: name}
	}
	return names, Mapping{pairs: pairs}
}

// Identifier applies the single-header transform: fold diacritics, collapse
// every run of non-identifier characters into "_", lowercase, and harden the
// result against leading digits, reserved words and overlong names. It does not
// resolve collisions; use Normalize for a whole header row.
func Identifier(header string) string {
	folded := foldDiacritics(header)

	var b strings.Builder
	b.Grow(len(folded))
	inRun := false
	for _, r := range folded {
		if isIdentRune(r) {
			b.WriteRune(unicode.ToLower(r))
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}

	name := b.String()
	if strings.Trim(name, "_") == "" {
		return ""
	}
	first, _ := utf8.DecodeRuneInString(name)
	if unicode.IsDigit(first) {
		name = "c_" + name
	}
	if reserved[name] {
		name += "_"
	}
	return truncate(name, maxIdentifierBytes)
}

func disambiguate(candidate string, taken map[string]bool) string {
	if !taken[candidate] {
		return candidate
	}
	for k := 2; ; k++ {
		suffix := "_" + strconv.Itoa(k)
		name := truncate(candidate, maxIdentifierBytes-len(suffix)) + suffix
		if !taken[name] {
			return name
		}
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Pairs returns a copy of the mapping in header order.
func (m Mapping) Pairs() []Pair {
	return append([]Pair(nil), m.pairs...)
}

// Len reports the number of mapped headers.
func (m Mapping) Len() int {
	return len(m.pairs)
}

// Names returns the normalized identifiers in header order.
func (m Mapping) Names() []string {
	names := make([]string, len(m.pairs))
	for i, pair := range m.pairs {
		names[i] = pair.Normalized
	}
	return names
}

// Lookup returns the identifier of the first header equal to original.
func (m Mapping) Lookup(original string) (string, bool) {
	for _, pair := range m.pairs {
		if pair.Original == original {
			return pair.Normalized, true
		}
	}
	return "", false
}

// Original returns the header text that produced the given identifier.
func (m Mapping) Original(normalized string) (string, bool) {
	for _, pair := range m.pairs {
		if pair.Normalized == normalized {
			return pair.Original, true
		}
	}
	return "", false
}

var reserved = map[string]bool{
	"all": true, "and": true, "any": true, "as": true, "asc": true,
	"between": true, "by": true, "case": true, "cast": true, "check": true,
	"column": true, "create": true, "cross": true, "default": true, "delete": true,
	"desc": true, "distinct": true, "drop": true, "else": true, "end": true,
	"except": true, "exists": true, "false": true, "fetch": true, "for": true,
	"foreign": true, "from": true, "full": true, "group": true, "having": true,
	"in": true, "index": true, "inner": true, "insert": true, "intersect": true,
	"into": true, "is": true, "join": true, "key": true, "left": true,
	"like": true, "limit": true, "natural": true, "not": true, "null": true,
	"offset": true, "on": true, "or": true, "order": true, "outer": true,
	"primary": true, "references": true, "right": true, "select": true, "set": true,
	"table": true, "then": true, "to": true, "true": true, "union": true,
	"unique": true, "update": true, "using": true, "values": true, "when": true,
	"where": true, "window": true, "with": true,
}
