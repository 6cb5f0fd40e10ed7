package sanitize

import (
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenQuotedIdent
	tokenString
	tokenNumber
	tokenPunct
	tokenSemicolon
)

type token struct {
	kind tokenKind
	text string
	raw  string
	pos  int
}

// lex splits SQL into tokens, dropping whitespace and comments. It only needs
// to be precise about where words, literals, and statement boundaries are.
func lex(src string) ([]token, error) {
	tokens := make([]token, 0, len(src)/4)
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '-' && hasPrefixAt(src, i, "--"):
			end := indexFrom(src, i, "\n")
			if end < 0 {
				end = len(src)
			}
			i = end
		case r == '/' && hasPrefixAt(src, i, "/*"):
			end := indexFrom(src, i+2, "*/")
			if end < 0 {
				return nil, unsafeQuery("unterminated block comment")
			}
			i = end + 2
		case r == '\'':
			end, ok := scanQuoted(src, i, '\'')
			if !ok {
				return nil, unsafeQuery("unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokenString, text: src[i+1 : end-1], raw: src[i:end], pos: i})
			i = end
		case r == '"':
			end, ok := scanQuoted(src, i, '"')
			if !ok {
				return nil, unsafeQuery("unterminated quoted identifier")
			}
			tokens = append(tokens, token{kind: tokenQuotedIdent, text: src[i+1 : end-1], raw: src[i:end], pos: i})
			i = end
		case r == ';':
			tokens = append(tokens, token{kind: tokenSemicolon, text: ";", raw: ";", pos: i})
			i += size
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if r != '_' && r != '$' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			tokens = append(tokens, token{kind: tokenWord, text: src[start:i], raw: src[start:i], pos: start})
		case unicode.IsDigit(r):
			start := i
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if r != '.' && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			tokens = append(tokens, token{kind: tokenNumber, text: src[start:i], raw: src[start:i], pos: start})
		default:
			tokens = append(tokens, token{kind: tokenPunct, text: src[i : i+size], raw: src[i : i+size], pos: i})
			i += size
		}
	}
	return tokens, nil
}

// scanQuoted returns the offset just past the closing quote. Doubled quotes
// are escapes.
func scanQuoted(src string, start int, quote byte) (int, bool) {
	for i := start + 1; i < len(src); i++ {
		if src[i] != quote {
			continue
		}
		if i+1 < len(src) && src[i+1] == quote {
			i++
			continue
		}
		return i + 1, true
	}
	return 0, false
}

func hasPrefixAt(src string, i int, prefix string) bool {
	return len(src)-i >= len(prefix) && src[i:i+len(prefix)] == prefix
}

func indexFrom(src string, from int, needle string) int {
	for i := from; i+len(needle) <= len(src); i++ {
		if src[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
