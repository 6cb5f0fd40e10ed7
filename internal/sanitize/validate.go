package sanitize

import (
	"fmt"
	"strings"
)

// UnsafeQueryError reports generated SQL that is not a single read-only
// statement.
type UnsafeQueryError struct {
	Reason string
}

func (e *UnsafeQueryError) Error() string {
	return "unsafe generated query: " + e.Reason
}

func unsafeQuery(format string, args ...any) error {
	return &UnsafeQueryError{Reason: fmt.Sprintf(format, args...)}
}

var leadingKeywords = map[string]bool{
	"select": true,
	"with":   true,
	"values": true,
	"from":   true,
}

var forbiddenKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "merge": true, "upsert": true,
	"create": true, "drop": true, "alter": true, "truncate": true,
	"attach": true, "detach": true, "copy": true, "export": true, "import": true,
	"install": true, "load": true, "pragma": true, "set": true, "reset": true,
	"call": true, "vacuum": true, "checkpoint": true, "grant": true, "revoke": true,
	"begin": true, "commit": true, "rollback": true, "use": true,
}

var dangerousFunctions = map[string]bool{
	"read_csv":             true,
	"read_csv_auto":        true,
	"read_parquet":         true,
	"parquet_scan":         true,
	"read_json":            true,
	"read_json_auto":       true,
	"read_ndjson":          true,
	"read_text":            true,
	"read_blob":            true,
	"glob":                 true,
	"sqlite_scan":          true,
	"query_table":          true,
	"duckdb_extensions":    true,
	"duckdb_settings":      true,
	"duckdb_databases":     true,
	"duckdb_secrets":       true,
	"pragma_database_list": true,
	"load_extension":       true,
	"readfile":             true,
	"writefile":            true,
}

// Validate accepts exactly one read-only statement and returns it without
// trailing semicolons. Words that are dataset column names are never treated
// as keywords, but a call to a denied function is refused even when a column
// shares its name.
func Validate(sqlText string, columns []string) (string, error) {
	tokens, err := lex(sqlText)
	if err != nil {
		return "", err
	}

	statements := splitStatements(tokens)
	if len(statements) == 0 {
		return "", ErrEmptyQuery
	}
	if len(statements) > 1 {
		return "", unsafeQuery("expected a single statement, found %d", len(statements))
	}
	statement := statements[0]

	first := firstWord(statement)
	if first == "" || !leadingKeywords[first] {
		return "", unsafeQuery("statement must start with SELECT, WITH, VALUES or FROM")
	}

	columnSet := make(map[string]bool, len(columns))
	for _, column := range columns {
		columnSet[strings.ToLower(column)] = true
	}

	for i, tok := range statement {
		switch tok.kind {
		case tokenWord:
			word := strings.ToLower(tok.text)
			if dangerousFunctions[word] && isCall(statement, i) {
				return "", unsafeQuery("function %s is not allowed", word)
			}
			if columnSet[word] {
				continue
			}
			if forbiddenKeywords[word] {
				return "", unsafeQuery("%s is not allowed", strings.ToUpper(word))
			}
		case tokenQuotedIdent:
			name := strings.ToLower(tok.text)
			if dangerousFunctions[name] && isCall(statement, i) {
				return "", unsafeQuery("function %s is not allowed", name)
			}
		}
	}

	start := statement[0].pos
	last := statement[len(statement)-1]
	return strings.TrimSpace(sqlText[start : last.pos+len(last.raw)]), nil
}

func splitStatements(tokens []token) [][]token {
	statements := make([][]token, 0, 1)
	current := make([]token, 0, len(tokens))
	for _, tok := range tokens {
		if tok.kind == tokenSemicolon {
			if len(current) > 0 {
				statements = append(statements, current)
				current = make([]token, 0)
			}
			continue
		}
		current = append(current, tok)
	}
	if len(current) > 0 {
		statements = append(statements, current)
	}
	return statements
}

func firstWord(statement []token) string {
	for _, tok := range statement {
		if tok.kind == tokenPunct && tok.text == "(" {
			continue
		}
		if tok.kind != tokenWord {
			return ""
		}
		return strings.ToLower(tok.text)
	}
	return ""
}

func isCall(statement []token, i int) bool {
	return i+1 < len(statement) && statement[i+1].kind == tokenPunct && statement[i+1].text == "("
}
