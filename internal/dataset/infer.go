package dataset

import (
	"regexp"
	"strconv"
	"strings"
)

var thousandsPattern = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// inferTypes picks the narrowest type every non-empty value of a column
// parses as: integer, then real, then text. Empty columns are text.
func inferTypes(width int, records [][]string) []ColumnType {
	out := make([]ColumnType, width)
	for col := 0; col < width; col++ {
		seen := false
		allInt := true
		allReal := true
		for _, record := range records {
			if col >= len(record) {
				continue
			}
			v := strings.TrimSpace(record[col])
			if v == "" {
				continue
			}
			seen = true
			if allInt {
				if _, ok := parseInt(v); !ok {
					allInt = false
				}
			}
			if allReal {
				if _, ok := parseReal(v); !ok {
					allReal = false
				}
			}
			if !allInt && !allReal {
				break
			}
		}
		switch {
		case !seen:
			out[col] = TypeText
		case allInt:
			out[col] = TypeInteger
		case allReal:
			out[col] = TypeReal
		default:
			out[col] = TypeText
		}
	}
	return out
}

func convert(columnType ColumnType, raw string) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	switch columnType {
	case TypeInteger:
		if n, ok := parseInt(v); ok {
			return n
		}
	case TypeReal:
		if f, ok := parseReal(v); ok {
			return f
		}
	}
	return v
}

func parseInt(v string) (int64, bool) {
	if hasLeadingZero(v) {
		return 0, false
	}
	if thousandsPattern.MatchString(v) && !strings.Contains(v, ".") {
		v = strings.ReplaceAll(v, ",", "")
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseReal(v string) (float64, bool) {
	if hasLeadingZero(v) || !isNumericLiteral(v) {
		return 0, false
	}
	if thousandsPattern.MatchString(v) {
		v = strings.ReplaceAll(v, ",", "")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// isNumericLiteral rejects spellings strconv accepts but a spreadsheet user
// would not mean as numbers, such as "nan", "inf" or hex floats.
func isNumericLiteral(v string) bool {
	digits := false
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits = true
		case r == '.', r == '-', r == '+', r == 'e', r == 'E', r == ',':
		default:
			return false
		}
	}
	return digits
}

// hasLeadingZero treats zero-padded codes such as "00123" as text.
func hasLeadingZero(v string) bool {
	unsigned := strings.TrimLeft(v, "+-")
	return len(unsigned) > 1 && unsigned[0] == '0' && unsigned[1] != '.'
}
