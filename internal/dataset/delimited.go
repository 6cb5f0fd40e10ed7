package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte("\uFEFF")

func readDelimited(name string, data []byte) ([][]string, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = sniffDelimiter(name, text)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var grid [][]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newError("malformed delimited text", err)
		}
		grid = append(grid, record)
	}
	return grid, nil
}

// decodeText rejects binary content and returns the upload as UTF-8. Bytes
// that are not valid UTF-8 are decoded as Windows-1252, the usual encoding of
// spreadsheets exported on Windows.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	for i, b := range data {
		if isBinaryByte(b) {
			return "", newError(fmt.Sprintf("upload is not text (byte 0x%02x at offset %d)", b, i), nil)
		}
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", newError("decode text", err)
	}
	return string(decoded), nil
}

func isBinaryByte(b byte) bool {
	switch {
	case b == '\t', b == '\n', b == '\r':
		return false
	case b < 0x20, b == 0x7f:
		return true
	default:
		return false
	}
}

// sniffDelimiter picks the most frequent candidate delimiter on the first
// non-blank line, ignoring quoted sections.
func sniffDelimiter(name string, text string) rune {
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		return '\t'
	}
	line := firstLine(text)
	counts := map[rune]int{}
	inQuotes := false
	for _, r := range line {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',', ';', '\t', '|':
			if !inQuotes {
				counts[r]++
			}
		}
	}
	best, bestCount := ',', 0
	for _, candidate := range []rune{',', ';', '\t', '|'} {
		if counts[candidate] > bestCount {
			best, bestCount = candidate, counts[candidate]
		}
	}
	return best
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
