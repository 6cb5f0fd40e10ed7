package dataset

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sheetsql/sheetsql/internal/schema"
)

const (
	defaultMaxBytes = 32 << 20
	defaultMaxRows  = 200000
)

type Options struct {
	MaxBytes int64
	MaxRows  int
}

type format int

const (
	formatDelimited format = iota
	formatXLSX
	formatParquet
)

func (f format) String() string {
	switch f {
	case formatXLSX:
		return "xlsx"
	case formatParquet:
		return "parquet"
	default:
		return "delimited"
	}
}

var (
	xlsxMagic    = []byte("PK\x03\x04")
	parquetMagic = []byte("PAR1")
)

// Read parses an upload into a Dataset. The name is only used as a format
// hint; content sniffing takes precedence. All failures are *Error.
func Read(name string, r io.Reader, opts Options) (Dataset, error) {
	if r == nil {
		return Dataset{}, newError("no upload provided", nil)
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Dataset{}, newError("read upload", err)
	}
	if int64(len(data)) > maxBytes {
		return Dataset{}, newError(fmt.Sprintf("upload exceeds %d bytes", maxBytes), nil)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Dataset{}, newError("upload is empty", nil)
	}

	var grid [][]string
	switch detectFormat(name, data) {
	case formatXLSX:
		grid, err = readXLSX(data)
	case formatParquet:
		grid, err = readParquet(data)
	default:
		grid, err = readDelimited(name, data)
	}
	if err != nil {
		if IsError(err) {
			return Dataset{}, err
		}
		return Dataset{}, newError("upload is not a readable table", err)
	}
	return build(grid, maxRows)
}

func detectFormat(name string, data []byte) format {
	switch {
	case bytes.HasPrefix(data, xlsxMagic):
		return formatXLSX
	case bytes.HasPrefix(data, parquetMagic):
		return formatParquet
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return formatXLSX
	case ".parquet":
		return formatParquet
	}
	return formatDelimited
}

// build turns a raw grid (header row first, blank rows allowed) into a typed
// Dataset.
func build(grid [][]string, maxRows int) (Dataset, error) {
	start := -1
	for i, record := range grid {
		if !isBlank(record) {
			start = i
			break
		}
	}
	if start < 0 {
		return Dataset{}, newError("upload has no header row", nil)
	}

	header := make([]string, len(grid[start]))
	for i, cell := range grid[start] {
		header[i] = strings.TrimSpace(cell)
	}

	records := make([][]string, 0, len(grid)-start-1)
	for i, record := range grid[start+1:] {
		if isBlank(record) {
			continue
		}
		if len(record) > len(header) {
			if !isBlank(record[len(header):]) {
				return Dataset{}, newError(fmt.Sprintf("row %d has %d fields, header has %d", start+i+2, len(record), len(header)), nil)
			}
			record = record[:len(header)]
		}
		if len(records) >= maxRows {
			return Dataset{}, newError(fmt.Sprintf("upload exceeds %d rows", maxRows), nil)
		}
		records = append(records, record)
	}

	header, records = dropEmptyTrailingColumns(header, records)
	if len(header) == 0 {
		return Dataset{}, newError("upload has no header row", nil)
	}

	names, mapping := schema.Normalize(header)
	types := inferTypes(len(header), records)

	columns := make([]Column, len(header))
	for i := range header {
		columns[i] = Column{Name: names[i], Original: header[i], Type: types[i]}
	}

	rows := make([][]any, len(records))
	for i, record := range records {
		row := make([]any, len(header))
		for j := range header {
			if j >= len(record) {
				continue
			}
			row[j] = convert(types[j], record[j])
		}
		rows[i] = row
	}

	ds := Dataset{Columns: columns, Rows: rows, Mapping: mapping}
	if err := ds.Validate(); err != nil {
		return Dataset{}, newError("invalid dataset", err)
	}
	return ds, nil
}

// dropEmptyTrailingColumns removes unnamed columns at the right edge that hold
// no values, as produced by trailing delimiters or formatted-but-empty cells.
func dropEmptyTrailingColumns(header []string, records [][]string) ([]string, [][]string) {
	width := len(header)
	for width > 0 && header[width-1] == "" {
		used := false
		for _, record := range records {
			if width-1 < len(record) && strings.TrimSpace(record[width-1]) != "" {
				used = true
				break
			}
		}
		if used {
			break
		}
		width--
	}
	if width == len(header) {
		return header, records
	}
	for i, record := range records {
		if len(record) > width {
			records[i] = record[:width]
		}
	}
	return header[:width], records
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
