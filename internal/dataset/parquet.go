package dataset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

const (
	parquetReadBatch = 256
	// leading magic, footer length and trailing magic
	parquetFrameSize = 12
)

// readParquet flattens a parquet file with a flat (non-nested, non-repeated)
// schema into a string grid whose first row holds the column names.
func readParquet(data []byte) (grid [][]string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			grid, err = nil, newError("decode parquet file", fmt.Errorf("%v", recovered))
		}
	}()

	if err := checkParquetFooter(data); err != nil {
		return nil, err
	}
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newError("open parquet file", err)
	}

	columns := f.Root().Columns()
	if len(columns) == 0 {
		return nil, newError("parquet file has no columns", nil)
	}
	header := make([]string, len(columns))
	position := make(map[int]int, len(columns))
	for i, column := range columns {
		if !column.Leaf() || column.Repeated() {
			return nil, newError(fmt.Sprintf("parquet column %q is nested or repeated", column.Name()), nil)
		}
		header[i] = column.Name()
		position[column.Index()] = i
	}

	grid = [][]string{header}
	buf := make([]parquet.Row, parquetReadBatch)
	for _, rowGroup := range f.RowGroups() {
		if err := readRowGroup(rowGroup, buf, position, len(header), &grid); err != nil {
			return nil, err
		}
	}
	return grid, nil
}

// checkParquetFooter rejects files whose declared footer length does not fit
// inside the upload, before the reader allocates a buffer of that size.
func checkParquetFooter(data []byte) error {
	if len(data) < parquetFrameSize || !bytes.HasSuffix(data, parquetMagic) {
		return newError("open parquet file", errors.New("truncated file"))
	}
	footer := binary.LittleEndian.Uint32(data[len(data)-8:])
	if uint64(footer) > uint64(len(data)-parquetFrameSize) {
		return newError("open parquet file", fmt.Errorf("footer length %d exceeds file size %d", footer, len(data)))
	}
	return nil
}

func readRowGroup(rowGroup parquet.RowGroup, buf []parquet.Row, position map[int]int, width int, grid *[][]string) error {
	rows := rowGroup.Rows()
	defer func() { _ = rows.Close() }()

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			record := make([]string, width)
			for _, value := range row {
				i, ok := position[value.Column()]
				if !ok || value.IsNull() {
					continue
				}
				record[i] = formatParquetValue(value)
			}
			*grid = append(*grid, record)
		}
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			return nil
		}
		if err != nil {
			return newError("read parquet rows", err)
		}
	}
}

func formatParquetValue(value parquet.Value) string {
	switch value.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(value.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(value.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(value.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(value.Float()), 'g', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(value.Double(), 'g', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(value.ByteArray())
	default:
		return fmt.Sprint(value.Int96())
	}
}
