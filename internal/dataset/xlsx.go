package dataset

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

// readXLSX returns the first worksheet as displayed (formatted cell values).
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, newError("open xlsx workbook", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, newError("xlsx workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, newError("read sheet "+sheets[0], err)
	}
	return rows, nil
}
