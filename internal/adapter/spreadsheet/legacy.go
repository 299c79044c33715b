package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/extrame/xls"
)

// maxLegacyRows bounds the rows read from one .xls; BIFF8 sheets hold at
// most 65536.
const maxLegacyRows = 1 << 16

// readLegacyRows reads a BIFF8 workbook. The decoder walks every sheet in
// order, so rows of later sheets follow the first.
func readLegacyRows(data []byte) (rows [][]string, err error) {
	// The decoder indexes records without bounds checks and panics on
	// truncated input.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("open xls workbook: malformed file: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls workbook: %w", err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	for _, row := range wb.ReadAllCells(maxLegacyRows) {
		rows = append(rows, trimTrailing(row))
	}
	return rows, nil
}

func trimTrailing(row []string) []string {
	n := len(row)
	for n > 0 && row[n-1] == "" {
		n--
	}
	return row[:n]
}
