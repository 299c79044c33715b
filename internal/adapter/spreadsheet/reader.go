// Package spreadsheet reads XLSX and legacy XLS members into rows of cell
// text for the record parser.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	zipMagic = []byte("PK\x03\x04")
	// cfbMagic opens an OLE2 compound file, the container of BIFF8 .xls.
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// IsWorkbook reports whether a member is an Excel workbook, by extension or,
// for extensionless members, by its zip or compound file signature.
func IsWorkbook(name string, data []byte) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	case "":
		return bytes.HasPrefix(data, zipMagic) || bytes.HasPrefix(data, cfbMagic)
	default:
		return false
	}
}

// ReadRows returns the formatted cell text of the first sheet that has any
// rows. Trailing empty cells of each row are omitted. The format is chosen
// from the content, so a mislabelled .xls holding XLSX still reads.
func ReadRows(data []byte) ([][]string, error) {
	if bytes.HasPrefix(data, cfbMagic) {
		return readLegacyRows(data)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}
	return nil, nil
}
