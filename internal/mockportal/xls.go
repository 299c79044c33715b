package mockportal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// Compound file and BIFF8 constants for LegacyWorkbook.
const (
	sectorSize     = 512
	miniCutoff     = 4096
	maxHeaderFAT   = 109
	maxBIFFRecord  = 8224
	maxSheetName   = 31
	freeSector     = 0xFFFFFFFF
	endOfChain     = 0xFFFFFFFE
	fatSector      = 0xFFFFFFFD
	noStream       = 0xFFFFFFFF
	biffVersion8   = 0x0600
	bofGlobals     = 0x0005
	bofWorksheet   = 0x0010
	codepageUTF16  = 1200
	recBOF         = 0x0809
	recEOF         = 0x000A
	recCodepage    = 0x0042
	recBoundSheet  = 0x0085
	recSST         = 0x00FC
	recLabelSST    = 0x00FD
	dirTypeStream  = 2
	dirTypeRoot    = 5
	dirColorBlack  = 1
	dirEntrySize   = 128
	dirNameField   = 64
	headerFATStart = 76
)

var le = binary.LittleEndian

// LegacyWorkbook renders rows as a single-sheet Excel 97-2003 (.xls)
// workbook. Every non-empty cell is written as a shared string, the way the
// portal's older exports store their text tables.
func LegacyWorkbook(sheet string, rows [][]string) ([]byte, error) {
	if sheet == "" || len([]rune(sheet)) > maxSheetName {
		return nil, fmt.Errorf("sheet name %q must be 1-%d characters", sheet, maxSheetName)
	}
	stream, err := biffStream(sheet, rows)
	if err != nil {
		return nil, err
	}
	return compoundFile("Workbook", stream)
}

type labelCell struct {
	row, col uint16
	sst      uint32
}

func biffStream(sheet string, rows [][]string) ([]byte, error) {
	if len(rows) > 1<<16 {
		return nil, errors.New("too many rows for an xls sheet")
	}
	var (
		strs  []string
		index = map[string]uint32{}
		cells []labelCell
	)
	for r, row := range rows {
		if len(row) > 256 {
			return nil, fmt.Errorf("row %d has %d cells, xls allows 256", r+1, len(row))
		}
		for c, v := range row {
			if v == "" {
				continue
			}
			i, ok := index[v]
			if !ok {
				i = uint32(len(strs))
				index[v] = i
				strs = append(strs, v)
			}
			cells = append(cells, labelCell{row: uint16(r), col: uint16(c), sst: i})
		}
	}

	sst := le.AppendUint32(nil, uint32(len(cells)))
	sst = le.AppendUint32(sst, uint32(len(strs)))
	for _, s := range strs {
		sst = appendUnicode(le.AppendUint16(sst, uint16(len(utf16.Encode([]rune(s))))), s)
	}
	if len(sst) > maxBIFFRecord {
		return nil, errors.New("shared strings exceed one SST record")
	}

	globals := func(sheetOffset uint32) []byte {
		var b []byte
		b = appendRecord(b, recBOF, bof(bofGlobals))
		b = appendRecord(b, recCodepage, le.AppendUint16(nil, codepageUTF16))
		bs := le.AppendUint32(nil, sheetOffset)
		bs = append(bs, 0, 0, byte(len(utf16.Encode([]rune(sheet)))))
		b = appendRecord(b, recBoundSheet, appendUnicode(bs, sheet))
		b = appendRecord(b, recSST, sst)
		return appendRecord(b, recEOF, nil)
	}
	// The offset field has a fixed width, so a first pass yields the length.
	out := globals(uint32(len(globals(0))))

	out = appendRecord(out, recBOF, bof(bofWorksheet))
	for _, c := range cells {
		body := le.AppendUint16(nil, c.row)
		body = le.AppendUint16(body, c.col)
		body = le.AppendUint16(body, 0)
		body = le.AppendUint32(body, c.sst)
		out = appendRecord(out, recLabelSST, body)
	}
	return appendRecord(out, recEOF, nil), nil
}

func bof(substream uint16) []byte {
	b := le.AppendUint16(nil, biffVersion8)
	b = le.AppendUint16(b, substream)
	b = le.AppendUint16(b, 0x0DBB) // build
	b = le.AppendUint16(b, 0x07CC) // year
	b = le.AppendUint32(b, 0)
	return le.AppendUint32(b, biffVersion8)
}

func appendRecord(b []byte, id uint16, body []byte) []byte {
	b = le.AppendUint16(b, id)
	b = le.AppendUint16(b, uint16(len(body)))
	return append(b, body...)
}

// appendUnicode writes the option byte and UTF-16LE characters of a BIFF8
// string; callers write the length prefix.
func appendUnicode(b []byte, s string) []byte {
	b = append(b, 0x01)
	for _, u := range utf16.Encode([]rune(s)) {
		b = le.AppendUint16(b, u)
	}
	return b
}

// compoundFile wraps one stream in a version 3 OLE2 container: FAT sectors,
// then the directory, then the stream. The stream is padded past the mini
// stream cutoff so it lives in regular sectors.
func compoundFile(name string, stream []byte) ([]byte, error) {
	size := max(len(stream), miniCutoff)
	size = (size + sectorSize - 1) / sectorSize * sectorSize
	padded := make([]byte, size)
	copy(padded, stream)

	perSector := sectorSize / 4
	streamSectors := size / sectorSize
	fatSectors := 1
	for fatSectors*perSector < fatSectors+1+streamSectors {
		fatSectors++
	}
	if fatSectors > maxHeaderFAT {
		return nil, errors.New("stream too large for a header-only FAT")
	}
	dirSector := fatSectors
	firstStream := dirSector + 1

	fat := make([]uint32, fatSectors*perSector)
	for i := range fat {
		fat[i] = freeSector
	}
	for i := range fatSectors {
		fat[i] = fatSector
	}
	fat[dirSector] = endOfChain
	for i := range streamSectors {
		s := firstStream + i
		fat[s] = uint32(s + 1)
	}
	fat[firstStream+streamSectors-1] = endOfChain

	header := make([]byte, sectorSize)
	copy(header, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	le.PutUint16(header[24:], 0x003E) // minor version
	le.PutUint16(header[26:], 0x0003) // major version
	le.PutUint16(header[28:], 0xFFFE) // little-endian byte order mark
	le.PutUint16(header[30:], 9)      // 512-byte sectors
	le.PutUint16(header[32:], 6)      // 64-byte mini sectors
	le.PutUint32(header[44:], uint32(fatSectors))
	le.PutUint32(header[48:], uint32(dirSector))
	le.PutUint32(header[56:], miniCutoff)
	le.PutUint32(header[60:], endOfChain) // no mini FAT
	le.PutUint32(header[68:], endOfChain) // no DIFAT sectors
	for i := range maxHeaderFAT {
		v := uint32(freeSector)
		if i < fatSectors {
			v = uint32(i)
		}
		le.PutUint32(header[headerFATStart+4*i:], v)
	}

	var buf bytes.Buffer
	buf.Grow(sectorSize * (1 + fatSectors + 1 + streamSectors))
	buf.Write(header)
	for _, v := range fat {
		_ = binary.Write(&buf, le, v)
	}
	buf.Write(dirEntry("Root Entry", dirTypeRoot, 1, endOfChain, 0))
	buf.Write(dirEntry(name, dirTypeStream, noStream, uint32(firstStream), uint32(size)))
	buf.Write(dirEntry("", 0, noStream, 0, 0))
	buf.Write(dirEntry("", 0, noStream, 0, 0))
	buf.Write(padded)
	return buf.Bytes(), nil
}

func dirEntry(name string, typ byte, child, start, size uint32) []byte {
	e := make([]byte, dirEntrySize)
	le.PutUint32(e[68:], noStream) // left sibling
	le.PutUint32(e[72:], noStream) // right sibling
	le.PutUint32(e[76:], child)
	if typ == 0 {
		return e
	}
	units := utf16.Encode([]rune(name))
	for i, u := range units {
		le.PutUint16(e[2*i:], u)
	}
	le.PutUint16(e[dirNameField:], uint16(2*(len(units)+1)))
	e[66] = typ
	e[67] = dirColorBlack
	le.PutUint32(e[116:], start)
	le.PutUint32(e[120:], size)
	return e
}
