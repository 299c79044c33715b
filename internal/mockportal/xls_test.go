package mockportal

import (
	"encoding/binary"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyWorkbook_Container(t *testing.T) {
	data, err := LegacyWorkbook("2019", [][]string{{"Entidad", "Ene"}, {"Jalisco", "10.5"}})
	require.NoError(t, err)

	assert.Equal(t, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, data[:8])
	// Header, one FAT sector, one directory sector and a stream padded to
	// the mini stream cutoff.
	require.Len(t, data, sectorSize*3+miniCutoff)

	dir := data[2*sectorSize : 3*sectorSize]
	wb := dir[dirEntrySize : 2*dirEntrySize]
	assert.Equal(t, "Workbook", entryName(wb))
	assert.Equal(t, byte(dirTypeStream), wb[66])
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(wb[116:]))
	assert.Equal(t, uint32(miniCutoff), binary.LittleEndian.Uint32(wb[120:]))

	stream := data[3*sectorSize:]
	assert.Equal(t, uint16(recBOF), binary.LittleEndian.Uint16(stream))
	assert.Equal(t, uint16(biffVersion8), binary.LittleEndian.Uint16(stream[4:]))
}

func TestLegacyWorkbook_SheetOffsetPointsAtWorksheetBOF(t *testing.T) {
	data, err := LegacyWorkbook("Datos", [][]string{{"a", "b"}, {"", "a"}})
	require.NoError(t, err)
	stream := data[3*sectorSize:]

	offset := -1
	for pos := 0; pos+4 <= len(stream); {
		id := binary.LittleEndian.Uint16(stream[pos:])
		size := int(binary.LittleEndian.Uint16(stream[pos+2:]))
		if id == recBoundSheet {
			offset = int(binary.LittleEndian.Uint32(stream[pos+4:]))
			break
		}
		pos += 4 + size
	}
	require.Positive(t, offset)
	assert.Equal(t, uint16(recBOF), binary.LittleEndian.Uint16(stream[offset:]))
	assert.Equal(t, uint16(bofWorksheet), binary.LittleEndian.Uint16(stream[offset+6:]))
}

func TestLegacyWorkbook_Rejects(t *testing.T) {
	_, err := LegacyWorkbook("", nil)
	assert.Error(t, err)
	_, err = LegacyWorkbook(strings.Repeat("x", 40), nil)
	assert.Error(t, err)
	_, err = LegacyWorkbook("big", [][]string{make([]string, 300)})
	assert.Error(t, err)
}

func entryName(e []byte) string {
	n := int(binary.LittleEndian.Uint16(e[dirNameField:]))/2 - 1
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(e[2*i:])
	}
	return string(utf16.Decode(units))
}
