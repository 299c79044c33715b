package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		in   string
		want State
	}{
		{"JAL", Jalisco},
		{"jal", Jalisco},
		{"Jalisco", Jalisco},
		{"14", Jalisco},
		{"09", CiudadDeMexico},
		{"Ciudad de México", CiudadDeMexico},
		{"DISTRITO FEDERAL", CiudadDeMexico},
		{"México", Mexico},
		{"Estado de México", Mexico},
		{"  nuevo   LEÓN ", NuevoLeon},
		{"Veracruz de Ignacio de la Llave", Veracruz},
		{"QROO", QuintanaRoo},
		{"Querétaro", Queretaro},
		{"32", Zacatecas},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseState(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseState_Unknown(t *testing.T) {
	for _, in := range []string{"", "nacional", "0", "33", "Texas"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseState(in)
			assert.Error(t, err)
		})
	}
}

func TestStates_RoundTrip(t *testing.T) {
	states := AllStates()
	require.Len(t, states, 32)
	seen := map[string]bool{}
	for _, s := range states {
		assert.True(t, s.Valid())
		assert.False(t, seen[s.Code()], "duplicate code %s", s.Code())
		seen[s.Code()] = true

		byCode, err := ParseState(s.Code())
		require.NoError(t, err)
		assert.Equal(t, s, byCode)

		byName, err := ParseState(s.Name())
		require.NoError(t, err)
		assert.Equal(t, s, byName)

		byINEGI, err := ParseState(s.INEGI())
		require.NoError(t, err)
		assert.Equal(t, s, byINEGI)
	}
}

func TestState_InvalidRendering(t *testing.T) {
	var s State
	assert.False(t, s.Valid())
	assert.Empty(t, s.Code())
	assert.Equal(t, "State(0)", s.String())
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"precipitacion", Precipitation},
		{"Precipitación", Precipitation},
		{"lluvia", Precipitation},
		{"RAIN", Precipitation},
		{"PREC", Precipitation},
		{"temperatura", Temperature},
		{"temp", Temperature},
		{"TMED", Temperature},
		{"temperature", Temperature},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseKind("humidity")
	assert.Error(t, err)
}

func TestArchiveKey(t *testing.T) {
	key := ArchiveKey{State: Jalisco, Kind: Precipitation, Year: 1999}
	require.NoError(t, key.Validate())
	assert.Equal(t, "JAL/PRECIPITATION/1999", key.String())
	assert.Equal(t, "jal_prec_1999.zip", key.CacheName())

	assert.Error(t, ArchiveKey{Kind: Precipitation, Year: 1999}.Validate())
	assert.Error(t, ArchiveKey{State: Jalisco, Year: 1999}.Validate())
	assert.Error(t, ArchiveKey{State: Jalisco, Kind: Temperature, Year: 1800}.Validate())
}

func TestFailureKind(t *testing.T) {
	key := ArchiveKey{State: Jalisco, Kind: Precipitation, Year: 1999}
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&KeyError{Key: key, Err: &NotFoundError{Key: key}}, "not_found"},
		{fmt.Errorf("wrapped: %w", &TransportError{Key: key, Err: errors.New("reset")}), "transport"},
		{&CorruptArchiveError{Err: errors.New("zip: not a valid zip file")}, "corrupt_archive"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FailureKind(tt.err))
	}

	keyErr := &KeyError{Key: key, Err: &NotFoundError{Key: key, URL: "http://portal/PREC/JAL/1999.zip"}}
	assert.Contains(t, keyErr.Error(), "JAL/PRECIPITATION/1999")
	assert.Contains(t, keyErr.Error(), "not found")
}
