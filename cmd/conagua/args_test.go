package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

func TestParseYears(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"1999", []int{1999}},
		{"1999,2001-2003", []int{1999, 2001, 2002, 2003}},
		{" 2003 , 2001-2002, 2002 ", []int{2001, 2002, 2003}},
		{"2000-2000", []int{2000}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseYears(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseYears(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParseYears_Invalid(t *testing.T) {
	for _, in := range []string{"", " , ", "abc", "2003-2001", "1999-x"} {
		_, err := parseYears(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseStates(t *testing.T) {
	got, err := parseStates("JAL, cdmx,Jalisco,26")
	require.NoError(t, err)
	assert.Equal(t, []domain.State{domain.Jalisco, domain.CiudadDeMexico, domain.Sonora}, got)

	all, err := parseStates("all")
	require.NoError(t, err)
	assert.Len(t, all, 32)

	_, err = parseStates("JAL,XX")
	assert.Error(t, err)
}

func TestParseKinds(t *testing.T) {
	got, err := parseKinds("")
	require.NoError(t, err)
	assert.Equal(t, []domain.Kind{domain.Temperature, domain.Precipitation}, got)

	got, err = parseKinds("lluvia,prec")
	require.NoError(t, err)
	assert.Equal(t, []domain.Kind{domain.Precipitation}, got)

	_, err = parseKinds("wind")
	assert.Error(t, err)
}

func TestBuildKeys(t *testing.T) {
	keys, err := buildKeys(
		[]domain.State{domain.Jalisco, domain.Colima},
		[]domain.Kind{domain.Precipitation},
		[]int{1999, 2000},
	)
	require.NoError(t, err)
	want := []domain.ArchiveKey{
		{State: domain.Jalisco, Kind: domain.Precipitation, Year: 1999},
		{State: domain.Colima, Kind: domain.Precipitation, Year: 1999},
		{State: domain.Jalisco, Kind: domain.Precipitation, Year: 2000},
		{State: domain.Colima, Kind: domain.Precipitation, Year: 2000},
	}
	assert.Equal(t, want, keys)

	_, err = buildKeys([]domain.State{domain.Jalisco}, []domain.Kind{domain.Precipitation}, []int{1800})
	assert.Error(t, err)
}

func TestSelection_InvalidRange(t *testing.T) {
	_, _, err := selection("JAL", "", "2020", "2020-03-01", "2020-02-01")
	require.ErrorIs(t, err, domain.ErrInvalidRange)
}
