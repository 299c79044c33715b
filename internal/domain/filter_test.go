package domain

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterDataset(t *testing.T) Dataset {
	t.Helper()
	records := []MeasurementRecord{
		{Date: day(2020, time.January, 1), State: Sonora, Kind: Temperature, Value: MustValue("14.1")},
		{Date: day(2020, time.January, 31), State: Sonora, Kind: Temperature, Value: MustValue("15.2")},
		{Date: day(2020, time.February, 1), State: Sonora, Kind: Temperature, Value: Missing()},
		{Date: day(2020, time.March, 15), State: Sonora, Kind: Temperature, Value: MustValue("22.0")},
	}
	ds, err := Normalize(slices.Values(records), DefaultColumnOrder)
	require.NoError(t, err)
	return ds
}

func TestFilter(t *testing.T) {
	ds := filterDataset(t)

	tests := []struct {
		name  string
		r     DateRange
		dates []time.Time
	}{
		{"inclusive both ends", DateRange{Start: day(2020, time.January, 1), End: day(2020, time.January, 31)},
			[]time.Time{day(2020, time.January, 1), day(2020, time.January, 31)}},
		{"single day", DateRange{Start: day(2020, time.February, 1), End: day(2020, time.February, 1)},
			[]time.Time{day(2020, time.February, 1)}},
		{"start only", DateRange{Start: day(2020, time.February, 1)},
			[]time.Time{day(2020, time.February, 1), day(2020, time.March, 15)}},
		{"end only", DateRange{End: day(2020, time.January, 1)},
			[]time.Time{day(2020, time.January, 1)}},
		{"time of day ignored", DateRange{Start: time.Date(2020, time.March, 15, 18, 0, 0, 0, time.UTC), End: time.Date(2020, time.March, 15, 1, 0, 0, 0, time.UTC)},
			[]time.Time{day(2020, time.March, 15)}},
		{"nothing in range", DateRange{Start: day(2021, time.January, 1), End: day(2021, time.December, 31)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Filter(ds, tt.r)
			require.NoError(t, err)
			var got []time.Time
			for _, r := range out.Records {
				got = append(got, r.Date)
			}
			assert.Equal(t, tt.dates, got)
			assert.Equal(t, ds.Kind, out.Kind)
			assert.Equal(t, ds.State, out.State)
			assert.Equal(t, ds.Columns, out.Columns)
		})
	}
}

func TestFilter_FullSpanReturnsEqualDataset(t *testing.T) {
	ds := filterDataset(t)

	out, err := Filter(ds, DateRange{Start: day(2020, time.January, 1), End: day(2020, time.March, 15)})
	require.NoError(t, err)
	assert.Equal(t, ds, out)

	out, err = Filter(ds, DateRange{})
	require.NoError(t, err)
	assert.Equal(t, ds, out)
}

func TestFilter_InvalidRange(t *testing.T) {
	ds := filterDataset(t)

	_, err := Filter(ds, DateRange{Start: day(2020, time.February, 2), End: day(2020, time.February, 1)})
	require.Error(t, err)

	var rangeErr *InvalidRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, day(2020, time.February, 2), rangeErr.Start)
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Equal(t, "invalid_range", FailureKind(err))
}

func TestFilter_InvalidRangeOnEmptyDataset(t *testing.T) {
	_, err := Filter(Dataset{}, DateRange{Start: day(2020, time.February, 2), End: day(2020, time.January, 1)})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("2020-01-01", "")
	require.NoError(t, err)
	assert.Equal(t, day(2020, time.January, 1), r.Start)
	assert.True(t, r.End.IsZero())

	_, err = ParseDateRange("2020-13-01", "")
	assert.Error(t, err)

	_, err = ParseDateRange("2020-02-01", "2020-01-01")
	assert.ErrorIs(t, err, ErrInvalidRange)
}
