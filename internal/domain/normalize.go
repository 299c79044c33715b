package domain

import (
	"fmt"
	"iter"
	"slices"
)

// Dataset is an ordered set of records sharing one kind and one state,
// rendered through a fixed column order.
type Dataset struct {
	Kind    Kind
	State   State
	Columns ColumnOrder
	Records []MeasurementRecord
}

// All yields the dataset's records in order.
func (d Dataset) All() iter.Seq[MeasurementRecord] {
	return slices.Values(d.Records)
}

// Len returns the number of records.
func (d Dataset) Len() int {
	return len(d.Records)
}

// Header returns the column names in output order.
func (d Dataset) Header() []string {
	return d.Columns.Names()
}

// Rows renders every record as cells in column order.
func (d Dataset) Rows(missingText string) [][]string {
	out := make([][]string, len(d.Records))
	for i, r := range d.Records {
		row := make([]string, len(d.Columns))
		for j, f := range d.Columns {
			row[j] = f.Cell(r, missingText)
		}
		out[i] = row
	}
	return out
}

// Normalize collects records into a Dataset rendered through order. Record
// values and row order are unchanged, so normalizing a dataset's own records
// with the same order yields an equal dataset. All records must share the
// first record's kind and state.
func Normalize(records iter.Seq[MeasurementRecord], order ColumnOrder) (Dataset, error) {
	cols, err := ParseColumnOrder(order.Names())
	if err != nil {
		return Dataset{}, fmt.Errorf("normalize: %w", err)
	}
	ds := Dataset{Columns: cols}
	for r := range records {
		if len(ds.Records) == 0 {
			ds.Kind = r.Kind
			ds.State = r.State
		} else if r.Kind != ds.Kind || r.State != ds.State {
			return Dataset{}, fmt.Errorf("normalize: record %s/%s after %s/%s: %w",
				r.State, r.Kind, ds.State, ds.Kind, ErrMixedDataset)
		}
		ds.Records = append(ds.Records, r)
	}
	return ds, nil
}

// NormalizeFor is Normalize for a dataset whose kind and state are known up
// front, so an empty input still produces a labelled dataset. Records of a
// different kind or state are rejected.
func NormalizeFor(kind Kind, state State, records iter.Seq[MeasurementRecord], order ColumnOrder) (Dataset, error) {
	ds, err := Normalize(records, order)
	if err != nil {
		return Dataset{}, err
	}
	if ds.Len() == 0 {
		ds.Kind, ds.State = kind, state
		return ds, nil
	}
	if ds.Kind != kind || ds.State != state {
		return Dataset{}, fmt.Errorf("normalize: records are %s/%s, want %s/%s: %w",
			ds.State, ds.Kind, state, kind, ErrMixedDataset)
	}
	return ds, nil
}

// Merge appends other's records to d. Both must share kind and state.
func (d Dataset) Merge(other Dataset) (Dataset, error) {
	if other.Len() == 0 {
		return d, nil
	}
	if d.Len() > 0 && (d.Kind != other.Kind || d.State != other.State) {
		return Dataset{}, fmt.Errorf("merge %s/%s into %s/%s: %w", other.State, other.Kind, d.State, d.Kind, ErrMixedDataset)
	}
	out := Dataset{Kind: other.Kind, State: other.State, Columns: d.Columns}
	out.Records = make([]MeasurementRecord, 0, len(d.Records)+len(other.Records))
	out.Records = append(out.Records, d.Records...)
	out.Records = append(out.Records, other.Records...)
	return out, nil
}

// SortByDate returns a copy ordered by date, then station. The sort is
// stable so same-day readings keep their source order.
func (d Dataset) SortByDate() Dataset {
	out := d
	out.Records = slices.Clone(d.Records)
	slices.SortStableFunc(out.Records, func(a, b MeasurementRecord) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if a.StationID < b.StationID {
			return -1
		}
		if a.StationID > b.StationID {
			return 1
		}
		return 0
	})
	return out
}
