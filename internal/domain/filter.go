package domain

// Filter keeps the records whose date falls within r, inclusive at both ends.
// An empty result is valid. A range whose start is after its end returns an
// InvalidRangeError.
func Filter(ds Dataset, r DateRange) (Dataset, error) {
	if err := r.Validate(); err != nil {
		return Dataset{}, err
	}
	if r.IsZero() {
		return ds, nil
	}
	out := Dataset{Kind: ds.Kind, State: ds.State, Columns: ds.Columns}
	for _, rec := range ds.Records {
		if r.Contains(rec.Date) {
			out.Records = append(out.Records, rec)
		}
	}
	return out, nil
}
