package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// parseStates reads a comma list of state codes, INEGI numbers or names.
// "all" or an empty list selects every state.
func parseStates(s string) ([]domain.State, error) {
	if s = strings.TrimSpace(s); s == "" || strings.EqualFold(s, "all") {
		return domain.AllStates(), nil
	}
	var states []domain.State
	for _, part := range splitList(s) {
		st, err := domain.ParseState(part)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(states, st) {
			states = append(states, st)
		}
	}
	return states, nil
}

// parseKinds reads a comma list of measurement kinds. An empty list selects
// both kinds.
func parseKinds(s string) ([]domain.Kind, error) {
	if strings.TrimSpace(s) == "" {
		return []domain.Kind{domain.Temperature, domain.Precipitation}, nil
	}
	var kinds []domain.Kind
	for _, part := range splitList(s) {
		k, err := domain.ParseKind(part)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(kinds, k) {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// parseYears reads years and inclusive ranges, e.g. "1999,2001-2003".
// The result is sorted with duplicates removed.
func parseYears(s string) ([]int, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("no years given")
	}
	var years []int
	for _, part := range parts {
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		last := first
		if isRange {
			if last, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid year range %q", part)
			}
		}
		if last < first {
			return nil, fmt.Errorf("invalid year range %q: end before start", part)
		}
		for y := first; y <= last; y++ {
			years = append(years, y)
		}
	}
	slices.Sort(years)
	return slices.Compact(years), nil
}

// buildKeys expands the selection year by year, then state, then kind.
func buildKeys(states []domain.State, kinds []domain.Kind, years []int) ([]domain.ArchiveKey, error) {
	keys := make([]domain.ArchiveKey, 0, len(states)*len(kinds)*len(years))
	for _, y := range years {
		for _, st := range states {
			for _, k := range kinds {
				key := domain.ArchiveKey{State: st, Kind: k, Year: y}
				if err := key.Validate(); err != nil {
					return nil, err
				}
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
