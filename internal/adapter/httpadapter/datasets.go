package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/couchcryptid/conagua-etl/internal/adapter/export"
	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/pipeline"
)

// Runner processes a single archive key.
type Runner interface {
	Run(ctx context.Context, key domain.ArchiveKey, r domain.DateRange) pipeline.Result
}

type datasetHandler struct {
	runner      Runner
	missingText string
	logger      *slog.Logger
}

// datasetResponse is the JSON form of a processed key.
type datasetResponse struct {
	Key      string                `json:"key"`
	State    string                `json:"state"`
	Kind     string                `json:"kind"`
	Year     int                   `json:"year"`
	Columns  []string              `json:"columns"`
	Records  []map[string]any      `json:"records"`
	Warnings []domain.ParseWarning `json:"warnings"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (h *datasetHandler) serveDataset(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r.PathValue("state"), r.PathValue("kind"), r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	q := r.URL.Query()
	rng, err := domain.ParseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		kind := domain.FailureKind(err)
		if kind != "invalid_range" {
			kind = "bad_request"
		}
		writeError(w, http.StatusBadRequest, kind, err)
		return
	}

	format := q.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != string(export.FormatCSV) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("unsupported format %q: want json or csv", format))
		return
	}

	res := h.runner.Run(r.Context(), key, rng)
	if res.Err != nil {
		kind := domain.FailureKind(res.Err)
		writeError(w, statusFor(kind), kind, res.Err)
		return
	}

	w.Header().Set("X-Parse-Warnings", strconv.Itoa(len(res.Warnings)))
	if format == string(export.FormatCSV) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%d_%s_%s.csv", key.Year, key.State.Code(), key.Kind.Slug())))
		w.WriteHeader(http.StatusOK)
		if err := export.WriteCSV(w, res.Dataset, h.missingText); err != nil {
			h.logger.Warn("write csv response failed", "key", key.String(), "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toResponse(key, res, h.missingText))
}

func parseKey(stateText, kindText, yearText string) (domain.ArchiveKey, error) {
	state, err := domain.ParseState(stateText)
	if err != nil {
		return domain.ArchiveKey{}, err
	}
	kind, err := domain.ParseKind(kindText)
	if err != nil {
		return domain.ArchiveKey{}, err
	}
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return domain.ArchiveKey{}, fmt.Errorf("invalid year %q", yearText)
	}
	key := domain.ArchiveKey{State: state, Kind: kind, Year: year}
	if err := key.Validate(); err != nil {
		return domain.ArchiveKey{}, err
	}
	return key, nil
}

func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "transport", "corrupt_archive":
		return http.StatusBadGateway
	case "invalid_range":
		return http.StatusBadRequest
	case "canceled":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toResponse(key domain.ArchiveKey, res pipeline.Result, missingText string) datasetResponse {
	ds := res.Dataset
	records := make([]map[string]any, 0, ds.Len())
	for _, rec := range ds.Records {
		row := make(map[string]any, len(ds.Columns))
		for _, f := range ds.Columns {
			if f == domain.FieldValue {
				row[string(f)] = rec.Value
				continue
			}
			row[string(f)] = f.Cell(rec, missingText)
		}
		records = append(records, row)
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []domain.ParseWarning{}
	}
	return datasetResponse{
		Key:      key.String(),
		State:    key.State.Code(),
		Kind:     key.Kind.String(),
		Year:     key.Year,
		Columns:  ds.Header(),
		Records:  records,
		Warnings: warnings,
	}
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
