// Package mockportal serves deterministic synthetic CONAGUA archives for local
// development and tests. Archives follow the default path template
// /{kind}/{state}/{year}.zip and contain one positional CSV member. Seasonal
// outlook issues are served under /pronostico/.
package mockportal

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// stationsPerState is the number of synthetic stations in each archive.
const stationsPerState = 2

// Options controls which archives exist.
type Options struct {
	FirstYear int
	LastYear  int
	// Missing keys answer 404 even inside the year range.
	Missing map[domain.ArchiveKey]bool
	// ForecastThrough is the month of the newest published outlook issue.
	// Zero publishes none.
	ForecastThrough time.Time
}

// HasForecast reports whether the outlook issued in month of year exists.
func (o Options) HasForecast(year int, month time.Month) bool {
	if o.ForecastThrough.IsZero() {
		return false
	}
	issued := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	latest := time.Date(o.ForecastThrough.Year(), o.ForecastThrough.Month(), 1, 0, 0, 0, 0, time.UTC)
	return !issued.After(latest)
}

// Has reports whether the portal publishes an archive for key.
func (o Options) Has(key domain.ArchiveKey) bool {
	if key.Validate() != nil || o.Missing[key] {
		return false
	}
	return key.Year >= o.FirstYear && key.Year <= o.LastYear
}

// ForecastPath is the prefix of outlook issue URLs.
const ForecastPath = "/pronostico"

// Handler serves GET /{kind}/{state}/{year}.zip and outlook issues under
// ForecastPath.
func Handler(opts Options) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+ForecastPath+"/{file}", func(w http.ResponseWriter, r *http.Request) {
		year, month, ok := parseIssue(r.PathValue("file"))
		if !ok || !opts.HasForecast(year, month) {
			http.NotFound(w, r)
			return
		}
		data, err := ForecastIssue(year, month)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(data)
	})
	mux.HandleFunc("GET /{kind}/{state}/{file}", func(w http.ResponseWriter, r *http.Request) {
		key, ok := parseKey(r.PathValue("kind"), r.PathValue("state"), r.PathValue("file"))
		if !ok || !opts.Has(key) {
			http.NotFound(w, r)
			return
		}
		data, err := Archive(key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	})
	return mux
}

func parseKey(kindSeg, stateSeg, file string) (domain.ArchiveKey, bool) {
	yearText, ok := strings.CutSuffix(file, ".zip")
	if !ok {
		return domain.ArchiveKey{}, false
	}
	kind, err := domain.ParseKind(kindSeg)
	if err != nil {
		return domain.ArchiveKey{}, false
	}
	state, err := domain.ParseState(stateSeg)
	if err != nil {
		return domain.ArchiveKey{}, false
	}
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return domain.ArchiveKey{}, false
	}
	return domain.ArchiveKey{State: state, Kind: kind, Year: year}, true
}

// MemberName is the CSV file name inside key's archive.
func MemberName(key domain.ArchiveKey) string {
	return fmt.Sprintf("%s_%s_%d.csv", strings.ToLower(key.Kind.PortalCode()), strings.ToLower(key.State.Code()), key.Year)
}

// Archive builds the zip for key. The same key always yields the same bytes.
func Archive(key domain.ArchiveKey) ([]byte, error) {
	body, err := CSV(key)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     MemberName(key),
		Method:   zip.Deflate,
		Modified: time.Date(key.Year, time.December, 31, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CSV renders the archive member: a header row, then readings on the 1st
// and 15th of each month for each station. Every seventh reading is NULO.
func CSV(key domain.ArchiveKey) ([]byte, error) {
	rng := rand.New(rand.NewPCG(seed(key), uint64(key.Year)))

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"fecha", "estacion", "valor"}); err != nil {
		return nil, err
	}

	n := 0
	for m := time.January; m <= time.December; m++ {
		for _, d := range []int{1, 15} {
			date := time.Date(key.Year, m, d, 0, 0, 0, 0, time.UTC)
			for s := 1; s <= stationsPerState; s++ {
				n++
				station := fmt.Sprintf("%s%03d", key.State.INEGI(), s)
				value := "NULO"
				if n%7 != 0 {
					value = reading(rng, key.Kind)
				}
				if err := w.Write([]string{date.Format(domain.DateLayout), station, value}); err != nil {
					return nil, err
				}
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// RecordsPerArchive is the number of data rows in every synthetic archive.
const RecordsPerArchive = 12 * 2 * stationsPerState

func reading(rng *rand.Rand, kind domain.Kind) string {
	if kind == domain.Temperature {
		return strconv.FormatFloat(8+rng.Float64()*24, 'f', 1, 64)
	}
	return strconv.FormatFloat(rng.Float64()*40, 'f', 1, 64)
}

func seed(key domain.ArchiveKey) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key.String()))
	return h.Sum64()
}
