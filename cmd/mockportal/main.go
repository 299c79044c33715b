// Command mockportal serves deterministic synthetic CONAGUA archives for
// local development, or writes them to disk as fixtures.
//
// Usage:
//
//	go run ./cmd/mockportal -addr :9090 -first-year 1990 -last-year 2020 \
//	  -missing JAL/PRECIPITATION/1999
//
//	go run ./cmd/mockportal -dump testdata/portal -first-year 2019 -last-year 2020
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/mockportal"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("mockportal", flag.ContinueOnError)
	addr := flags.String("addr", ":9090", "listen address")
	firstYear := flags.Int("first-year", 1990, "first published year")
	lastYear := flags.Int("last-year", 2020, "last published year")
	missing := flags.String("missing", "", "comma-separated STATE/KIND/YEAR keys that answer 404")
	dump := flags.String("dump", "", "write every archive under this directory and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *lastYear < *firstYear {
		return fmt.Errorf("-last-year %d before -first-year %d", *lastYear, *firstYear)
	}

	missingKeys, err := parseKeys(*missing)
	if err != nil {
		return err
	}
	opts := mockportal.Options{FirstYear: *firstYear, LastYear: *lastYear, Missing: missingKeys}

	if *dump != "" {
		n, err := dumpArchives(*dump, opts)
		if err != nil {
			return err
		}
		log.Printf("wrote %d archives to %s", n, *dump)
		return nil
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mockportal.Handler(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("mock portal listening on %s (years %d-%d, %d missing)", *addr, *firstYear, *lastYear, len(missingKeys))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// parseKeys reads keys in the STATE/KIND/YEAR form ArchiveKey.String prints.
func parseKeys(s string) (map[domain.ArchiveKey]bool, error) {
	keys := map[domain.ArchiveKey]bool{}
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, "/")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid key %q: want STATE/KIND/YEAR", part)
		}
		state, err := domain.ParseState(fields[0])
		if err != nil {
			return nil, err
		}
		kind, err := domain.ParseKind(fields[1])
		if err != nil {
			return nil, err
		}
		year, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("invalid year in key %q", part)
		}
		keys[domain.ArchiveKey{State: state, Kind: kind, Year: year}] = true
	}
	return keys, nil
}

// dumpArchives writes every published archive as dir/KIND/STATE/YEAR.zip.
func dumpArchives(dir string, opts mockportal.Options) (int, error) {
	n := 0
	for year := opts.FirstYear; year <= opts.LastYear; year++ {
		for _, state := range domain.AllStates() {
			for _, kind := range []domain.Kind{domain.Temperature, domain.Precipitation} {
				key := domain.ArchiveKey{State: state, Kind: kind, Year: year}
				if !opts.Has(key) {
					continue
				}
				data, err := mockportal.Archive(key)
				if err != nil {
					return n, fmt.Errorf("build %s: %w", key, err)
				}
				path := filepath.Join(dir, kind.PortalCode(), state.Code(), strconv.Itoa(year)+".zip")
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return n, err
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return n, err
				}
				n++
			}
		}
	}
	return n, nil
}
