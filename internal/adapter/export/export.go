// Package export writes normalized datasets to CSV or XLSX files laid out as
// <root>/<year>/<state>/<kind>.<ext>.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/observability"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// Exporter writes one file per archive key under a root directory.
type Exporter struct {
	root        string
	format      Format
	missingText string
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewExporter creates a file exporter. missingText renders missing values.
func NewExporter(root string, format Format, missingText string, logger *slog.Logger, metrics *observability.Metrics) *Exporter {
	return &Exporter{
		root:        root,
		format:      format,
		missingText: missingText,
		logger:      logger,
		metrics:     metrics,
	}
}

// Path returns the destination file for key.
func (e *Exporter) Path(key domain.ArchiveKey) string {
	return filepath.Join(e.root, strconv.Itoa(key.Year), key.State.Code(), key.Kind.Slug()+"."+string(e.format))
}

// Export writes ds to the key's destination, replacing any previous file.
// An empty dataset still produces a file with the header row.
func (e *Exporter) Export(_ context.Context, key domain.ArchiveKey, ds domain.Dataset) (string, error) {
	dest := e.Path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	write := WriteCSV
	if e.format == FormatXLSX {
		write = WriteXLSX
	}
	if err := writeFileAtomic(dest, func(w io.Writer) error {
		return write(w, ds, e.missingText)
	}); err != nil {
		return "", fmt.Errorf("export %s: %w", key, err)
	}

	e.metrics.RecordsExported.Add(float64(ds.Len()))
	e.logger.Info("dataset exported", "key", key.String(), "path", dest, "records", ds.Len())
	return dest, nil
}

// Load implements pipeline.Loader.
func (e *Exporter) Load(ctx context.Context, key domain.ArchiveKey, ds domain.Dataset) error {
	_, err := e.Export(ctx, key, ds)
	return err
}

func writeFileAtomic(dest string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-"+filepath.Base(dest)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
