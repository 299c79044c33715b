package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// WriteCSV writes the dataset's header and rows as comma-separated UTF-8.
func WriteCSV(w io.Writer, ds domain.Dataset, missingText string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Header()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(ds.Rows(missingText)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
