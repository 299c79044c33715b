package pipeline

import (
	"fmt"
	"iter"
	"path"
	"strings"

	"github.com/couchcryptid/conagua-etl/internal/adapter/spreadsheet"
	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// textExtensions are member types parsed as delimited text. Members without
// an extension are sniffed.
var textExtensions = map[string]bool{
	".csv": true,
	".txt": true,
	".tsv": true,
	".dat": true,
	"":     true,
}

// RecordTransformer turns extracted archive members into normalized datasets
// using a domain.Parser.
type RecordTransformer struct {
	parser *domain.Parser
	order  domain.ColumnOrder
}

// NewTransformer creates a RecordTransformer for a layout. The layout's
// column order is used for every dataset.
func NewTransformer(layout domain.Layout) (*RecordTransformer, error) {
	p, err := domain.NewParser(layout)
	if err != nil {
		return nil, err
	}
	return &RecordTransformer{parser: p, order: layout.ColumnOrder}, nil
}

// Transform parses every tabular member of key's archive and normalizes the
// records into one dataset. Unsupported or unreadable members are skipped
// with a warning.
func (t *RecordTransformer) Transform(key domain.ArchiveKey, members []domain.Member) (domain.Dataset, []domain.ParseWarning, error) {
	var warnings []domain.ParseWarning
	streams := make([]*domain.RecordStream, 0, len(members))

	for _, m := range members {
		stream, warn := t.parseMember(key, m)
		if warn != nil {
			warnings = append(warnings, *warn)
			continue
		}
		streams = append(streams, stream)
	}

	ds, err := domain.NormalizeFor(key.Kind, key.State, chain(streams), t.order)
	for _, s := range streams {
		warnings = append(warnings, s.Warnings()...)
	}
	if err != nil {
		return domain.Dataset{}, warnings, fmt.Errorf("normalize: %w", err)
	}
	return ds, warnings, nil
}

func (t *RecordTransformer) parseMember(key domain.ArchiveKey, m domain.Member) (*domain.RecordStream, *domain.ParseWarning) {
	src := domain.Source{Name: m.Name, Year: key.Year}

	if spreadsheet.IsWorkbook(m.Name, m.Data) {
		rows, err := spreadsheet.ReadRows(m.Data)
		if err != nil {
			return nil, &domain.ParseWarning{Member: m.Name, Reason: fmt.Sprintf("unreadable workbook, member skipped: %v", err)}
		}
		return t.parser.ParseRows(src, rows, key.Kind, key.State), nil
	}

	if !textExtensions[strings.ToLower(path.Ext(m.Name))] {
		return nil, &domain.ParseWarning{Member: m.Name, Reason: "unsupported member type, skipped"}
	}
	return t.parser.ParseSource(src, m.Data, key.Kind, key.State), nil
}

// chain yields the records of each stream in turn.
func chain(streams []*domain.RecordStream) iter.Seq[domain.MeasurementRecord] {
	return func(yield func(domain.MeasurementRecord) bool) {
		for _, s := range streams {
			for r := range s.All() {
				if !yield(r) {
					return
				}
			}
		}
	}
}
