// Package domain models CONAGUA / SMN state-level climate data and the
// pure stages of the extraction pipeline: parsing, normalization and date
// filtering.
//
// # Data Source
//
// The Servicio Meteorológico Nacional publishes per-state temperature and
// precipitation summaries as zip archives. Each archive bundles one or more
// tabular members (CSV or XLSX) for one state, measurement kind and year.
// The portal path names the kind with its internal code: "TMED" for mean
// temperature and "PREC" for precipitation.
//
// # Portal Data Conventions
//
// Row shapes:
//
//	positional:  "2020-01-15, 12, 3.4"  →  date, station id, value
//	monthly:     "Jalisco, 12.1, 0.0, ..., 850.3"  →  entity, ene..dic, anual
//
// Monthly members are yearly matrices with one row per federal entity plus a
// "Nacional" row. Some years carry a title row ("PRECIPITACIÓN A NIVEL
// NACIONAL Y POR ENTIDAD FEDERATIVA") above the real header. The parser keeps
// only rows naming the requested entity, so titles, headers and the national
// row fall out without special cases. The year comes from the member name,
// e.g. "2019Precip.xlsx".
//
// Entity names:
//
//	Names appear with and without accents and in any case ("MICHOACÁN",
//	"Michoacan de Ocampo"). [ParseState] folds diacritics and case before
//	lookup and also accepts short codes ("JAL") and INEGI keys ("14").
//
// Numbers:
//
//	Decimal separator is configurable ("." or ","). With "," dots are read as
//	thousands separators. Values are kept as exact decimals.
//
// Missing data:
//
//	"NULO", "ND", "S/D" and the reserved flag -99999 mean no reading. Blank
//	cells are also missing. [Missing] is distinct from a reported zero, which
//	matters for precipitation where 0.0 mm is a real observation.
//
// Encoding:
//
//	Older exports are Windows-1252. In auto mode text that is not valid
//	UTF-8 is decoded as Windows-1252.
//
// # Warnings
//
// Row problems never fail a member. A row with an unparsable date is dropped
// and a [ParseWarning] recorded; an unparsable value becomes [Missing] with a
// warning. Dates outside the archive year or in the future are kept with a
// warning.
package domain
