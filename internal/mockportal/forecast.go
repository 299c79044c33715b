package mockportal

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// parseIssue reverses domain.ForecastIssueName.
func parseIssue(file string) (int, time.Month, bool) {
	parts := strings.Split(strings.TrimSuffix(file, ".zip"), "-")
	if len(parts) != 7 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[5])
	if err != nil {
		return 0, 0, false
	}
	month := time.Month(m)
	if domain.ForecastIssueName(year, month) != file {
		return 0, 0, false
	}
	return year, month, true
}

// ForecastValue is the outlook's figure for state in the given month, so
// tests can predict merged values.
func ForecastValue(state domain.State, year int, month time.Month) string {
	rng := rand.New(rand.NewPCG(uint64(state), uint64(year*100+int(month))))
	return strconv.FormatFloat(rng.Float64()*300, 'f', 1, 64)
}

// ForecastIssue builds the outlook zip issued in month of year. Like the
// portal's, it holds one Latin-1 state table per covered month under an
// ESTADISTICAS folder, next to municipal tables and maps the ETL ignores.
func ForecastIssue(year int, month time.Month) ([]byte, error) {
	// "05-MJJ-Pronostico-de-Mayo-2025-Lluvia.zip" unpacks into
	// "05-MJJ-Pronostico-Lluvia/".
	parts := strings.SplitN(domain.ForecastIssueName(year, month), "-", 3)
	root := parts[0] + "-" + parts[1] + "-Pronostico-Lluvia/"

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(path string, body []byte) error {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     root + path,
			Method:   zip.Deflate,
			Modified: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	}

	if err := write("MAPAS/mapa.png", []byte("\x89PNG")); err != nil {
		return nil, err
	}
	for i := range 3 {
		covered := time.Date(year, month+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		table, err := stateTable(covered.Year(), covered.Month())
		if err != nil {
			return nil, err
		}
		stem := fmt.Sprintf("Pronostico_%%s_%s_%d_Lluvia.csv", domain.SpanishMonthName(covered.Month()), covered.Year())
		if err := write("ESTADISTICAS/"+fmt.Sprintf(stem, "Estados"), table); err != nil {
			return nil, err
		}
		if err := write("ESTADISTICAS/"+fmt.Sprintf(stem, "Municipios"), []byte("municipio,pronostico (mm)\n")); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stateTable(year int, month time.Month) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"", "cv_estado", "Lluvia normal (mm)", "Pronóstico (mm)", "Anomalía (%)"}); err != nil {
		return nil, err
	}
	for _, s := range domain.AllStates() {
		if err := w.Write([]string{s.Name(), s.INEGI(), "100.0", ForecastValue(s, year, month), "0"}); err != nil {
			return nil, err
		}
	}
	if err := w.Write([]string{"Nacional", "00", "100.0", "120.0", "20"}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return charmap.ISO8859_1.NewEncoder().Bytes(buf.Bytes())
}
