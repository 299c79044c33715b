package forecast_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/conagua-etl/internal/adapter/forecast"
	"github.com/couchcryptid/conagua-etl/internal/domain"
	"github.com/couchcryptid/conagua-etl/internal/mockportal"
	"github.com/couchcryptid/conagua-etl/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func newSource(t *testing.T, through time.Time) *forecast.Source {
	t.Helper()
	srv := httptest.NewServer(mockportal.Handler(mockportal.Options{ForecastThrough: through}))
	t.Cleanup(srv.Close)
	return forecast.NewSource(srv.URL+mockportal.ForecastPath, 5*time.Second, 1<<20, discardLogger())
}

func TestIsStateTable(t *testing.T) {
	assert.True(t, forecast.IsStateTable("ESTADISTICAS/Pronostico_Estados_Mayo_2025_Lluvia.csv"))
	assert.True(t, forecast.IsStateTable("05-MJJ-Pronostico-Lluvia/ESTADISITCAS/Pronostico_Estados_Mayo_2025_Lluvia.CSV"))
	assert.False(t, forecast.IsStateTable("ESTADISTICAS/Pronostico_Municipios_Mayo_2025_Lluvia.csv"))
	assert.False(t, forecast.IsStateTable("MAPAS/Pronostico_Estados_Mayo_2025_Lluvia.csv"))
	assert.False(t, forecast.IsStateTable("ESTADISTICAS/Pronostico_Estados_Mayo_2025_Lluvia.xlsx"))
}

func TestParseTable(t *testing.T) {
	text := ",cv_estado,Lluvia normal (mm),Pronóstico (mm)\nMichoacán,16,150.0,210.4\nNacional,00,100,120\nJalisco,14,180,\n"
	data, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)

	f, err := forecast.ParseTable("ESTADISTICAS/Pronostico_Estados_Junio_2025_Lluvia.csv", data)
	require.NoError(t, err)

	assert.Equal(t, 2025, f.Year)
	assert.Equal(t, time.June, f.Month)
	require.Len(t, f.Values, 2, "national total is skipped")
	assert.True(t, f.Values[domain.Michoacan].Equal(domain.MustValue("210.4")))
	assert.True(t, f.Values[domain.Jalisco].IsMissing())
}

func TestParseTable_Rejects(t *testing.T) {
	_, err := forecast.ParseTable("ESTADISTICAS/Pronostico_Estados.csv", []byte(",pronostico (mm)\n"))
	assert.Error(t, err, "no month in name")
	_, err = forecast.ParseTable("ESTADISTICAS/Pronostico_Estados_Junio_2025.csv", []byte("estado,normal\n"))
	assert.Error(t, err, "no forecast column")
}

func TestParse_NoStateTables(t *testing.T) {
	_, err := forecast.Parse([]domain.Member{{Name: "MAPAS/mapa.png", Data: []byte("png")}})
	assert.Error(t, err)
}

func TestSource_IssueFromMockPortal(t *testing.T) {
	src := newSource(t, time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))

	issue, err := src.Issue(context.Background(), 2025, time.May)
	require.NoError(t, err)
	require.Len(t, issue.Forecasts, 3)
	assert.Equal(t, []time.Month{time.May, time.June, time.July},
		[]time.Month{issue.Forecasts[0].Month, issue.Forecasts[1].Month, issue.Forecasts[2].Month})
	assert.Len(t, issue.Forecasts[0].Values, len(domain.AllStates()))
	assert.True(t, issue.Forecasts[1].Values[domain.NuevoLeon].Equal(
		domain.MustValue(mockportal.ForecastValue(domain.NuevoLeon, 2025, time.June))))
}

func TestSource_LatestFallsBackToPreviousMonth(t *testing.T) {
	src := newSource(t, time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))

	issue, err := src.Latest(context.Background(), time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.May, issue.Month)
	assert.Contains(t, issue.URL, "05-MJJ-Pronostico-de-Mayo-2025-Lluvia.zip")
}

func TestSource_LatestCrossesYearBoundary(t *testing.T) {
	src := newSource(t, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC))

	issue, err := src.Latest(context.Background(), time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2024, issue.Year)
	assert.Equal(t, time.December, issue.Month)
	assert.Equal(t, 2025, issue.Forecasts[2].Year, "December issue covers February of the next year")
}

func TestSource_LatestGivesUpAfterTwoMonths(t *testing.T) {
	src := newSource(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))

	_, err := src.Latest(context.Background(), time.Date(2025, time.May, 10, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrIssueNotFound)
}

// --- Merger ---

type countingSource struct {
	calls atomic.Int64
	issue forecast.Issue
	err   error
}

func (s *countingSource) Latest(context.Context, time.Time) (forecast.Issue, error) {
	s.calls.Add(1)
	return s.issue, s.err
}

func juneIssue() forecast.Issue {
	return forecast.Issue{Year: 2025, Month: time.June, Forecasts: []domain.MonthlyForecast{
		{Year: 2025, Month: time.June, Values: map[domain.State]domain.Value{domain.Jalisco: domain.MustValue("180.5")}},
		{Year: 2025, Month: time.July, Values: map[domain.State]domain.Value{domain.Jalisco: domain.MustValue("220")}},
	}}
}

func emptyDataset(state domain.State, kind domain.Kind) domain.Dataset {
	return domain.Dataset{Kind: kind, State: state, Columns: domain.DefaultColumnOrder}
}

func TestMerger_MergesCurrentYearPrecipitation(t *testing.T) {
	freezeClock(t, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))
	src := &countingSource{issue: juneIssue()}
	metrics := observability.NewMetricsForTesting()
	m := forecast.NewMerger(src, discardLogger(), metrics)
	key := domain.ArchiveKey{State: domain.Jalisco, Kind: domain.Precipitation, Year: 2025}

	ds, warnings, err := m.Enrich(context.Background(), key, emptyDataset(domain.Jalisco, domain.Precipitation))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, domain.ForecastStationID, ds.Records[0].StationID)
	assert.True(t, ds.Records[1].Value.Equal(domain.MustValue("220")))

	_, _, err = m.Enrich(context.Background(), key, emptyDataset(domain.Jalisco, domain.Precipitation))
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.calls.Load(), "issue is fetched once per month")
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ForecastMerges.WithLabelValues("merged")), 0)
}

func TestMerger_ConcurrentKeysShareOneFetch(t *testing.T) {
	freezeClock(t, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))
	src := &countingSource{issue: juneIssue()}
	m := forecast.NewMerger(src, discardLogger(), observability.NewMetricsForTesting())

	var wg sync.WaitGroup
	for _, s := range domain.AllStates() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := domain.ArchiveKey{State: s, Kind: domain.Precipitation, Year: 2025}
			_, _, err := m.Enrich(context.Background(), key, emptyDataset(s, domain.Precipitation))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, src.calls.Load(), int64(len(domain.AllStates())))
	assert.GreaterOrEqual(t, src.calls.Load(), int64(1))
}

func TestMerger_SkipsOtherKindsAndYears(t *testing.T) {
	freezeClock(t, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))
	src := &countingSource{issue: juneIssue()}
	m := forecast.NewMerger(src, discardLogger(), observability.NewMetricsForTesting())

	for _, key := range []domain.ArchiveKey{
		{State: domain.Jalisco, Kind: domain.Temperature, Year: 2025},
		{State: domain.Jalisco, Kind: domain.Precipitation, Year: 2024},
	} {
		ds, warnings, err := m.Enrich(context.Background(), key, emptyDataset(key.State, key.Kind))
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Zero(t, ds.Len())
	}
	assert.Zero(t, src.calls.Load())
}

func TestMerger_UnavailableForecastWarns(t *testing.T) {
	freezeClock(t, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))
	src := &countingSource{err: errors.New("portal down")}
	metrics := observability.NewMetricsForTesting()
	m := forecast.NewMerger(src, discardLogger(), metrics)
	key := domain.ArchiveKey{State: domain.Jalisco, Kind: domain.Precipitation, Year: 2025}

	ds, warnings, err := m.Enrich(context.Background(), key, emptyDataset(domain.Jalisco, domain.Precipitation))
	require.NoError(t, err)
	assert.Zero(t, ds.Len())
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Reason, "portal down")

	_, _, _ = m.Enrich(context.Background(), key, emptyDataset(domain.Jalisco, domain.Precipitation))
	assert.Equal(t, int64(2), src.calls.Load(), "failures are retried on the next key")
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ForecastMerges.WithLabelValues("unavailable")), 0)
}

func TestMerger_CanceledContext(t *testing.T) {
	freezeClock(t, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))
	src := &countingSource{err: context.Canceled}
	m := forecast.NewMerger(src, discardLogger(), observability.NewMetricsForTesting())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	key := domain.ArchiveKey{State: domain.Jalisco, Kind: domain.Precipitation, Year: 2025}
	_, _, err := m.Enrich(ctx, key, emptyDataset(domain.Jalisco, domain.Precipitation))
	assert.ErrorIs(t, err, context.Canceled)
}
