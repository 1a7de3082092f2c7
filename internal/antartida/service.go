package antartida

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Config carries the settings the service needs. It is populated by the
// process configuration layer and passed in explicitly so the core never
// reads ambient state.
type Config struct {
	GabrielStationID string
	JuanStationID    string

	// CacheFreshness is how long a recorded fetch window (or the station
	// catalog) counts as fresh before a remote refresh is triggered.
	CacheFreshness time.Duration
}

// Service orchestrates cache-first retrieval: it decides between a pure
// cache read and a remote refresh, persists refreshed data, and serves
// aggregated, type-filtered views read back from the store.
type Service struct {
	cfg    Config
	store  Store
	source RemoteSource

	// now is replaceable in tests.
	now func() time.Time
}

// NewService creates a new Service.
func NewService(cfg Config, store Store, source RemoteSource) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		source: source,
		now:    time.Now,
	}
}

// StationIDFor resolves a station to its upstream AEMET identifier.
func (s *Service) StationIDFor(station Station) string {
	if station == StationGabrielDeCastilla {
		return s.cfg.GabrielStationID
	}
	return s.cfg.JuanStationID
}

// GetData returns aggregated, projected measurements for a station over a
// local-time display window.
//
// When a recorded fetch window covers the requested range and is fresh
// enough, the remote source is not contacted at all. Otherwise exactly one
// remote fetch is issued for the full requested range and persisted with
// that exact range — even when zero rows came back, so that an empty range
// does not cause repeated misses. Either way the result is read back from
// the store, never served from the in-memory fetch result.
func (s *Service) GetData(
	ctx context.Context,
	station Station,
	startLocal, endLocal time.Time,
	granularity Granularity,
	selectedTypes []MeasurementType,
) ([]OutputMeasurement, error) {
	stationID := s.StationIDFor(station)
	startUTC := startLocal.UTC()
	endUTC := endLocal.UTC()

	minFetchedAt := s.now().UTC().Add(-s.cfg.CacheFreshness)
	fresh, err := s.store.HasFreshFetchWindow(ctx, stationID, startUTC, endUTC, minFetchedAt)
	if err != nil {
		return nil, fmt.Errorf("checking fetch window: %w", err)
	}

	if fresh {
		log.Printf("INFO: using cached dataset for station %s and requested window", stationID)
	} else {
		log.Printf("INFO: refreshing cache from AEMET for station %s and requested window", stationID)
		rows, err := s.source.FetchMeasurements(ctx, startUTC, endUTC, stationID)
		if err != nil {
			return nil, fmt.Errorf("fetching station %s: %w", stationID, err)
		}
		if err := s.store.UpsertMeasurements(ctx, stationID, rows, startUTC, endUTC); err != nil {
			return nil, fmt.Errorf("persisting station %s: %w", stationID, err)
		}
	}

	stored, err := s.store.GetMeasurements(ctx, stationID, startUTC, endUTC)
	if err != nil {
		return nil, fmt.Errorf("reading station %s: %w", stationID, err)
	}

	aggregated := Aggregate(stored, granularity)
	out := make([]OutputMeasurement, 0, len(aggregated))
	for _, row := range aggregated {
		out = append(out, Project(row, selectedTypes))
	}
	return out, nil
}

// StationCatalog returns the full upstream station inventory, refreshing it
// from the remote source when the cached copy is older than the configured
// freshness. Catalog freshness is global, not per row.
func (s *Service) StationCatalog(ctx context.Context) ([]StationCatalogEntry, *time.Time, error) {
	minFetchedAt := s.now().UTC().Add(-s.cfg.CacheFreshness)
	fresh, err := s.store.HasFreshStationCatalog(ctx, minFetchedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("checking station catalog freshness: %w", err)
	}

	if !fresh {
		log.Printf("INFO: refreshing station catalog from AEMET")
		rows, err := s.source.FetchStationCatalog(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching station catalog: %w", err)
		}
		if _, err := s.store.UpsertStationCatalog(ctx, rows); err != nil {
			return nil, nil, fmt.Errorf("persisting station catalog: %w", err)
		}
	}

	entries, err := s.store.GetStationCatalog(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reading station catalog: %w", err)
	}
	fetchedAt, err := s.store.StationCatalogLastFetchedAt(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reading station catalog freshness: %w", err)
	}
	return entries, fetchedAt, nil
}
