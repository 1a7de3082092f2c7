package antartida

import (
	"context"
	"time"
)

// RemoteSource abstracts the upstream meteorological API
// (AEMET OpenData in production, fakes in tests).
type RemoteSource interface {
	// FetchMeasurements retrieves all observations for a station inside
	// [startUTC, endUTC]. A range with no data is an empty slice, not an
	// error.
	FetchMeasurements(ctx context.Context, startUTC, endUTC time.Time, stationID string) ([]Measurement, error)

	// FetchStationCatalog retrieves the full upstream station inventory.
	FetchStationCatalog(ctx context.Context) ([]StationCatalogEntry, error)
}

// Store is the contract the persistent measurement store must satisfy.
type Store interface {
	// UpsertMeasurements writes rows and records the fetch window for
	// [startUTC, endUTC] as one atomic unit.
	UpsertMeasurements(ctx context.Context, stationID string, rows []Measurement, startUTC, endUTC time.Time) error

	// HasFreshFetchWindow reports whether a recorded window fully covers
	// [startUTC, endUTC] and was fetched at or after minFetchedAt.
	HasFreshFetchWindow(ctx context.Context, stationID string, startUTC, endUTC time.Time, minFetchedAt time.Time) (bool, error)

	// GetMeasurements returns rows inside [startUTC, endUTC] inclusive,
	// ascending by instant.
	GetMeasurements(ctx context.Context, stationID string, startUTC, endUTC time.Time) ([]Measurement, error)

	UpsertStationCatalog(ctx context.Context, rows []StationCatalogEntry) (time.Time, error)
	HasFreshStationCatalog(ctx context.Context, minFetchedAt time.Time) (bool, error)
	StationCatalogLastFetchedAt(ctx context.Context) (*time.Time, error)
	GetStationCatalog(ctx context.Context) ([]StationCatalogEntry, error)
}
