package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/polarmet/antartida-weather/internal/antartida"
)

// timeLayout is the persisted timestamp format: fixed-width RFC 3339 in
// UTC, so lexicographic order equals chronological order.
const timeLayout = "2006-01-02T15:04:05Z"

// SQLiteStore persists canonical measurements, fetch windows, and the
// station catalog in a single SQLite database. WAL mode keeps readers from
// blocking on the single writer, and busy_timeout bounds writer contention
// instead of failing immediately.
type SQLiteStore struct {
	db *sql.DB

	// now is replaceable in tests.
	now func() time.Time
}

// Open opens (and if needed initializes) the database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// The driver is not safe for concurrent writers on one connection pool
	// slot basis; SQLite itself serializes writers, so a single connection
	// avoids SQLITE_BUSY churn inside the process.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initialize() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS measurements (
			station_id TEXT NOT NULL,
			station_name TEXT NOT NULL,
			measured_at_utc TEXT NOT NULL,
			temperature_c REAL,
			pressure_hpa REAL,
			speed_mps REAL,
			direction_deg REAL,
			latitude REAL,
			longitude REAL,
			altitude_m REAL,
			fetched_at_utc TEXT NOT NULL,
			PRIMARY KEY (station_id, measured_at_utc)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_station_datetime
			ON measurements(station_id, measured_at_utc)`,
		`CREATE TABLE IF NOT EXISTS fetch_windows (
			station_id TEXT NOT NULL,
			start_utc TEXT NOT NULL,
			end_utc TEXT NOT NULL,
			fetched_at_utc TEXT NOT NULL,
			PRIMARY KEY (station_id, start_utc, end_utc)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_windows_station_fetched_at
			ON fetch_windows(station_id, fetched_at_utc)`,
		`CREATE TABLE IF NOT EXISTS station_catalog (
			station_id TEXT NOT NULL PRIMARY KEY,
			station_name TEXT NOT NULL,
			province TEXT,
			latitude REAL,
			longitude REAL,
			altitude_m REAL,
			fetched_at_utc TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_station_catalog_fetched_at
			ON station_catalog(fetched_at_utc)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return s.ensureColumns()
}

// ensureColumns upgrades measurement tables created before the geospatial
// and direction columns existed.
func (s *SQLiteStore) ensureColumns() error {
	rows, err := s.db.Query(`PRAGMA table_info(measurements)`)
	if err != nil {
		return fmt.Errorf("inspecting measurements schema: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &defaultVal, &pk); err != nil {
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	required := map[string]string{
		"direction_deg": `ALTER TABLE measurements ADD COLUMN direction_deg REAL`,
		"latitude":      `ALTER TABLE measurements ADD COLUMN latitude REAL`,
		"longitude":     `ALTER TABLE measurements ADD COLUMN longitude REAL`,
		"altitude_m":    `ALTER TABLE measurements ADD COLUMN altitude_m REAL`,
	}
	for column, ddl := range required {
		if !existing[column] {
			if _, err := s.db.Exec(ddl); err != nil {
				return fmt.Errorf("adding column %s: %w", column, err)
			}
		}
	}
	return nil
}

// UpsertMeasurements writes rows for a station and records the fetch window
// [startUTC, endUTC] in one transaction. On row conflict every field is
// overwritten except latitude/longitude/altitude, which only ever move from
// absent to present — a known coordinate must not regress to unknown.
func (s *SQLiteStore) UpsertMeasurements(ctx context.Context, stationID string, rows []antartida.Measurement, startUTC, endUTC time.Time) error {
	now := formatTime(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO measurements (
			station_id, station_name, measured_at_utc,
			temperature_c, pressure_hpa, speed_mps, direction_deg,
			latitude, longitude, altitude_m, fetched_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id, measured_at_utc)
		DO UPDATE SET
			station_name=excluded.station_name,
			temperature_c=excluded.temperature_c,
			pressure_hpa=excluded.pressure_hpa,
			speed_mps=excluded.speed_mps,
			direction_deg=excluded.direction_deg,
			latitude=COALESCE(excluded.latitude, measurements.latitude),
			longitude=COALESCE(excluded.longitude, measurements.longitude),
			altitude_m=COALESCE(excluded.altitude_m, measurements.altitude_m),
			fetched_at_utc=excluded.fetched_at_utc`)
	if err != nil {
		return fmt.Errorf("preparing measurement upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			stationID,
			row.StationName,
			formatTime(row.MeasuredAt),
			nullFloat(row.Temperature),
			nullFloat(row.Pressure),
			nullFloat(row.Speed),
			nullFloat(row.Direction),
			nullFloat(row.Latitude),
			nullFloat(row.Longitude),
			nullFloat(row.Altitude),
			now,
		)
		if err != nil {
			return fmt.Errorf("upserting measurement: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fetch_windows (station_id, start_utc, end_utc, fetched_at_utc)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(station_id, start_utc, end_utc)
		DO UPDATE SET fetched_at_utc = excluded.fetched_at_utc`,
		stationID, formatTime(startUTC), formatTime(endUTC), now)
	if err != nil {
		return fmt.Errorf("recording fetch window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// HasFreshFetchWindow reports whether a recorded window fully covers the
// requested range (window.start <= start AND window.end >= end) and the
// most recent such window was fetched at or after minFetchedAt.
func (s *SQLiteStore) HasFreshFetchWindow(ctx context.Context, stationID string, startUTC, endUTC time.Time, minFetchedAt time.Time) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fetched_at_utc
		FROM fetch_windows
		WHERE station_id = ?
		  AND start_utc <= ?
		  AND end_utc >= ?
		ORDER BY fetched_at_utc DESC
		LIMIT 1`,
		stationID, formatTime(startUTC), formatTime(endUTC))

	var fetchedAtRaw string
	if err := row.Scan(&fetchedAtRaw); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("querying fetch windows: %w", err)
	}
	fetchedAt, err := parseTime(fetchedAtRaw)
	if err != nil {
		return false, fmt.Errorf("parsing fetch window timestamp: %w", err)
	}
	return !fetchedAt.Before(minFetchedAt.UTC().Truncate(time.Second)), nil
}

// GetMeasurements returns rows for a station inside [startUTC, endUTC]
// inclusive, ascending by observation instant.
func (s *SQLiteStore) GetMeasurements(ctx context.Context, stationID string, startUTC, endUTC time.Time) ([]antartida.Measurement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT station_name, measured_at_utc, temperature_c, pressure_hpa, speed_mps,
		       direction_deg, latitude, longitude, altitude_m
		FROM measurements
		WHERE station_id = ?
		  AND measured_at_utc >= ?
		  AND measured_at_utc <= ?
		ORDER BY measured_at_utc ASC`,
		stationID, formatTime(startUTC), formatTime(endUTC))
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer rows.Close()

	out := make([]antartida.Measurement, 0)
	for rows.Next() {
		var (
			m          antartida.Measurement
			measuredAt string
			temp, pres sql.NullFloat64
			speed, dir sql.NullFloat64
			lat, lon   sql.NullFloat64
			alt        sql.NullFloat64
		)
		if err := rows.Scan(&m.StationName, &measuredAt, &temp, &pres, &speed, &dir, &lat, &lon, &alt); err != nil {
			return nil, fmt.Errorf("scanning measurement: %w", err)
		}
		m.MeasuredAt, err = parseTime(measuredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing measurement timestamp: %w", err)
		}
		m.Temperature = floatPtr(temp)
		m.Pressure = floatPtr(pres)
		m.Speed = floatPtr(speed)
		m.Direction = floatPtr(dir)
		m.Latitude = floatPtr(lat)
		m.Longitude = floatPtr(lon)
		m.Altitude = floatPtr(alt)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurements: %w", err)
	}
	return out, nil
}

// UpsertStationCatalog replaces/extends the station inventory by station id
// and stamps every row with the same fetch instant, which it returns.
func (s *SQLiteStore) UpsertStationCatalog(ctx context.Context, entries []antartida.StationCatalogEntry) (time.Time, error) {
	now := s.now().UTC().Truncate(time.Second)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO station_catalog (
			station_id, station_name, province, latitude, longitude, altitude_m, fetched_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id)
		DO UPDATE SET
			station_name=excluded.station_name,
			province=excluded.province,
			latitude=excluded.latitude,
			longitude=excluded.longitude,
			altitude_m=excluded.altitude_m,
			fetched_at_utc=excluded.fetched_at_utc`)
	if err != nil {
		return time.Time{}, fmt.Errorf("preparing catalog upsert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		_, err := stmt.ExecContext(ctx,
			entry.StationID,
			entry.StationName,
			nullString(entry.Province),
			nullFloat(entry.Latitude),
			nullFloat(entry.Longitude),
			nullFloat(entry.Altitude),
			formatTime(now),
		)
		if err != nil {
			return time.Time{}, fmt.Errorf("upserting catalog entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("committing catalog upsert: %w", err)
	}
	return now, nil
}

// HasFreshStationCatalog reports whether the catalog as a whole was fetched
// at or after minFetchedAt. Freshness is global: the maximum fetch instant
// across all rows.
func (s *SQLiteStore) HasFreshStationCatalog(ctx context.Context, minFetchedAt time.Time) (bool, error) {
	last, err := s.StationCatalogLastFetchedAt(ctx)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	return !last.Before(minFetchedAt.UTC().Truncate(time.Second)), nil
}

// StationCatalogLastFetchedAt returns the catalog's shared freshness
// instant, or nil when the catalog has never been fetched.
func (s *SQLiteStore) StationCatalogLastFetchedAt(ctx context.Context) (*time.Time, error) {
	row := s.db.QueryRowContext(ctx, `SELECT MAX(fetched_at_utc) FROM station_catalog`)

	var raw sql.NullString
	if err := row.Scan(&raw); err != nil {
		return nil, fmt.Errorf("querying catalog freshness: %w", err)
	}
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog freshness timestamp: %w", err)
	}
	return &t, nil
}

// GetStationCatalog returns all inventory rows ordered by display name.
func (s *SQLiteStore) GetStationCatalog(ctx context.Context) ([]antartida.StationCatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT station_id, station_name, province, latitude, longitude, altitude_m
		FROM station_catalog
		ORDER BY station_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying station catalog: %w", err)
	}
	defer rows.Close()

	out := make([]antartida.StationCatalogEntry, 0)
	for rows.Next() {
		var (
			entry         antartida.StationCatalogEntry
			province      sql.NullString
			lat, lon, alt sql.NullFloat64
		)
		if err := rows.Scan(&entry.StationID, &entry.StationName, &province, &lat, &lon, &alt); err != nil {
			return nil, fmt.Errorf("scanning catalog entry: %w", err)
		}
		if province.Valid {
			entry.Province = &province.String
		}
		entry.Latitude = floatPtr(lat)
		entry.Longitude = floatPtr(lon)
		entry.Altitude = floatPtr(alt)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating station catalog: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
