package aemet

import (
	"strconv"
	"time"

	"github.com/polarmet/antartida-weather/internal/antartida"
)

// The upstream schema is not consistent between endpoints: the same logical
// field appears under different keys depending on the dataset. Each logical
// field therefore carries an ordered list of accepted source keys, tried in
// priority order. Extending the mapping means extending these lists, not
// the control flow.
var (
	aliasName      = []string{"nombre"}
	aliasTime      = []string{"fhora"}
	aliasTemp      = []string{"temp"}
	aliasPressure  = []string{"pres"}
	aliasSpeed     = []string{"vel"}
	aliasDirection = []string{"dir"}
	aliasLatitude  = []string{"lat", "latitud"}
	aliasLongitude = []string{"lon", "long", "longitud"}
	aliasAltitude  = []string{"alt", "altitud"}

	aliasStationID = []string{"indicativo"}
	aliasProvince  = []string{"provincia"}
)

// pickString returns the first present, non-empty string value among the
// accepted keys.
func pickString(row map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := row[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// pickFloat returns the first present value among the accepted keys that
// coerces to a finite float. Upstream numbers arrive either as JSON numbers
// or as numeric strings; empty string and null mean absent.
func pickFloat(row map[string]any, keys []string) *float64 {
	for _, key := range keys {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			if f := antartida.Float(n); f != nil {
				return f
			}
		case string:
			if n == "" {
				continue
			}
			parsed, err := strconv.ParseFloat(n, 64)
			if err != nil {
				continue
			}
			if f := antartida.Float(parsed); f != nil {
				return f
			}
		}
	}
	return nil
}

// mapMeasurementRow converts one raw observation row into the canonical
// shape. Rows without a parseable observation instant are unusable and
// reported to the caller via the second return value.
func mapMeasurementRow(row map[string]any) (antartida.Measurement, bool) {
	raw := pickString(row, aliasTime)
	if raw == "" {
		return antartida.Measurement{}, false
	}
	measuredAt, err := parseObservationTime(raw)
	if err != nil {
		return antartida.Measurement{}, false
	}

	return antartida.Measurement{
		StationName: pickString(row, aliasName),
		MeasuredAt:  measuredAt.UTC(),
		Temperature: pickFloat(row, aliasTemp),
		Pressure:    pickFloat(row, aliasPressure),
		Speed:       pickFloat(row, aliasSpeed),
		Direction:   pickFloat(row, aliasDirection),
		Latitude:    pickFloat(row, aliasLatitude),
		Longitude:   pickFloat(row, aliasLongitude),
		Altitude:    pickFloat(row, aliasAltitude),
	}, true
}

// mapCatalogRow converts one station-inventory row. Rows without a stable
// station id are dropped.
func mapCatalogRow(row map[string]any) (antartida.StationCatalogEntry, bool) {
	id := pickString(row, aliasStationID)
	if id == "" {
		return antartida.StationCatalogEntry{}, false
	}
	entry := antartida.StationCatalogEntry{
		StationID:   id,
		StationName: pickString(row, aliasName),
		Latitude:    pickFloat(row, aliasLatitude),
		Longitude:   pickFloat(row, aliasLongitude),
		Altitude:    pickFloat(row, aliasAltitude),
	}
	if province := pickString(row, aliasProvince); province != "" {
		entry.Province = &province
	}
	return entry, true
}

// parseObservationTime accepts the timestamp formats the upstream has been
// seen to emit: RFC3339, colon-less offsets ("+0000"), and offset-less
// ISO 8601 (UTC).
func parseObservationTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05",
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
