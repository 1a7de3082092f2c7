package antartida

import (
	"math"
	"time"
)

// Station identifies one of the two AEMET Antarctic research stations.
type Station string

const (
	StationGabrielDeCastilla Station = "gabriel-de-castilla"
	StationJuanCarlosI       Station = "juan-carlos-i"
)

// Granularity selects the temporal bucket size for aggregation.
type Granularity string

const (
	GranularityNone    Granularity = "none"
	GranularityHourly  Granularity = "hourly"
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
)

// MeasurementType names one of the selectable measurement quantities.
type MeasurementType string

const (
	TypeTemperature MeasurementType = "temperature"
	TypePressure    MeasurementType = "pressure"
	TypeSpeed       MeasurementType = "speed"
	TypeDirection   MeasurementType = "direction"
)

// Measurement is one canonical observation from one station at one instant.
// MeasuredAt is always UTC. Optional quantities are nil when the upstream
// did not report them (or reported something unparseable).
type Measurement struct {
	StationName string
	MeasuredAt  time.Time

	Temperature *float64 // °C
	Pressure    *float64 // hPa
	Speed       *float64 // m/s
	Direction   *float64 // degrees, direction the wind blows from

	Latitude  *float64
	Longitude *float64
	Altitude  *float64 // meters
}

// StationCatalogEntry is one row of the upstream station inventory.
type StationCatalogEntry struct {
	StationID   string   `json:"stationId"`
	StationName string   `json:"stationName"`
	Province    *string  `json:"province"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Altitude    *float64 `json:"altitude"`
}

// OutputMeasurement is the externally visible view of one raw observation or
// aggregated bucket. Timestamp is in the station's local calendar
// (Europe/Madrid, the AEMET reference timezone). Quantities filtered out by
// the caller's type selection are nil regardless of availability.
type OutputMeasurement struct {
	StationName string    `json:"stationName"`
	Datetime    time.Time `json:"datetime"`

	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
	Speed       *float64 `json:"speed"`
	Direction   *float64 `json:"direction"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
}

// ParseStation validates a station query value.
func ParseStation(s string) (Station, bool) {
	switch Station(s) {
	case StationGabrielDeCastilla, StationJuanCarlosI:
		return Station(s), true
	}
	return "", false
}

// ParseGranularity validates an aggregation query value.
// The empty string maps to GranularityNone.
func ParseGranularity(s string) (Granularity, bool) {
	if s == "" {
		return GranularityNone, true
	}
	switch Granularity(s) {
	case GranularityNone, GranularityHourly, GranularityDaily, GranularityMonthly:
		return Granularity(s), true
	}
	return "", false
}

// ParseMeasurementType validates a types query value.
func ParseMeasurementType(s string) (MeasurementType, bool) {
	switch MeasurementType(s) {
	case TypeTemperature, TypePressure, TypeSpeed, TypeDirection:
		return MeasurementType(s), true
	}
	return "", false
}

// Float returns a pointer to v, with NaN and infinities normalized to nil.
// Non-finite values must never leak into stored or served data.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
