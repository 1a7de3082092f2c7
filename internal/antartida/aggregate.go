package antartida

import (
	"math"
	"sort"
	"time"
)

// MadridTZ is the AEMET reference timezone. Bucket boundaries and the
// caller-facing display window follow this local calendar, including DST
// transitions.
var MadridTZ = mustLoadLocation("Europe/Madrid")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Aggregate collapses time-ordered measurements into buckets of the given
// granularity. Bucket keys are computed in the Europe/Madrid local calendar
// and the bucket's instant is the local bucket start converted back to UTC,
// so the reported offset reflects the DST rule in force at that bucket.
// GranularityNone is the identity transform.
func Aggregate(rows []Measurement, granularity Granularity) []Measurement {
	if granularity == GranularityNone {
		return rows
	}

	grouped := make(map[time.Time][]Measurement)
	for _, row := range rows {
		key := bucketKey(row.MeasuredAt.In(MadridTZ), granularity)
		grouped[key] = append(grouped[key], row)
	}

	keys := make([]time.Time, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	aggregated := make([]Measurement, 0, len(keys))
	for _, key := range keys {
		items := grouped[key]
		first := items[0]
		aggregated = append(aggregated, Measurement{
			StationName: first.StationName,
			MeasuredAt:  key.UTC(),
			Temperature: meanOf(items, func(m Measurement) *float64 { return m.Temperature }),
			Pressure:    meanOf(items, func(m Measurement) *float64 { return m.Pressure }),
			Speed:       meanOf(items, func(m Measurement) *float64 { return m.Speed }),
			Direction:   circularMeanOf(items),
			Latitude:    first.Latitude,
			Longitude:   first.Longitude,
			Altitude:    first.Altitude,
		})
	}
	return aggregated
}

// bucketKey truncates a local timestamp to the top of the hour, the start of
// the day, or the first of the month.
func bucketKey(local time.Time, granularity Granularity) time.Time {
	switch granularity {
	case GranularityHourly:
		return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, MadridTZ)
	case GranularityDaily:
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, MadridTZ)
	default: // GranularityMonthly
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, MadridTZ)
	}
}

// meanOf computes the arithmetic mean of the present values in a bucket,
// rounded to 3 decimal places. A bucket with no present values yields nil.
func meanOf(items []Measurement, pick func(Measurement) *float64) *float64 {
	var sum float64
	var n int
	for _, item := range items {
		if v := pick(item); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return Float(round3(sum / float64(n)))
}

// circularMeanOf averages wind directions as unit vectors so that e.g.
// {350°, 10°} averages to 0°, not 180°. Perfectly cancelling directions sum
// to the zero vector and yield nil, since no single angle represents them.
func circularMeanOf(items []Measurement) *float64 {
	var x, y float64
	var n int
	for _, item := range items {
		if item.Direction == nil {
			continue
		}
		rad := *item.Direction * math.Pi / 180.0
		x += math.Cos(rad)
		y += math.Sin(rad)
		n++
	}
	// Opposing directions cancel to the zero vector only up to floating
	// point noise (sin(pi) is ~1.2e-16), so the check needs a tolerance.
	const eps = 1e-9
	if n == 0 || (math.Abs(x) < eps && math.Abs(y) < eps) {
		return nil
	}
	deg := math.Atan2(y, x) * 180.0 / math.Pi
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return Float(round3(deg))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Project converts a canonical row into its externally visible form,
// applying the caller's measurement-type selection. An empty selection
// includes every quantity; a non-empty one blanks the rest. Geospatial
// fields always pass through.
func Project(row Measurement, selected []MeasurementType) OutputMeasurement {
	includeAll := len(selected) == 0
	include := func(t MeasurementType) bool {
		if includeAll {
			return true
		}
		for _, s := range selected {
			if s == t {
				return true
			}
		}
		return false
	}

	out := OutputMeasurement{
		StationName: row.StationName,
		Datetime:    row.MeasuredAt.In(MadridTZ),
		Latitude:    row.Latitude,
		Longitude:   row.Longitude,
		Altitude:    row.Altitude,
	}
	if include(TypeTemperature) {
		out.Temperature = row.Temperature
	}
	if include(TypePressure) {
		out.Pressure = row.Pressure
	}
	if include(TypeSpeed) {
		out.Speed = row.Speed
	}
	if include(TypeDirection) {
		out.Direction = row.Direction
	}
	return out
}
