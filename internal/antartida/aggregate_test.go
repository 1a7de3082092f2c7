package antartida

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fp(v float64) *float64 { return &v }

func utc(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestAggregateNoneIsIdentity(t *testing.T) {
	rows := []Measurement{
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 5), Temperature: fp(10)},
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 15), Temperature: fp(14)},
	}

	got := Aggregate(rows, GranularityNone)
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("Aggregate(none) mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateHourlyScalarMean(t *testing.T) {
	rows := []Measurement{
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 5), Temperature: fp(10.0), Pressure: fp(1000.0), Speed: fp(5.0)},
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 15), Temperature: fp(14.0), Pressure: fp(1002.0), Speed: fp(7.0)},
	}

	got := Aggregate(rows, GranularityHourly)
	if len(got) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(got))
	}
	if got[0].Temperature == nil || *got[0].Temperature != 12.0 {
		t.Errorf("temperature = %v, want 12.0", got[0].Temperature)
	}
	if got[0].Pressure == nil || *got[0].Pressure != 1001.0 {
		t.Errorf("pressure = %v, want 1001.0", got[0].Pressure)
	}
	if got[0].Speed == nil || *got[0].Speed != 6.0 {
		t.Errorf("speed = %v, want 6.0", got[0].Speed)
	}
}

func TestAggregateScalarMeanIgnoresAbsentValues(t *testing.T) {
	rows := []Measurement{
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 5), Temperature: fp(10.0)},
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 15)},
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 25), Temperature: fp(14.0)},
	}

	got := Aggregate(rows, GranularityHourly)
	if len(got) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(got))
	}
	if got[0].Temperature == nil || *got[0].Temperature != 12.0 {
		t.Errorf("temperature = %v, want 12.0 (absent values excluded)", got[0].Temperature)
	}
	// No row carried a pressure value: the bucket is absent, not zero.
	if got[0].Pressure != nil {
		t.Errorf("pressure = %v, want nil", *got[0].Pressure)
	}
}

func TestAggregateCircularMeanWrapsAroundNorth(t *testing.T) {
	rows := []Measurement{
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 5), Direction: fp(350)},
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 15), Direction: fp(10)},
	}

	got := Aggregate(rows, GranularityHourly)
	if len(got) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(got))
	}
	if got[0].Direction == nil {
		t.Fatal("direction is nil, want 0 or 360")
	}
	if d := *got[0].Direction; d != 0.0 && d != 360.0 {
		t.Errorf("direction = %v, want 0 or 360 (not the arithmetic 180)", d)
	}
}

func TestAggregateCircularMeanOpposingDirectionsAreAbsent(t *testing.T) {
	rows := []Measurement{
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 5), Direction: fp(0)},
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 15), Direction: fp(180)},
	}

	got := Aggregate(rows, GranularityHourly)
	if len(got) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(got))
	}
	if got[0].Direction != nil {
		t.Errorf("direction = %v, want nil for perfectly cancelling directions", *got[0].Direction)
	}
}

func TestAggregateDailyUsesMadridCalendarAcrossDST(t *testing.T) {
	// 2024-03-30 23:30 UTC is already 2024-03-31 00:30 in Madrid (+01:00);
	// 2024-03-31 21:30 UTC is 23:30 the same local day, but after the
	// spring-forward transition (+02:00). Both rows land in one local day.
	rows := []Measurement{
		{StationName: "X", MeasuredAt: utc(2024, 3, 30, 23, 30), Temperature: fp(2.0)},
		{StationName: "X", MeasuredAt: utc(2024, 3, 31, 21, 30), Temperature: fp(4.0)},
	}

	got := Aggregate(rows, GranularityDaily)
	if len(got) != 1 {
		t.Fatalf("expected 1 bucket, got %d buckets", len(got))
	}
	if got[0].Temperature == nil || *got[0].Temperature != 3.0 {
		t.Errorf("temperature = %v, want 3.0", got[0].Temperature)
	}

	// The bucket instant is local midnight converted to UTC; local midnight
	// on 2024-03-31 is still in the +01:00 regime.
	local := got[0].MeasuredAt.In(MadridTZ)
	if _, offset := local.Zone(); offset != 3600 {
		t.Errorf("bucket local offset = %d seconds, want 3600 (+01:00)", offset)
	}
	wantInstant := time.Date(2024, 3, 30, 23, 0, 0, 0, time.UTC)
	if !got[0].MeasuredAt.Equal(wantInstant) {
		t.Errorf("bucket instant = %v, want %v", got[0].MeasuredAt, wantInstant)
	}
}

func TestAggregateMonthlyBucketsAndOrdering(t *testing.T) {
	rows := []Measurement{
		{StationName: "X", MeasuredAt: utc(2024, 2, 10, 12, 0), Temperature: fp(1.0)},
		{StationName: "X", MeasuredAt: utc(2024, 1, 20, 12, 0), Temperature: fp(5.0)},
		{StationName: "X", MeasuredAt: utc(2024, 1, 10, 12, 0), Temperature: fp(3.0)},
	}

	got := Aggregate(rows, GranularityMonthly)
	if len(got) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(got))
	}
	if !got[0].MeasuredAt.Before(got[1].MeasuredAt) {
		t.Error("buckets are not emitted in ascending key order")
	}
	if got[0].Temperature == nil || *got[0].Temperature != 4.0 {
		t.Errorf("january temperature = %v, want 4.0", got[0].Temperature)
	}
	if got[1].Temperature == nil || *got[1].Temperature != 1.0 {
		t.Errorf("february temperature = %v, want 1.0", got[1].Temperature)
	}
}

func TestAggregateTakesGeoFieldsFromFirstRow(t *testing.T) {
	rows := []Measurement{
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 5), Latitude: fp(-62.97), Longitude: fp(-60.68), Altitude: fp(14)},
		{StationName: "X", MeasuredAt: utc(2024, 1, 1, 0, 15)},
	}

	got := Aggregate(rows, GranularityHourly)
	if len(got) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(got))
	}
	if got[0].Latitude == nil || *got[0].Latitude != -62.97 {
		t.Errorf("latitude = %v, want -62.97", got[0].Latitude)
	}
	if got[0].StationName != "X" {
		t.Errorf("station name = %q, want %q", got[0].StationName, "X")
	}
}

func TestProjectEmptySelectionIncludesEverything(t *testing.T) {
	row := Measurement{
		StationName: "X",
		MeasuredAt:  utc(2024, 1, 1, 0, 0),
		Temperature: fp(1), Pressure: fp(2), Speed: fp(3), Direction: fp(45),
		Latitude: fp(-62.97), Longitude: fp(-60.68), Altitude: fp(15),
	}

	out := Project(row, nil)
	if out.Temperature == nil || out.Pressure == nil || out.Speed == nil || out.Direction == nil {
		t.Error("empty selection must include all four quantities")
	}
	if out.Latitude == nil || out.Longitude == nil || out.Altitude == nil {
		t.Error("geospatial fields must always pass through")
	}
}

func TestProjectSelectionFiltersUnselectedTypes(t *testing.T) {
	row := Measurement{
		StationName: "X",
		MeasuredAt:  utc(2024, 1, 1, 0, 0),
		Temperature: fp(1), Pressure: fp(2), Speed: fp(3), Direction: fp(45),
		Latitude: fp(-62.97),
	}

	out := Project(row, []MeasurementType{TypeTemperature, TypeDirection})
	if out.Temperature == nil || out.Direction == nil {
		t.Error("selected quantities must be present")
	}
	if out.Pressure != nil || out.Speed != nil {
		t.Error("unselected quantities must be absent regardless of stored values")
	}
	if out.Latitude == nil {
		t.Error("geospatial fields must not be filtered")
	}
}

func TestProjectTimestampIsLocal(t *testing.T) {
	row := Measurement{StationName: "X", MeasuredAt: utc(2024, 7, 1, 10, 0)}

	out := Project(row, nil)
	if _, offset := out.Datetime.Zone(); offset != 2*3600 {
		t.Errorf("july local offset = %d seconds, want 7200 (+02:00)", offset)
	}
	if !out.Datetime.Equal(row.MeasuredAt) {
		t.Error("local conversion must not change the instant")
	}
}
