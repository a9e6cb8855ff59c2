package location

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCluster_S1_SingleDenseVisit(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	originLat, originLon := 37.7749, -122.4194

	rng := rand.New(rand.NewSource(1))
	var points []Point
	for i := 0; i < 40; i++ {
		jitter := (rng.Float64() - 0.5) * 0.0001 // a few metres
		points = append(points, Point{
			ID:                 "p" + string(rune('a'+i%26)),
			Latitude:           originLat + jitter,
			Longitude:          originLon + jitter,
			Timestamp:          base.Add(time.Duration(i) * time.Minute),
			HorizontalAccuracy: 10,
		})
	}

	rate := EstimateSamplingRate(points)
	visits := Cluster(points, rate)

	require.Len(t, visits, 1)
	v := visits[0]
	assert.Equal(t, 39*time.Minute, v.End.Sub(v.Start))
	assert.InDelta(t, originLat, v.CentroidLat, 0.001)
	assert.InDelta(t, originLon, v.CentroidLon, 0.001)
	assert.LessOrEqual(t, v.RadiusMeters, 20.0)
}

func TestCluster_S2_GapSplitsIntoTwoVisits(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	placeA := [2]float64{37.7749, -122.4194}
	placeB := [2]float64{37.7794, -122.4194} // ~500m north

	var points []Point
	for i := 0; i < 20; i++ {
		points = append(points, Point{
			ID:                 "a",
			Latitude:           placeA[0],
			Longitude:          placeA[1],
			Timestamp:          base.Add(time.Duration(i) * time.Minute),
			HorizontalAccuracy: 10,
		})
	}
	gapStart := base.Add(20 * time.Minute).Add(15 * time.Minute)
	for i := 0; i < 20; i++ {
		points = append(points, Point{
			ID:                 "b",
			Latitude:           placeB[0],
			Longitude:          placeB[1],
			Timestamp:          gapStart.Add(time.Duration(i) * time.Minute),
			HorizontalAccuracy: 10,
		})
	}

	rate := EstimateSamplingRate(points)
	visits := Cluster(points, rate)

	require.Len(t, visits, 2)
	assert.True(t, visits[0].End.Before(visits[1].Start))
	assert.Equal(t, points[19].Timestamp, visits[0].End)
	assert.Equal(t, points[20].Timestamp, visits[1].Start)
}

func TestFilterPoints_DropsLowAccuracyAndHighSpeed(t *testing.T) {
	points := []Point{
		{ID: "ok", HorizontalAccuracy: 10, Speed: 1},
		{ID: "bad_accuracy", HorizontalAccuracy: 150, Speed: 1},
		{ID: "bad_speed", HorizontalAccuracy: 10, Speed: 60},
		{ID: "missing_fields", HorizontalAccuracy: 0, Speed: -1},
	}
	filtered := FilterPoints(points)
	require.Len(t, filtered, 2)
	assert.Equal(t, "ok", filtered[0].ID)
	assert.Equal(t, "missing_fields", filtered[1].ID)
}

func TestVisitID_DeterministicAndRoundsCoordinates(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 30, 0, time.UTC)
	id1 := VisitID(37.774912, -122.419434, start)
	id2 := VisitID(37.774912, -122.419434, start)
	assert.Equal(t, id1, id2)

	// Rounding to 1-minute / 4-decimal precision means a point a few
	// seconds/metres away collapses to the same id.
	id3 := VisitID(37.774913, -122.419433, start.Add(10*time.Second))
	assert.Equal(t, id1, id3)
}

func TestEstimateSamplingRate_DefaultsWhenNoGapsQualify(t *testing.T) {
	rate := EstimateSamplingRate(nil)
	assert.Equal(t, defaultPointsPerMinute, rate)
}
