// Package location implements the location visit and place resolver: a
// density-adaptive single-pass clustering transform from location_point to
// location_visit, followed by an OSM-POI-backed place resolver.
package location

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Point is a filtered location_point input to clustering.
type Point struct {
	ID                 string
	Latitude           float64
	Longitude          float64
	Timestamp          time.Time
	HorizontalAccuracy float64 // 0 means "missing"
	Speed              float64 // negative means "missing"
}

// Visit is one accepted cluster.
type Visit struct {
	ID             string
	CentroidLat    float64
	CentroidLon    float64
	RadiusMeters   float64
	Start          time.Time
	End            time.Time
	PointCount     int
	FirstPointID   string
}

const (
	maxHorizontalAccuracyMeters = 100.0
	maxSpeedMetersPerSecond     = 50.0
	spatialEpsilonMeters        = 50.0
	temporalGap                 = 5 * time.Minute
	minVisitDuration            = 5 * time.Minute
	defaultAccuracyWeight       = 50.0
	defaultPointsPerMinute      = 1.0
)

// FilterPoints drops points with excessive horizontal error or implausible
// speed.
func FilterPoints(points []Point) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.HorizontalAccuracy > 0 && p.HorizontalAccuracy >= maxHorizontalAccuracyMeters {
			continue
		}
		if p.Speed >= 0 && p.Speed >= maxSpeedMetersPerSecond {
			continue
		}
		out = append(out, p)
	}
	return out
}

// EstimateSamplingRate returns the median points-per-minute across
// consecutive filtered points, sanity-bounded to a 10-minute gap.
// Points must already be sorted by Timestamp ascending.
func EstimateSamplingRate(points []Point) float64 {
	var gaps []float64
	for i := 1; i < len(points); i++ {
		gap := points[i].Timestamp.Sub(points[i-1].Timestamp).Seconds()
		if gap > 0 && gap <= 600 {
			gaps = append(gaps, 60.0/gap)
		}
	}
	if len(gaps) == 0 {
		return defaultPointsPerMinute
	}
	sort.Float64s(gaps)
	return gaps[len(gaps)/2]
}

// Cluster runs the density-adaptive single-pass expansion of filtered
// points into visits. Points must be sorted by Timestamp ascending and
// already filtered (FilterPoints).
func Cluster(points []Point, pointsPerMinute float64) []Visit {
	minPoints := int(math.Round(5 * pointsPerMinute))
	if minPoints < 3 {
		minPoints = 3
	}

	var visits []Visit
	visited := make([]bool, len(points))

	for i := range points {
		if visited[i] {
			continue
		}
		cluster := []Point{points[i]}
		visited[i] = true

		for j := i + 1; j < len(points); j++ {
			if visited[j] {
				continue
			}
			last := cluster[len(cluster)-1]
			candidate := points[j]

			timeGap := candidate.Timestamp.Sub(last.Timestamp)
			if timeGap > temporalGap {
				// A time gap beyond the bound terminates the cluster outright.
				break
			}

			if haversineMeters(last.Latitude, last.Longitude, candidate.Latitude, candidate.Longitude) <= spatialEpsilonMeters {
				cluster = append(cluster, candidate)
				visited[j] = true
				continue
			}
			// Spatial miss within the time bound: skip without terminating
			// the cluster.
		}

		if len(cluster) < minPoints {
			continue
		}
		start := cluster[0].Timestamp
		end := cluster[len(cluster)-1].Timestamp
		if end.Sub(start) < minVisitDuration {
			continue
		}
		visits = append(visits, summarize(cluster, start, end))
	}

	return visits
}

func summarize(cluster []Point, start, end time.Time) Visit {
	var weightedLat, weightedLon, totalWeight float64
	for _, p := range cluster {
		accuracy := p.HorizontalAccuracy
		if accuracy <= 0 {
			accuracy = defaultAccuracyWeight
		}
		weight := 1.0 / accuracy
		weightedLat += p.Latitude * weight
		weightedLon += p.Longitude * weight
		totalWeight += weight
	}
	centroidLat := weightedLat / totalWeight
	centroidLon := weightedLon / totalWeight

	var radius float64
	for _, p := range cluster {
		if d := haversineMeters(centroidLat, centroidLon, p.Latitude, p.Longitude); d > radius {
			radius = d
		}
	}

	return Visit{
		ID:           VisitID(centroidLat, centroidLon, start),
		CentroidLat:  centroidLat,
		CentroidLon:  centroidLon,
		RadiusMeters: radius,
		Start:        start,
		End:          end,
		PointCount:   len(cluster),
		FirstPointID: cluster[0].ID,
	}
}

// VisitID is the deterministic visit id: UUID-v5 over
// "{lat:0.0001}:{lon:0.0001}:{start_rounded_to_minute}".
func VisitID(lat, lon float64, start time.Time) string {
	roundedLat := math.Round(lat*10000) / 10000
	roundedLon := math.Round(lon*10000) / 10000
	roundedStart := start.Truncate(time.Minute).UTC().Format(time.RFC3339)
	name := fmt.Sprintf("%.4f:%.4f:%s", roundedLat, roundedLon, roundedStart)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

const earthRadiusMeters = 6371000.0

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
