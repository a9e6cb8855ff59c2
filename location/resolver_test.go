package location

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&VisitRow{}, &PlaceRow{}))
	return db
}

func TestResolver_UpsertVisits_RespectsDeparturePolicy(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(db, nil, zap.NewNop())
	ctx := context.Background()

	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	v := Visit{ID: "visit-1", CentroidLat: 37.7749, CentroidLon: -122.4194, RadiusMeters: 10, Start: start, End: start.Add(10 * time.Minute), PointCount: 10}

	written, err := r.UpsertVisits(ctx, "stream-1", "ios", []Visit{v})
	require.NoError(t, err)
	require.Equal(t, 1, written)

	// Link a place so only the departure-time branch of the policy applies.
	require.NoError(t, db.Model(&VisitRow{}).Where("id = ?", "visit-1").Update("place_id", "place-1").Error)

	// Re-upsert with an EARLIER departure time must not regress it.
	earlierEnd := v
	earlierEnd.End = start.Add(5 * time.Minute)
	_, err = r.UpsertVisits(ctx, "stream-1", "ios", []Visit{earlierEnd})
	require.NoError(t, err)

	var row VisitRow
	require.NoError(t, db.First(&row, "id = ?", "visit-1").Error)
	require.True(t, row.DepartureTime.Equal(start.Add(10*time.Minute)))

	// A LATER departure time does advance it.
	laterEnd := v
	laterEnd.End = start.Add(20 * time.Minute)
	_, err = r.UpsertVisits(ctx, "stream-1", "ios", []Visit{laterEnd})
	require.NoError(t, err)
	require.NoError(t, db.First(&row, "id = ?", "visit-1").Error)
	require.True(t, row.DepartureTime.Equal(start.Add(20*time.Minute)))
}

func TestResolver_ResolvePlaces_S3_DedupWithinRadius(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(db, nil, zap.NewNop()) // nil POI client: only dedup path exercised
	ctx := context.Background()

	existing := PlaceRow{ID: "place-1", CanonicalName: "Ferry Building", CentroidLat: 37.7749, CentroidLon: -122.4194, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, db.Create(&existing).Error)

	nearVisit := VisitRow{ID: "visit-near", CentroidLat: 37.77495, CentroidLon: -122.41942, ArrivalTime: time.Now(), DepartureTime: time.Now()}
	farVisit := VisitRow{ID: "visit-far", CentroidLat: 37.7760, CentroidLon: -122.4194, ArrivalTime: time.Now(), DepartureTime: time.Now()}
	require.NoError(t, db.Create(&nearVisit).Error)
	require.NoError(t, db.Create(&farVisit).Error)

	resolved, skipped, err := r.ResolvePlaces(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, resolved) // only the near visit links to the existing place
	require.Equal(t, 1, skipped)  // the far visit has no POI client to fall back to

	var near VisitRow
	require.NoError(t, db.First(&near, "id = ?", "visit-near").Error)
	require.NotNil(t, near.PlaceID)
	require.Equal(t, "place-1", *near.PlaceID)

	var far VisitRow
	require.NoError(t, db.First(&far, "id = ?", "visit-far").Error)
	require.Nil(t, far.PlaceID)
}
