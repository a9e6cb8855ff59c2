package location

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VisitRow is the location_visit ontology table.
type VisitRow struct {
	ID               string `gorm:"primaryKey"`
	PlaceID          *string
	CentroidLat      float64
	CentroidLon      float64
	RadiusMeters     float64
	ArrivalTime      time.Time
	DepartureTime    time.Time
	PointCount       int
	SourceStreamID   string
	SourceTable      string
	SourceProvider   string
}

func (VisitRow) TableName() string { return "location_visit" }

// PlaceRow is the entities_place table.
type PlaceRow struct {
	ID            string `gorm:"primaryKey"`
	CanonicalName string
	CentroidLat   float64
	CentroidLon   float64
	Candidates    string // JSON-encoded []POICandidate, ranked closest-first
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PlaceRow) TableName() string { return "entities_place" }

// gormPlaceFinder is the ExistingPlaceFinder backed by the relational
// entities_place table: a bounding-box prefilter (cheap index range scan)
// then a Haversine refine over the surviving rows.
type gormPlaceFinder struct {
	db *gorm.DB
}

func newGormPlaceFinder(db *gorm.DB) *gormPlaceFinder {
	return &gormPlaceFinder{db: db}
}

// degreesPerMeter approximates a generous bounding box at mid-latitudes;
// refined by the exact Haversine check below, so over-inclusion here is
// harmless.
const degreesPerMeter = 1.0 / 111000.0

func (f *gormPlaceFinder) FindNearby(ctx context.Context, lat, lon, radiusMeters float64) (string, bool, error) {
	boxDeg := radiusMeters * degreesPerMeter
	var rows []PlaceRow
	err := f.db.WithContext(ctx).
		Where("centroid_lat BETWEEN ? AND ? AND centroid_lon BETWEEN ? AND ?",
			lat-boxDeg, lat+boxDeg, lon-boxDeg, lon+boxDeg).
		Find(&rows).Error
	if err != nil {
		return "", false, err
	}

	best := ""
	bestDist := radiusMeters
	found := false
	for _, row := range rows {
		d := haversineMeters(lat, lon, row.CentroidLat, row.CentroidLon)
		if d <= radiusMeters && d <= bestDist {
			best, bestDist, found = row.ID, d, true
		}
	}
	return best, found, nil
}

// Resolver orchestrates clustering (VisitRow upserts) and place resolution
// (PlaceRow creation/linking) against the relational store.
type Resolver struct {
	db        *gorm.DB
	poiClient *POIClient
	finder    ExistingPlaceFinder
	logger    *zap.Logger
}

// NewResolver constructs a Resolver. poiClient may be nil, in which case
// unresolved visits remain place-less rather than blocking resolution.
func NewResolver(db *gorm.DB, poiClient *POIClient, logger *zap.Logger) *Resolver {
	return &Resolver{db: db, poiClient: poiClient, finder: newGormPlaceFinder(db), logger: logger}
}

// UpsertVisits writes clustered visits: an existing row is updated only
// if the new departure_time is strictly greater, or the existing visit
// has no place id.
func (r *Resolver) UpsertVisits(ctx context.Context, sourceStreamID, sourceProvider string, visits []Visit) (written int, err error) {
	for _, v := range visits {
		row := VisitRow{
			ID:             v.ID,
			CentroidLat:    v.CentroidLat,
			CentroidLon:    v.CentroidLon,
			RadiusMeters:   v.RadiusMeters,
			ArrivalTime:    v.Start,
			DepartureTime:  v.End,
			PointCount:     v.PointCount,
			SourceStreamID: sourceStreamID,
			SourceTable:    "location_point",
			SourceProvider: sourceProvider,
		}
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"departure_time", "centroid_lat", "centroid_lon", "radius_meters", "point_count",
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "excluded.departure_time > location_visit.departure_time OR location_visit.place_id IS NULL"},
			}},
		}).Create(&row)
		if result.Error != nil {
			return written, result.Error
		}
		written++
	}
	return written, nil
}

// ResolvePlaces resolves every place-less visit: reuse an existing nearby
// place, otherwise query the OSM POI service, otherwise leave the visit
// place-less.
func (r *Resolver) ResolvePlaces(ctx context.Context, limit int) (resolved, skipped int, err error) {
	var visits []VisitRow
	query := r.db.WithContext(ctx).Where("place_id IS NULL").Order("departure_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&visits).Error; err != nil {
		return 0, 0, err
	}

	for _, visit := range visits {
		placeID, err := r.resolveOne(ctx, visit)
		if err != nil {
			skipped++
			r.logger.Debug("visit left place-less", zap.String("visit_id", visit.ID), zap.Error(err))
			continue
		}
		if err := r.linkVisit(ctx, visit.ID, placeID); err != nil {
			return resolved, skipped, err
		}
		resolved++
	}
	return resolved, skipped, nil
}

func (r *Resolver) resolveOne(ctx context.Context, visit VisitRow) (string, error) {
	if placeID, found, err := r.finder.FindNearby(ctx, visit.CentroidLat, visit.CentroidLon, PlaceDedupRadiusMeters); err != nil {
		return "", err
	} else if found {
		return placeID, nil
	}

	if r.poiClient == nil {
		return "", errNoPOIService
	}

	candidates, err := r.poiClient.Search(ctx, visit.CentroidLat, visit.CentroidLon)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", errNoCandidate
	}

	closest := candidates[0]
	candidatesJSON, _ := json.Marshal(candidates)

	place := PlaceRow{
		ID:            uuid.NewString(),
		CanonicalName: closest.Name,
		CentroidLat:   closest.Latitude,
		CentroidLon:   closest.Longitude,
		Candidates:    string(candidatesJSON),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&place).Error; err != nil {
		return "", err
	}
	return place.ID, nil
}

func (r *Resolver) linkVisit(ctx context.Context, visitID, placeID string) error {
	return r.db.WithContext(ctx).Model(&VisitRow{}).
		Where("id = ?", visitID).
		Update("place_id", placeID).Error
}
