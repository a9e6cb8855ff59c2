package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lifelog/core/internal/tlsutil"
)

// PlaceDedupRadiusMeters is the radius within which an existing place is
// reused instead of creating a new one.
const PlaceDedupRadiusMeters = 50.0

// POISearchRadiusMeters bounds the OSM query.
const POISearchRadiusMeters = 100.0

// poiCategories are the OSM tag keys a POI search matches against.
var poiCategories = []string{"tourism", "amenity", "historic", "shop", "leisure"}

// POICandidate is one named OSM feature returned by a POI search, retained
// in full (not just the winner) for later semantic enrichment.
type POICandidate struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	DistanceM  float64 `json:"distance_m"`
	OSMID      int64   `json:"osm_id"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
}

// ExistingPlaceFinder looks up a place within radius of (lat, lon),
// implemented against the relational place table (bounding-box prefilter
// then Haversine refine).
type ExistingPlaceFinder interface {
	FindNearby(ctx context.Context, lat, lon float64, radiusMeters float64) (placeID string, found bool, err error)
}

// POICache caches POI search results, keyed by a quantized coordinate, to
// stay within the upstream rate limit across repeated nearby visits.
type POICache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// POIClient queries an OSM-style POI service (Overpass by default).
type POIClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      POICache
	cacheTTL   time.Duration
}

// NewPOIClient constructs a POIClient throttled to 1 request/second. cache
// may be nil to disable caching.
func NewPOIClient(baseURL string, cache POICache, cacheTTL time.Duration) *POIClient {
	return &POIClient{
		baseURL:    baseURL,
		httpClient: tlsutil.SecureHTTPClient(30 * time.Second),
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// quantizedCacheKey rounds to ~10m precision so visits within the same
// cluster share a cache entry.
func quantizedCacheKey(lat, lon float64) string {
	return fmt.Sprintf("poi:%.4f:%.4f", lat, lon)
}

// Search queries nearby named POIs in poiCategories, ranked closest-first.
// Returns an empty slice, not an error, when nothing is found.
func (c *POIClient) Search(ctx context.Context, lat, lon float64) ([]POICandidate, error) {
	key := quantizedCacheKey(lat, lon)
	if c.cache != nil {
		var cached []POICandidate
		if hit, err := c.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := buildOverpassQuery(lat, lon, POISearchRadiusMeters)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(query))
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass API returned status %d", resp.StatusCode)
	}

	var parsed overpassResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	candidates := toCandidates(parsed, lat, lon)

	if c.cache != nil {
		_ = c.cache.Set(ctx, key, candidates, c.cacheTTL)
	}
	return candidates, nil
}

func buildOverpassQuery(lat, lon, radiusMeters float64) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, category := range poiCategories {
		fmt.Fprintf(&b, "  nwr[\"%s\"](around:%d,%f,%f);\n", category, int(radiusMeters), lat, lon)
	}
	b.WriteString(");\nout center;")
	return b.String()
}

func toCandidates(resp overpassResponse, originLat, originLon float64) []POICandidate {
	var candidates []POICandidate
	for _, el := range resp.Elements {
		name, ok := el.Tags["name"]
		if !ok || name == "" {
			continue
		}
		poiLat, poiLon := el.Lat, el.Lon
		if poiLat == 0 && poiLon == 0 {
			if el.Center == nil {
				continue
			}
			poiLat, poiLon = el.Center.Lat, el.Center.Lon
		}
		candidates = append(candidates, POICandidate{
			Name:      name,
			Category:  poiCategory(el.Tags),
			DistanceM: haversineMeters(originLat, originLon, poiLat, poiLon),
			OSMID:     el.ID,
			Latitude:  poiLat,
			Longitude: poiLon,
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].DistanceM < candidates[j].DistanceM })
	return candidates
}

func poiCategory(tags map[string]string) string {
	for _, category := range poiCategories {
		if v, ok := tags[category]; ok {
			return category + "=" + v
		}
	}
	return "unknown"
}
