package location

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overpassFixture = `{
  "elements": [
    {"type":"node","id":1,"lat":37.77495,"lon":-122.41942,"tags":{"name":"Ferry Building","tourism":"attraction"}},
    {"type":"node","id":2,"lat":37.7760,"lon":-122.4200,"tags":{"name":"Far Cafe","amenity":"cafe"}},
    {"type":"way","id":3,"center":{"lat":37.77491,"lon":-122.41941},"tags":{"shop":"bakery"}}
  ]
}`

func TestPOIClient_Search_RanksByDistanceAndSkipsUnnamed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(overpassFixture))
	}))
	defer server.Close()

	client := NewPOIClient(server.URL, nil, 0)
	candidates, err := client.Search(context.Background(), 37.7749, -122.4194)
	require.NoError(t, err)
	require.Len(t, candidates, 2) // the unnamed "way" element is dropped

	assert.Equal(t, "Ferry Building", candidates[0].Name)
	assert.Equal(t, "tourism=attraction", candidates[0].Category)
	assert.Less(t, candidates[0].DistanceM, candidates[1].DistanceM)
}

type fakeCache struct {
	store map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string]string{}} }

func (c *fakeCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(v), dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.store[key] = string(b)
	return nil
}

func TestPOIClient_Search_CachesSecondLookup(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(overpassFixture))
	}))
	defer server.Close()

	cache := newFakeCache()
	client := NewPOIClient(server.URL, cache, time.Hour)

	_, err := client.Search(context.Background(), 37.7749, -122.4194)
	require.NoError(t, err)
	_, err = client.Search(context.Background(), 37.7749, -122.4194)
	require.NoError(t, err)

	assert.Equal(t, 1, requests)
}
