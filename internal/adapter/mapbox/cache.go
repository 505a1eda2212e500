package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/hazard-ingest-service/internal/domain"
	"github.com/couchcryptid/hazard-ingest-service/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache. Coordinates are
// rounded to two decimals (about 1 km) so neighbouring fire pixels share a
// lookup.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *placeCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newPlaceCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := cellOf(lat, lon)
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(methodReverse, "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues(methodReverse, "miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Empty results are not cached so open-ocean misses can be retried.
	if result.FormattedAddress != "" || result.PlaceName != "" {
		c.cache.put(key, result)
	}
	return result, nil
}

// cell is a coordinate rounded to hundredths of a degree.
type cell struct {
	lat, lon int32
}

func cellOf(lat, lon float64) cell {
	return cell{lat: int32(math.Round(lat * 100)), lon: int32(math.Round(lon * 100))}
}

type cacheEntry struct {
	key   cell
	value domain.GeocodingResult
}

// placeCache is a mutex-guarded LRU of geocoding results per cell. The list
// front is the most recently used entry.
type placeCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[cell]*list.Element
}

func newPlaceCache(maxEntries int) *placeCache {
	return &placeCache{
		capacity: max(maxEntries, 1),
		order:    list.New(),
		items:    make(map[cell]*list.Element),
	}
}

func (c *placeCache) get(key cell) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *placeCache) put(key cell, value domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, value: value})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *placeCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
