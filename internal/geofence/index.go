package geofence

import (
	"sync"

	"github.com/Capitan-Parrot/wildfire-live/internal/geomath"
	"github.com/Capitan-Parrot/wildfire-live/internal/metrics"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	geojson "github.com/paulmach/go.geojson"
	"github.com/samber/lo"
)

// CountWithin returns how many hotspots lie within the location radius,
// boundary included.
func CountWithin(loc models.WatchLocation, hotspots []models.Hotspot) int {
	center := loc.Center()
	return lo.CountBy(hotspots, func(h models.Hotspot) bool {
		return geomath.HaversineMiles(center, h.Location) <= loc.RadiusMiles
	})
}

// Index keeps per-location counts current for whichever hotspot set is shown.
type Index struct {
	mu        sync.RWMutex
	locations []models.WatchLocation
	hotspots  []models.Hotspot
	counts    map[string]int
}

func NewIndex() *Index {
	return &Index{counts: map[string]int{}}
}

func (i *Index) SetLocations(locations []models.WatchLocation) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.locations = append([]models.WatchLocation(nil), locations...)
	i.recountLocked()
}

func (i *Index) SetHotspots(hotspots []models.Hotspot) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.hotspots = hotspots
	i.recountLocked()
}

func (i *Index) recountLocked() {
	counts := make(map[string]int, len(i.locations))
	for _, loc := range i.locations {
		counts[loc.ID] = CountWithin(loc, i.hotspots)
	}

	for id := range i.counts {
		if _, ok := counts[id]; !ok {
			metrics.WatchHotspots.DeleteLabelValues(id)
		}
	}
	for id, n := range counts {
		metrics.WatchHotspots.WithLabelValues(id).Set(float64(n))
	}
	i.counts = counts
}

func (i *Index) Count(locationID string) (int, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	n, ok := i.counts[locationID]
	return n, ok
}

func (i *Index) Counts() map[string]int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return lo.Assign(i.counts)
}

func (i *Index) Locations() []models.WatchLocation {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]models.WatchLocation(nil), i.locations...)
}

func (i *Index) Hotspots() []models.Hotspot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.hotspots
}

// Circles renders every watch radius as a polygon drawn with the same Earth
// radius used for counting.
func (i *Index) Circles() *geojson.FeatureCollection {
	i.mu.RLock()
	defer i.mu.RUnlock()

	fc := geojson.NewFeatureCollection()
	for _, loc := range i.locations {
		ring := geomath.CirclePolygon(loc.Center(), loc.RadiusMiles, geomath.DefaultCircleSegments)
		f := geojson.NewPolygonFeature([][][]float64{ring})
		f.SetProperty("location_id", loc.ID)
		f.SetProperty("name", loc.Name)
		f.SetProperty("radius_miles", loc.RadiusMiles)
		f.SetProperty("hotspot_count", i.counts[loc.ID])
		fc.AddFeature(f)
	}
	return fc
}
