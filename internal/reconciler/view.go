package reconciler

import (
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	geojson "github.com/paulmach/go.geojson"
)

// FeatureCollections renders the view in the same shape /state/latest serves.
func (v View) FeatureCollections() (hotspots, incidents *geojson.FeatureCollection) {
	hotspots = geojson.NewFeatureCollection()
	for _, h := range v.Hotspots {
		f := geojson.NewPointFeature(h.Location.Position())
		f.SetProperty("hotspot_id", h.ID)
		f.SetProperty("confidence", h.Confidence)
		f.SetProperty("frp", h.FRP)
		f.SetProperty("acq_date", h.AcqDate)
		f.SetProperty("acq_time", h.AcqTime)
		f.SetProperty("satellite", h.Satellite)
		hotspots.AddFeature(f)
	}

	incidents = geojson.NewFeatureCollection()
	for _, inc := range v.Incidents {
		incidents.AddFeature(IncidentFeature(inc))
	}
	return hotspots, incidents
}

func IncidentFeature(inc models.Incident) *geojson.Feature {
	f := geojson.NewFeature(inc.Footprint)
	f.SetProperty("incident_id", inc.ID)
	f.SetProperty("first_seen", inc.FirstSeen)
	f.SetProperty("last_seen", inc.LastSeen)
	f.SetProperty("hotspot_count", inc.HotspotCount)
	f.SetProperty("hotspot_count_1h", inc.HotspotCount1h)
	f.SetProperty("hotspot_count_6h", inc.HotspotCount6h)
	f.SetProperty("intensity", inc.Intensity)
	f.SetProperty("avg_confidence", inc.AvgConfidence)
	f.SetProperty("centroid_lat", inc.Centroid.Lat)
	f.SetProperty("centroid_lon", inc.Centroid.Lon)
	return f
}
