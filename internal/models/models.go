package models

import (
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/geomath"
	geojson "github.com/paulmach/go.geojson"
)

const (
	ActionIncidentsUpdated = "incidents_updated"
	ActionPing             = "ping"
	ActionPong             = "pong"

	WatchStatusActive = "active"
)

// Hotspot - одно спутниковое обнаружение
type Hotspot struct {
	ID         string        `json:"hotspot_id"`
	Location   geomath.Point `json:"location"`
	Confidence int           `json:"confidence"`
	FRP        float64       `json:"frp"`
	AcqDate    string        `json:"acq_date"`
	AcqTime    string        `json:"acq_time"`
	AcquiredAt time.Time     `json:"acquired_at,omitempty"`
	Satellite  string        `json:"satellite"`
}

// Incident - кластер горячих точек с полигоном площади
type Incident struct {
	ID             string            `json:"incident_id"`
	Footprint      *geojson.Geometry `json:"footprint"`
	FirstSeen      string            `json:"first_seen,omitempty"`
	LastSeen       string            `json:"last_seen,omitempty"`
	HotspotCount   int               `json:"hotspot_count"`
	HotspotCount1h int               `json:"hotspot_count_1h"`
	HotspotCount6h int               `json:"hotspot_count_6h"`
	Intensity      float64           `json:"intensity"`
	AvgConfidence  float64           `json:"avg_confidence"`
	Centroid       geomath.Point     `json:"centroid"`
}

// FullState is an authoritative snapshot of everything on the map.
type FullState struct {
	Hotspots  []Hotspot  `json:"hotspots"`
	Incidents []Incident `json:"incidents"`
}

// Snapshot описывает один почасовой снимок в хранилище
type Snapshot struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"`
	Hour      string    `json:"hour"`
}

type WatchLocation struct {
	ID          string    `json:"location_id" yaml:"location_id"`
	Name        string    `json:"name" yaml:"name"`
	Email       string    `json:"email,omitempty" yaml:"email"`
	Lat         float64   `json:"lat" yaml:"lat"`
	Lon         float64   `json:"lon" yaml:"lon"`
	RadiusMiles float64   `json:"radius_miles" yaml:"radius_miles"`
	Status      string    `json:"status" yaml:"status"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

func (w WatchLocation) Center() geomath.Point {
	return geomath.Point{Lat: w.Lat, Lon: w.Lon}
}

// AlertHotspot - горячая точка внутри радиуса наблюдения
type AlertHotspot struct {
	HotspotID     string  `json:"hotspot_id"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	DistanceMiles float64 `json:"distance_miles"`
	Confidence    int     `json:"confidence"`
	FRP           float64 `json:"frp"`
	Satellite     string  `json:"satellite"`
	AcqDate       string  `json:"acq_date"`
	AcqTime       string  `json:"acq_time"`
}

// Alert groups every newly detected hotspot near one watch location.
type Alert struct {
	ID           string         `json:"alert_id"`
	LocationID   string         `json:"location_id"`
	LocationName string         `json:"location_name"`
	Email        string         `json:"email,omitempty"`
	Hotspots     []AlertHotspot `json:"hotspots"`
	ClosestMiles float64        `json:"closest_miles"`
	CreatedAt    time.Time      `json:"created_at"`
}

type WatchEventAction string

const (
	WatchCreated WatchEventAction = "created"
	WatchUpdated WatchEventAction = "updated"
	WatchDeleted WatchEventAction = "deleted"
)

// WatchEvent сообщает об изменении списка точек наблюдения
type WatchEvent struct {
	Action     WatchEventAction `json:"action"`
	LocationID string           `json:"location_id"`
	TimeStamp  time.Time        `json:"timestamp"`
}
