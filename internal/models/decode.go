package models

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/geomath"
	"github.com/goccy/go-json"
	geojson "github.com/paulmach/go.geojson"
)

var (
	ErrInvalidFootprint = errors.New("invalid footprint")
	ErrInvalidFeature   = errors.New("invalid feature")
	ErrMissingID        = errors.New("missing identifier")
)

// RawRecord keeps one element of a JSON array undecoded so a bad element can be
// dropped without losing its neighbours.
type RawRecord []byte

func (r *RawRecord) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

func (r RawRecord) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r RawRecord) IsNull() bool {
	trimmed := bytes.TrimSpace(r)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// FeedMessage is an inbound live-feed payload. Incidents is nil when the field
// is absent or null.
type FeedMessage struct {
	Action    string      `json:"action"`
	Incidents []RawRecord `json:"incidents"`
}

func DecodeFeedMessage(data []byte) (FeedMessage, error) {
	var msg FeedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return FeedMessage{}, fmt.Errorf("decode feed message: %w", err)
	}
	return msg, nil
}

// ParseFootprint accepts a footprint that is either geometry JSON or a JSON
// string holding geometry JSON. Only non-empty Polygon and MultiPolygon
// geometries are valid.
func ParseFootprint(raw []byte) (*geojson.Geometry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: empty", ErrInvalidFootprint)
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFootprint, err)
		}
		raw = bytes.TrimSpace([]byte(s))
	}

	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFootprint, err)
	}
	if err := validateFootprint(geom); err != nil {
		return nil, err
	}
	return geom, nil
}

func validateFootprint(geom *geojson.Geometry) error {
	var polygons [][][][]float64
	switch {
	case geom.IsPolygon():
		polygons = [][][][]float64{geom.Polygon}
	case geom.IsMultiPolygon():
		polygons = geom.MultiPolygon
	default:
		return fmt.Errorf("%w: unsupported geometry type %q", ErrInvalidFootprint, geom.Type)
	}

	if len(polygons) == 0 {
		return fmt.Errorf("%w: no polygons", ErrInvalidFootprint)
	}
	for _, polygon := range polygons {
		if len(polygon) == 0 || len(polygon[0]) == 0 {
			return fmt.Errorf("%w: empty ring", ErrInvalidFootprint)
		}
		for _, ring := range polygon {
			for _, pos := range ring {
				if _, err := geomath.FromPosition(pos); err != nil {
					return fmt.Errorf("%w: %v", ErrInvalidFootprint, err)
				}
			}
		}
	}
	return nil
}

func outerRing(geom *geojson.Geometry) [][]float64 {
	switch {
	case geom.IsPolygon():
		return geom.Polygon[0]
	case geom.IsMultiPolygon():
		return geom.MultiPolygon[0][0]
	}
	return nil
}

// incidentRecord is the live-feed shape of an incident.
type incidentRecord struct {
	IncidentID     string    `json:"incident_id"`
	Footprint      RawRecord `json:"footprint_geojson"`
	FirstSeen      string    `json:"first_seen"`
	LastSeen       string    `json:"last_seen"`
	HotspotCount   *float64  `json:"hotspot_count"`
	HotspotCount1h *float64  `json:"hotspot_count_1h"`
	HotspotCount6h *float64  `json:"hotspot_count_6h"`
	IntensityMax   *float64  `json:"intensity_max"`
	Intensity      *float64  `json:"intensity"`
	AvgConfidence  *float64  `json:"avg_confidence"`
	CentroidLat    *float64  `json:"centroid_lat"`
	CentroidLon    *float64  `json:"centroid_lon"`
}

// DecodeIncidentRecord decodes one record of an incidents_updated message.
func DecodeIncidentRecord(raw RawRecord) (Incident, error) {
	var rec incidentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Incident{}, fmt.Errorf("decode incident record: %w", err)
	}
	if rec.IncidentID == "" {
		return Incident{}, ErrMissingID
	}

	footprint, err := ParseFootprint(rec.Footprint)
	if err != nil {
		return Incident{}, fmt.Errorf("incident %s: %w", rec.IncidentID, err)
	}

	inc := Incident{
		ID:             rec.IncidentID,
		Footprint:      footprint,
		FirstSeen:      rec.FirstSeen,
		LastSeen:       rec.LastSeen,
		HotspotCount:   intOr(rec.HotspotCount, 0),
		HotspotCount1h: intOr(rec.HotspotCount1h, 0),
		HotspotCount6h: intOr(rec.HotspotCount6h, 0),
		Intensity:      floatOr(rec.IntensityMax, floatOr(rec.Intensity, 0)),
		AvgConfidence:  floatOr(rec.AvgConfidence, 0),
	}
	inc.Centroid = centroidOf(footprint, rec.CentroidLat, rec.CentroidLon)

	return inc, nil
}

func centroidOf(footprint *geojson.Geometry, lat, lon *float64) geomath.Point {
	if lat != nil && lon != nil {
		p := geomath.Point{Lat: *lat, Lon: *lon}
		if p.Valid() {
			return p
		}
	}
	p, err := geomath.RingCentroid(outerRing(footprint))
	if err != nil {
		return geomath.Point{}
	}
	return p
}

func intOr(v *float64, def int) int {
	if v == nil {
		return def
	}
	return int(*v)
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// HotspotFromFeature converts a Point feature of the hotspot collection.
func HotspotFromFeature(f *geojson.Feature) (Hotspot, error) {
	if f == nil || f.Geometry == nil || !f.Geometry.IsPoint() {
		return Hotspot{}, fmt.Errorf("%w: hotspot must be a Point", ErrInvalidFeature)
	}
	loc, err := geomath.FromPosition(f.Geometry.Point)
	if err != nil {
		return Hotspot{}, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}

	h := Hotspot{
		ID:         propString(f.Properties, "hotspot_id"),
		Location:   loc,
		Confidence: int(propFloat(f.Properties, "confidence", 50)),
		FRP:        propFloat(f.Properties, "frp", 0),
		AcqDate:    propString(f.Properties, "acq_date"),
		AcqTime:    propString(f.Properties, "acq_time"),
		Satellite:  propString(f.Properties, "satellite"),
	}
	if h.ID == "" {
		h.ID = featureID(f)
	}
	if h.ID == "" {
		h.ID = fmt.Sprintf("%.5f_%.5f_%s_%s", loc.Lat, loc.Lon, h.AcqDate, h.AcqTime)
	}
	h.AcquiredAt = acquisitionTime(h.AcqDate, h.AcqTime)

	return h, nil
}

// acquisitionTime combines acq_date (2006-01-02) and acq_time (HHMM, UTC).
func acquisitionTime(date, hhmm string) time.Time {
	if date == "" {
		return time.Time{}
	}
	for len(hhmm) < 4 && hhmm != "" {
		hhmm = "0" + hhmm
	}
	if hhmm == "" {
		hhmm = "0000"
	}
	ts, err := time.ParseInLocation("2006-01-02 1504", date+" "+hhmm, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// IncidentFromFeature converts a feature of the incident collection.
func IncidentFromFeature(f *geojson.Feature) (Incident, error) {
	if f == nil || f.Geometry == nil {
		return Incident{}, fmt.Errorf("%w: incident without geometry", ErrInvalidFeature)
	}
	if err := validateFootprint(f.Geometry); err != nil {
		return Incident{}, err
	}

	id := propString(f.Properties, "incident_id")
	if id == "" {
		id = featureID(f)
	}
	if id == "" {
		return Incident{}, ErrMissingID
	}

	inc := Incident{
		ID:             id,
		Footprint:      f.Geometry,
		FirstSeen:      propString(f.Properties, "first_seen"),
		LastSeen:       propString(f.Properties, "last_seen"),
		HotspotCount:   int(propFloat(f.Properties, "hotspot_count", 0)),
		HotspotCount1h: int(propFloat(f.Properties, "hotspot_count_1h", 0)),
		HotspotCount6h: int(propFloat(f.Properties, "hotspot_count_6h", 0)),
		Intensity:      propFloat(f.Properties, "intensity", propFloat(f.Properties, "intensity_max", 0)),
		AvgConfidence:  propFloat(f.Properties, "avg_confidence", 0),
	}
	lat, latOK := propOptFloat(f.Properties, "centroid_lat")
	lon, lonOK := propOptFloat(f.Properties, "centroid_lon")
	if latOK && lonOK {
		inc.Centroid = centroidOf(f.Geometry, &lat, &lon)
	} else {
		inc.Centroid = centroidOf(f.Geometry, nil, nil)
	}

	return inc, nil
}

// DecodeFullState decodes {"hotspots": FeatureCollection, "incidents": FeatureCollection}.
// Invalid features are dropped one by one; the number dropped is returned.
func DecodeFullState(data []byte) (FullState, int, error) {
	var payload struct {
		Hotspots  featureList `json:"hotspots"`
		Incidents featureList `json:"incidents"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return FullState{}, 0, fmt.Errorf("decode full state: %w", err)
	}

	state := FullState{
		Hotspots:  make([]Hotspot, 0, len(payload.Hotspots.Features)),
		Incidents: make([]Incident, 0, len(payload.Incidents.Features)),
	}
	dropped := 0

	for _, raw := range payload.Hotspots.Features {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			dropped++
			continue
		}
		h, err := HotspotFromFeature(f)
		if err != nil {
			dropped++
			continue
		}
		state.Hotspots = append(state.Hotspots, h)
	}

	for _, raw := range payload.Incidents.Features {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			dropped++
			continue
		}
		inc, err := IncidentFromFeature(f)
		if err != nil {
			dropped++
			continue
		}
		state.Incidents = append(state.Incidents, inc)
	}

	return state, dropped, nil
}

type featureList struct {
	Features []RawRecord `json:"features"`
}

func featureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func propString(props map[string]interface{}, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func propOptFloat(props map[string]interface{}, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func propFloat(props map[string]interface{}, key string, def float64) float64 {
	if v, ok := propOptFloat(props, key); ok {
		return v
	}
	return def
}
