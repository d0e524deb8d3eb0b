package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/clock/clocktest"
	"github.com/Capitan-Parrot/wildfire-live/internal/feed"
	"github.com/Capitan-Parrot/wildfire-live/internal/geofence"
	"github.com/Capitan-Parrot/wildfire-live/internal/geomath"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/Capitan-Parrot/wildfire-live/internal/reconciler"
	"github.com/Capitan-Parrot/wildfire-live/internal/replay"
	"github.com/Capitan-Parrot/wildfire-live/internal/syncer"
	"github.com/goccy/go-json"
)

const square = `{"type":"Polygon","coordinates":[[[-120,38],[-119,38],[-119,39],[-120,38]]]}`

type stubFeed struct {
	mu      sync.Mutex
	enabled bool
}

func (f *stubFeed) OnMessage(func(models.FeedMessage)) {}
func (f *stubFeed) OnStateChange(func(feed.State))     {}
func (f *stubFeed) Retries() int                       { return 0 }

func (f *stubFeed) State() feed.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enabled {
		return feed.StateConnected
	}
	return feed.StateDisconnected
}

func (f *stubFeed) Enable() {
	f.mu.Lock()
	f.enabled = true
	f.mu.Unlock()
}

func (f *stubFeed) Disable() {
	f.mu.Lock()
	f.enabled = false
	f.mu.Unlock()
}

type stubBackend struct{}

func (stubBackend) FetchLatestState(context.Context) (models.FullState, error) {
	geom, err := models.ParseFootprint([]byte(square))
	if err != nil {
		return models.FullState{}, err
	}
	return models.FullState{
		Hotspots:  []models.Hotspot{{ID: "h1", Location: geomath.Point{Lat: 38.5, Lon: -119.5}}},
		Incidents: []models.Incident{{ID: "inc-1", Footprint: geom, HotspotCount: 4}},
	}, nil
}

func (stubBackend) ListSnapshots(context.Context, models.Range) ([]models.Snapshot, error) {
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	return []models.Snapshot{
		models.NewSnapshot(base),
		models.NewSnapshot(base.Add(time.Hour)),
		models.NewSnapshot(base.Add(2 * time.Hour)),
	}, nil
}

func (stubBackend) FetchSnapshot(context.Context, models.Snapshot) (models.FullState, error) {
	return models.FullState{}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	engine := replay.NewEngine(stubBackend{}, replay.Options{Clock: clocktest.NewFake()})
	s := syncer.New(&stubFeed{}, engine, reconciler.New(), geofence.NewIndex(), stubBackend{},
		syncer.NewWatches(nil, nil), nil, syncer.Options{})
	if err := s.SetMode(context.Background(), syncer.ModeLive); err != nil {
		t.Fatalf("SetMode error: %v", err)
	}

	srv := httptest.NewServer(NewRouter(NewHandlers(s)))
	t.Cleanup(func() {
		srv.Close()
		engine.Close()
	})
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, out any) int {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestStatusAndState(t *testing.T) {
	srv := newTestServer(t)

	var status syncer.Status
	if code := do(t, srv, "GET", "/status", "", &status); code != http.StatusOK {
		t.Fatalf("GET /status code=%d", code)
	}
	if status.Mode != syncer.ModeLive || status.HotspotCount != 1 || status.IncidentCount != 1 {
		t.Fatalf("status=%+v", status)
	}

	var state struct {
		Hotspots struct {
			Features []json.RawMessage `json:"features"`
		} `json:"hotspots"`
		Incidents struct {
			Features []json.RawMessage `json:"features"`
		} `json:"incidents"`
	}
	if code := do(t, srv, "GET", "/state", "", &state); code != http.StatusOK {
		t.Fatalf("GET /state code=%d", code)
	}
	if len(state.Hotspots.Features) != 1 || len(state.Incidents.Features) != 1 {
		t.Fatalf("state features hotspots=%d incidents=%d want 1/1", len(state.Hotspots.Features), len(state.Incidents.Features))
	}

	var top []models.Incident
	if code := do(t, srv, "GET", "/incidents/top?n=1", "", &top); code != http.StatusOK {
		t.Fatalf("GET /incidents/top code=%d", code)
	}
	if len(top) != 1 || top[0].ID != "inc-1" {
		t.Fatalf("top=%+v", top)
	}
	if code := do(t, srv, "GET", "/incidents/top?n=abc", "", nil); code != http.StatusBadRequest {
		t.Fatalf("bad n code=%d want 400", code)
	}

	if code := do(t, srv, "GET", "/metrics", "", nil); code != http.StatusOK {
		t.Fatalf("GET /metrics code=%d", code)
	}
}

func TestModeAndReplayControls(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{name: "play in live", method: "POST", path: "/replay/play", code: http.StatusConflict},
		{name: "unknown mode", method: "POST", path: "/mode", body: `{"mode":"paused"}`, code: http.StatusBadRequest},
		{name: "broken body", method: "POST", path: "/mode", body: `{`, code: http.StatusBadRequest},
		{name: "enter replay", method: "POST", path: "/mode", body: `{"mode":"replay"}`, code: http.StatusOK},
		{name: "refresh in replay", method: "POST", path: "/refresh", code: http.StatusConflict},
		{name: "unknown range", method: "POST", path: "/replay/range", body: `{"range":"1y"}`, code: http.StatusBadRequest},
		{name: "seek without index", method: "POST", path: "/replay/seek", body: `{}`, code: http.StatusBadRequest},
		{name: "bad direction", method: "POST", path: "/replay/step/sideways", code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		if code := do(t, srv, tt.method, tt.path, tt.body, nil); code != tt.code {
			t.Fatalf("%s: code=%d want %d", tt.name, code, tt.code)
		}
	}

	var cursor replay.Cursor
	if code := do(t, srv, "POST", "/replay/range", `{"range":"6h"}`, &cursor); code != http.StatusOK {
		t.Fatalf("POST /replay/range code=%d", code)
	}
	if cursor.Range != models.Range6h || cursor.Length != 3 || cursor.Index != 0 {
		t.Fatalf("cursor after range=%+v", cursor)
	}

	if code := do(t, srv, "POST", "/replay/seek", `{"index":2}`, &cursor); code != http.StatusOK || cursor.Index != 2 {
		t.Fatalf("seek code=%d cursor=%+v", code, cursor)
	}
	if code := do(t, srv, "POST", "/replay/step/back", "", &cursor); code != http.StatusOK || cursor.Index != 1 {
		t.Fatalf("step back code=%d cursor=%+v", code, cursor)
	}
	if code := do(t, srv, "POST", "/replay/play", "", &cursor); code != http.StatusOK || !cursor.Playing {
		t.Fatalf("play code=%d cursor=%+v", code, cursor)
	}
	if code := do(t, srv, "POST", "/replay/pause", "", &cursor); code != http.StatusOK || cursor.Playing {
		t.Fatalf("pause code=%d cursor=%+v", code, cursor)
	}
}

func TestWatchEndpoints(t *testing.T) {
	srv := newTestServer(t)

	bad := `{"name":"Nowhere","lat":120,"lon":0,"radius_miles":5}`
	if code := do(t, srv, "POST", "/watch", bad, nil); code != http.StatusBadRequest {
		t.Fatalf("invalid watch code=%d want 400", code)
	}

	var created struct {
		models.WatchLocation
		HotspotCount int `json:"hotspot_count"`
	}
	body := `{"name":"Cabin","email":"a@example.com","lat":38.5,"lon":-119.5,"radius_miles":5}`
	if code := do(t, srv, "POST", "/watch", body, &created); code != http.StatusCreated {
		t.Fatalf("POST /watch code=%d", code)
	}
	if created.ID == "" || created.HotspotCount != 1 {
		t.Fatalf("created=%+v", created)
	}

	var listed []struct {
		ID           string `json:"location_id"`
		HotspotCount int    `json:"hotspot_count"`
	}
	if code := do(t, srv, "GET", "/watch", "", &listed); code != http.StatusOK {
		t.Fatalf("GET /watch code=%d", code)
	}
	if len(listed) != 1 || listed[0].ID != created.ID || listed[0].HotspotCount != 1 {
		t.Fatalf("listed=%+v", listed)
	}

	var circles struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if code := do(t, srv, "GET", "/watch/circles", "", &circles); code != http.StatusOK {
		t.Fatalf("GET /watch/circles code=%d", code)
	}
	if circles.Type != "FeatureCollection" || len(circles.Features) != 1 {
		t.Fatalf("circles type=%s features=%d", circles.Type, len(circles.Features))
	}
	if !strings.Contains(string(circles.Features[0]), "Polygon") {
		t.Fatalf("circle feature is not a polygon: %s", circles.Features[0])
	}

	if code := do(t, srv, "DELETE", "/watch/"+created.ID, "", nil); code != http.StatusNoContent {
		t.Fatalf("DELETE code=%d want 204", code)
	}
	if code := do(t, srv, "DELETE", "/watch/"+created.ID, "", nil); code != http.StatusNotFound {
		t.Fatalf("second DELETE code=%d want 404", code)
	}
}
