package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
)

const statePayload = `{
	"hotspots": {"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-119.5,38.5]},"properties":{"hotspot_id":"h1","confidence":70}},
		{"type":"Feature","geometry":null,"properties":{"hotspot_id":"broken"}}
	]},
	"incidents": {"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[-120,38],[-119,38],[-119,39],[-120,38]]]},
		 "properties":{"incident_id":"inc-1","hotspot_count":3,"intensity":12}}
	]}
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/state/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(statePayload))
	})
	mux.HandleFunc("/replay/list", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("range"); got != "3d" {
			http.Error(w, `{"error":"bad range"}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"range":"3d","count":3,"snapshots":[
			{"key":"snapshots/2025-08-01/05.json","timestamp":"2025-08-01T05:00:00+00:00","date":"2025-08-01","hour":"05"},
			{"key":"snapshots/2025-07-31/23.json","timestamp":"2025-07-31T23:00:00+00:00","date":"2025-07-31","hour":"23"},
			{"key":"garbage","timestamp":"","date":"nope","hour":"xx"}
		]}`))
	})
	mux.HandleFunc("/replay/snapshot/2025-08-01/05", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(statePayload))
	})
	mux.HandleFunc("/replay/snapshot/2025-08-01/06", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"snapshot not found"}`, http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchLatestState(t *testing.T) {
	t.Parallel()

	c := NewClient(newTestServer(t).URL+"/", time.Second)
	state, err := c.FetchLatestState(context.Background())
	if err != nil {
		t.Fatalf("FetchLatestState error: %v", err)
	}
	if len(state.Hotspots) != 1 || state.Hotspots[0].ID != "h1" {
		t.Fatalf("hotspots=%+v want only h1", state.Hotspots)
	}
	if len(state.Incidents) != 1 || state.Incidents[0].HotspotCount != 3 {
		t.Fatalf("incidents=%+v want inc-1 with 3 hotspots", state.Incidents)
	}
}

func TestListSnapshots(t *testing.T) {
	t.Parallel()

	c := NewClient(newTestServer(t).URL, time.Second)
	list, err := c.ListSnapshots(context.Background(), models.Range3d)
	if err != nil {
		t.Fatalf("ListSnapshots error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("snapshots=%d want 2", len(list))
	}
	if list[0].Key != "snapshots/2025-07-31/23.json" || list[1].Key != "snapshots/2025-08-01/05.json" {
		t.Fatalf("order=%s,%s want oldest first", list[0].Key, list[1].Key)
	}

	if _, err := c.ListSnapshots(context.Background(), models.Range6h); err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("err=%v want bad status 400", err)
	}
}

func TestFetchSnapshot(t *testing.T) {
	t.Parallel()

	c := NewClient(newTestServer(t).URL, time.Second)

	snap, _ := models.SnapshotFromKey("snapshots/2025-08-01/05.json")
	state, err := c.FetchSnapshot(context.Background(), snap)
	if err != nil {
		t.Fatalf("FetchSnapshot error: %v", err)
	}
	if len(state.Incidents) != 1 {
		t.Fatalf("incidents=%d want 1", len(state.Incidents))
	}

	missing, _ := models.SnapshotFromKey("snapshots/2025-08-01/06.json")
	if _, err := c.FetchSnapshot(context.Background(), missing); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err=%v want bad status 404", err)
	}
}
