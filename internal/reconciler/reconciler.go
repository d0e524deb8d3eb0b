package reconciler

import (
	"log"
	"sort"
	"sync"

	"github.com/Capitan-Parrot/wildfire-live/internal/metrics"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/samber/lo"
)

const DefaultTopN = 5

// View is an immutable projection of the reconciled state. Slices must not be
// modified by readers.
type View struct {
	Hotspots      []models.Hotspot
	Incidents     []models.Incident
	Top           []models.Incident
	HotspotCount  int
	IncidentCount int
	Version       uint64
}

// Reconciler owns the authoritative hotspot and incident sets shown on the map.
type Reconciler struct {
	mu       sync.RWMutex
	view     View
	topN     int
	onChange func(View)

	// notifyMu keeps observer calls in mutation order
	notifyMu sync.Mutex
}

func New() *Reconciler {
	return &Reconciler{topN: DefaultTopN}
}

// OnChange registers the single observer called after every effective mutation.
func (r *Reconciler) OnChange(f func(View)) {
	r.mu.Lock()
	r.onChange = f
	r.mu.Unlock()
}

func (r *Reconciler) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

func (r *Reconciler) HotspotCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view.HotspotCount
}

func (r *Reconciler) IncidentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view.IncidentCount
}

// TopIncidents returns the n highest ranked incidents: hotspot count desc,
// then intensity desc, then incident id.
func (r *Reconciler) TopIncidents(n int) []models.Incident {
	r.mu.RLock()
	incidents := r.view.Incidents
	top := r.view.Top
	r.mu.RUnlock()

	if n <= len(top) {
		return append([]models.Incident(nil), top[:max(n, 0)]...)
	}
	return rank(incidents, n)
}

// ApplyFullState replaces both sets. Passing nil for both clears the map.
func (r *Reconciler) ApplyFullState(hotspots []models.Hotspot, incidents []models.Incident) {
	hs := append([]models.Hotspot(nil), hotspots...)
	inc := dedupIncidents(incidents)
	r.commit(func(v View) View {
		v.Hotspots = hs
		v.Incidents = inc
		return v
	})
}

// ApplyIncrement merges a batch of live incident records. Records that cannot
// be parsed are dropped; if none parse the call has no effect. Incoming
// incidents replace existing ones with the same id and the rest are kept.
func (r *Reconciler) ApplyIncrement(records []models.RawRecord) int {
	incoming := make([]models.Incident, 0, len(records))
	for _, rec := range records {
		inc, err := models.DecodeIncidentRecord(rec)
		if err != nil {
			metrics.IncidentRecordsDroppedTotal.Inc()
			log.Printf("Reconciler: dropping incident record: %v", err)
			continue
		}
		incoming = append(incoming, inc)
	}
	if len(incoming) == 0 {
		return 0
	}
	incoming = dedupIncidents(incoming)

	replaced := lo.SliceToMap(incoming, func(inc models.Incident) (string, struct{}) {
		return inc.ID, struct{}{}
	})

	r.commit(func(v View) View {
		kept := lo.Filter(v.Incidents, func(inc models.Incident, _ int) bool {
			_, ok := replaced[inc.ID]
			return !ok
		})
		v.Incidents = append(kept, incoming...)
		return v
	})
	return len(incoming)
}

// commit applies mutate and recomputes derived fields under the write lock.
func (r *Reconciler) commit(mutate func(View) View) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	next := mutate(r.view)
	next.HotspotCount = len(next.Hotspots)
	next.IncidentCount = len(next.Incidents)
	next.Top = rank(next.Incidents, r.topN)
	next.Version = r.view.Version + 1
	r.view = next
	observer := r.onChange
	r.mu.Unlock()

	metrics.HotspotsCurrent.Set(float64(next.HotspotCount))
	metrics.IncidentsCurrent.Set(float64(next.IncidentCount))

	if observer != nil {
		observer(next)
	}
}

func rank(incidents []models.Incident, n int) []models.Incident {
	if n <= 0 {
		return nil
	}
	sorted := append([]models.Incident(nil), incidents...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.HotspotCount != b.HotspotCount {
			return a.HotspotCount > b.HotspotCount
		}
		if a.Intensity != b.Intensity {
			return a.Intensity > b.Intensity
		}
		return a.ID < b.ID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// dedupIncidents keeps the last occurrence of every id, preserving the order
// of those last occurrences.
func dedupIncidents(incidents []models.Incident) []models.Incident {
	last := make(map[string]int, len(incidents))
	for i, inc := range incidents {
		last[inc.ID] = i
	}
	out := make([]models.Incident, 0, len(last))
	for i, inc := range incidents {
		if last[inc.ID] == i {
			out = append(out, inc)
		}
	}
	return out
}
