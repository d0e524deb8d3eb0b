package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/feed"
	"github.com/Capitan-Parrot/wildfire-live/internal/geofence"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
	"github.com/Capitan-Parrot/wildfire-live/internal/reconciler"
	"github.com/Capitan-Parrot/wildfire-live/internal/replay"
)

type Mode string

const (
	ModeLive   Mode = "live"
	ModeReplay Mode = "replay"
)

const (
	defaultWatchRefreshInterval = time.Minute
	defaultAlertInterval        = 5 * time.Minute
)

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrNotLive     = errors.New("not in live mode")
	ErrNotReplay   = errors.New("not in replay mode")
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeLive, ModeReplay:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Feed is the live connection as seen by the syncer.
type Feed interface {
	OnMessage(handler func(models.FeedMessage))
	OnStateChange(handler func(feed.State))
	State() feed.State
	Retries() int
	Enable()
	Disable()
}

// Replay is the historical playback engine as seen by the syncer.
type Replay interface {
	OnState(sink replay.Sink)
	Range() models.Range
	Current() replay.Cursor
	SetRange(ctx context.Context, r models.Range) error
	Seek(i int)
	StepForward()
	StepBack()
	Play()
	Pause()
	Close()
}

type StateFetcher interface {
	FetchLatestState(ctx context.Context) (models.FullState, error)
}

type AlertEvaluator interface {
	Evaluate(ctx context.Context, locations []models.WatchLocation, hotspots []models.Hotspot) ([]models.Alert, error)
}

type Options struct {
	Mode                 Mode
	Range                models.Range
	WatchRefreshInterval time.Duration
	AlertInterval        time.Duration
}

// Syncer switches the map between the live feed and replay and keeps the
// geofence counts and alerts in step with whatever is shown.
type Syncer struct {
	feed    Feed
	replay  Replay
	rec     *reconciler.Reconciler
	fence   *geofence.Index
	fetcher StateFetcher
	watches *Watches
	alerts  AlertEvaluator
	opts    Options

	// switchMu serializes mode switches end to end
	switchMu     sync.Mutex
	replaySeeded bool

	mu          sync.Mutex
	mode        Mode
	lastRefresh time.Time
	lastErr     string
}

// New wires the components together. alerts may be nil.
func New(f Feed, r Replay, rec *reconciler.Reconciler, fence *geofence.Index, fetcher StateFetcher, watches *Watches, alerts AlertEvaluator, opts Options) *Syncer {
	if opts.Mode == "" {
		opts.Mode = ModeLive
	}
	if opts.Range == "" {
		opts.Range = models.DefaultRange
	}
	if opts.WatchRefreshInterval <= 0 {
		opts.WatchRefreshInterval = defaultWatchRefreshInterval
	}
	if opts.AlertInterval <= 0 {
		opts.AlertInterval = defaultAlertInterval
	}

	s := &Syncer{
		feed:    f,
		replay:  r,
		rec:     rec,
		fence:   fence,
		fetcher: fetcher,
		watches: watches,
		alerts:  alerts,
		opts:    opts,
	}

	rec.OnChange(func(v reconciler.View) {
		fence.SetHotspots(v.Hotspots)
	})
	f.OnMessage(s.handleFeedMessage)
	f.OnStateChange(func(st feed.State) {
		log.Printf("Syncer: feed %s", st)
	})
	r.OnState(s.handleReplayState)
	return s
}

// Run enters the configured mode and keeps watch locations and alerts
// up to date until ctx is done.
func (s *Syncer) Run(ctx context.Context) {
	if err := s.ReloadWatches(ctx); err != nil {
		log.Printf("Syncer: failed to load watch locations: %v", err)
	}
	if err := s.SetMode(ctx, s.opts.Mode); err != nil {
		log.Printf("Syncer: failed to enter %s mode: %v", s.opts.Mode, err)
	}

	watchTicker := time.NewTicker(s.opts.WatchRefreshInterval)
	defer watchTicker.Stop()

	var alertC <-chan time.Time
	if s.alerts != nil {
		alertTicker := time.NewTicker(s.opts.AlertInterval)
		defer alertTicker.Stop()
		alertC = alertTicker.C
	}

	log.Printf("Syncer: running in %s mode", s.Mode())
	for {
		select {
		case <-ctx.Done():
			s.feed.Disable()
			s.replay.Close()
			log.Println("Syncer: shutting down")
			return
		case <-watchTicker.C:
			if err := s.ReloadWatches(ctx); err != nil {
				log.Printf("Syncer: failed to reload watch locations: %v", err)
			}
		case <-alertC:
			if _, err := s.EvaluateAlerts(ctx); err != nil && !errors.Is(err, ErrNotLive) {
				log.Printf("Syncer: alert evaluation error: %v", err)
			}
		}
	}
}

func (s *Syncer) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches between live and replay. Entering live loads the latest
// full state and enables the feed; entering replay disables the feed and
// reloads the current replay range.
func (s *Syncer) SetMode(ctx context.Context, mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	prev := s.mode
	if prev == mode {
		s.mu.Unlock()
		return nil
	}
	s.mode = mode
	s.mu.Unlock()
	log.Printf("Syncer: mode %s -> %s", prev, mode)

	// вызовы компонентов вне s.mu: их колбэки берут s.mu
	switch mode {
	case ModeLive:
		s.replay.Pause()
		if err := s.refresh(ctx, prev == ModeReplay); err != nil {
			log.Printf("Syncer: %v", err)
		}
		s.feed.Enable()
	case ModeReplay:
		s.feed.Disable()
		rng := s.replay.Range()
		if !s.replaySeeded {
			// первый вход в replay берет диапазон из конфига
			rng = s.opts.Range
			s.replaySeeded = true
		}
		if err := s.replay.SetRange(ctx, rng); err != nil {
			return err
		}
	}
	return nil
}

// Refresh replaces the live state with the latest full state from the backend,
// overwriting any increments applied since.
func (s *Syncer) Refresh(ctx context.Context) error {
	if s.Mode() != ModeLive {
		return ErrNotLive
	}
	return s.refresh(ctx, false)
}

func (s *Syncer) refresh(ctx context.Context, clearOnFail bool) error {
	state, err := s.fetcher.FetchLatestState(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeLive {
		return nil
	}
	if err != nil {
		s.lastErr = err.Error()
		if clearOnFail {
			s.rec.ApplyFullState(nil, nil)
		}
		return fmt.Errorf("refresh failed: %w", err)
	}

	s.rec.ApplyFullState(state.Hotspots, state.Incidents)
	s.lastRefresh = time.Now().UTC()
	s.lastErr = ""
	log.Printf("Syncer: loaded %d hotspots, %d incidents", len(state.Hotspots), len(state.Incidents))
	return nil
}

func (s *Syncer) handleFeedMessage(msg models.FeedMessage) {
	if msg.Action != models.ActionIncidentsUpdated || msg.Incidents == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeLive {
		return
	}
	s.rec.ApplyIncrement(msg.Incidents)
}

func (s *Syncer) handleReplayState(state *models.FullState, _ *models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeReplay {
		return
	}
	if state == nil {
		s.rec.ApplyFullState(nil, nil)
		return
	}
	s.rec.ApplyFullState(state.Hotspots, state.Incidents)
}

func (s *Syncer) SetRange(ctx context.Context, r models.Range) error {
	if s.Mode() != ModeReplay {
		return ErrNotReplay
	}
	return s.replay.SetRange(ctx, r)
}

func (s *Syncer) Seek(i int) error {
	if s.Mode() != ModeReplay {
		return ErrNotReplay
	}
	s.replay.Seek(i)
	return nil
}

// Step moves the replay cursor by one snapshot; forward is false for back.
func (s *Syncer) Step(forward bool) error {
	if s.Mode() != ModeReplay {
		return ErrNotReplay
	}
	if forward {
		s.replay.StepForward()
	} else {
		s.replay.StepBack()
	}
	return nil
}

func (s *Syncer) Play() error {
	if s.Mode() != ModeReplay {
		return ErrNotReplay
	}
	s.replay.Play()
	return nil
}

func (s *Syncer) Pause() error {
	if s.Mode() != ModeReplay {
		return ErrNotReplay
	}
	s.replay.Pause()
	return nil
}

// EvaluateAlerts checks the live hotspots against the watch locations.
func (s *Syncer) EvaluateAlerts(ctx context.Context) ([]models.Alert, error) {
	if s.alerts == nil {
		return nil, nil
	}
	if s.Mode() != ModeLive {
		return nil, ErrNotLive
	}
	return s.alerts.Evaluate(ctx, s.fence.Locations(), s.rec.View().Hotspots)
}

func (s *Syncer) ReloadWatches(ctx context.Context) error {
	locations, err := s.watches.List(ctx)
	if err != nil {
		return err
	}
	s.fence.SetLocations(locations)
	return nil
}

// HandleWatchEvent reloads watch locations after a change made elsewhere.
func (s *Syncer) HandleWatchEvent(ctx context.Context, event models.WatchEvent) error {
	log.Printf("Syncer: watch location %s %s", event.LocationID, event.Action)
	return s.ReloadWatches(ctx)
}

func (s *Syncer) AddWatch(ctx context.Context, loc models.WatchLocation) (models.WatchLocation, error) {
	saved, err := s.watches.Add(ctx, loc)
	if err != nil {
		return models.WatchLocation{}, err
	}
	return saved, s.ReloadWatches(ctx)
}

func (s *Syncer) RemoveWatch(ctx context.Context, locationID string) error {
	if err := s.watches.Remove(ctx, locationID); err != nil {
		return err
	}
	return s.ReloadWatches(ctx)
}

// View returns the state currently shown on the map.
func (s *Syncer) View() reconciler.View {
	return s.rec.View()
}

func (s *Syncer) TopIncidents(n int) []models.Incident {
	return s.rec.TopIncidents(n)
}

func (s *Syncer) Fence() *geofence.Index {
	return s.fence
}

type Status struct {
	Mode          Mode           `json:"mode"`
	Connection    feed.State     `json:"connection"`
	Retries       int            `json:"retries"`
	HotspotCount  int            `json:"hotspot_count"`
	IncidentCount int            `json:"incident_count"`
	Version       uint64         `json:"version"`
	Replay        replay.Cursor  `json:"replay"`
	LastRefresh   *time.Time     `json:"last_refresh,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	WatchCounts   map[string]int `json:"watch_counts"`
}

func (s *Syncer) Status() Status {
	s.mu.Lock()
	st := Status{Mode: s.mode, LastError: s.lastErr}
	if !s.lastRefresh.IsZero() {
		t := s.lastRefresh
		st.LastRefresh = &t
	}
	s.mu.Unlock()

	v := s.rec.View()
	st.Connection = s.feed.State()
	st.Retries = s.feed.Retries()
	st.HotspotCount = v.HotspotCount
	st.IncidentCount = v.IncidentCount
	st.Version = v.Version
	st.Replay = s.replay.Current()
	st.WatchCounts = s.fence.Counts()
	return st
}
