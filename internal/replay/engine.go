package replay

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/clock"
	"github.com/Capitan-Parrot/wildfire-live/internal/metrics"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
)

const (
	DefaultInterval     = 1500 * time.Millisecond
	DefaultFetchTimeout = 20 * time.Second
)

// Source provides historical snapshots.
type Source interface {
	ListSnapshots(ctx context.Context, r models.Range) ([]models.Snapshot, error)
	FetchSnapshot(ctx context.Context, s models.Snapshot) (models.FullState, error)
}

// Sink receives the state for the current cursor. state and snap are nil when
// the range holds no snapshots.
type Sink func(state *models.FullState, snap *models.Snapshot)

type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	Clock        clock.Clock
}

// Cursor describes the engine position.
type Cursor struct {
	Range     models.Range      `json:"range"`
	Index     int               `json:"index"`
	Length    int               `json:"length"`
	Timestamp string            `json:"timestamp"`
	Playing   bool              `json:"playing"`
	State     *models.FullState `json:"-"`
}

type Engine struct {
	source Source
	opts   Options

	mu        sync.Mutex
	rng       models.Range
	snapshots []models.Snapshot
	index     int
	playing   bool
	playGen   uint64
	timer     clock.Timer
	token     uint64
	listGen   uint64
	current   *models.FullState
	closed    bool
	sink      Sink
	discarded uint64

	// deliverMu keeps a stale delivery from overtaking a newer one
	deliverMu sync.Mutex
}

func NewEngine(source Source, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Engine{source: source, opts: opts, rng: models.DefaultRange}
}

// OnState registers the single consumer of replay states.
func (e *Engine) OnState(sink Sink) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
}

func (e *Engine) Range() models.Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng
}

func (e *Engine) Current() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := Cursor{
		Range:   e.rng,
		Index:   e.index,
		Length:  len(e.snapshots),
		Playing: e.playing,
		State:   e.current,
	}
	if len(e.snapshots) > 0 {
		c.Timestamp = e.snapshots[e.index].Label()
	}
	return c
}

// DiscardedFetches counts snapshot results dropped because the cursor moved on.
func (e *Engine) DiscardedFetches() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discarded
}

// SetRange stops playback, loads the snapshot list for r and moves the cursor
// to the first snapshot. A failed list fetch leaves an empty list.
func (e *Engine) SetRange(ctx context.Context, r models.Range) error {
	if !r.Valid() {
		_, err := models.ParseRange(string(r))
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.stopPlaybackLocked()
	e.listGen++
	gen := e.listGen
	e.token++
	e.rng = r
	// пока список грузится, управление курсором ничего не делает
	e.snapshots = nil
	e.index = 0
	e.current = nil
	e.mu.Unlock()

	list, err := e.source.ListSnapshots(ctx, r)
	if err != nil {
		log.Printf("Replay: list %s failed, showing no data: %v", r, err)
		list = nil
	}

	e.mu.Lock()
	if gen != e.listGen || e.closed {
		e.mu.Unlock()
		return nil
	}
	e.stopPlaybackLocked()
	e.snapshots = list
	e.index = 0
	log.Printf("Replay: range %s has %d snapshots", r, len(list))

	if len(list) == 0 {
		e.token++
		tok := e.token
		e.mu.Unlock()
		e.deliver(tok, nil, nil)
		return nil
	}
	e.startFetchLocked()
	e.mu.Unlock()
	return nil
}

// Seek moves the cursor to i, clamped to the list, and stops playback.
func (e *Engine) Seek(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || len(e.snapshots) == 0 {
		return
	}
	e.stopPlaybackLocked()
	i = min(max(i, 0), len(e.snapshots)-1)
	if i == e.index {
		return
	}
	e.index = i
	e.startFetchLocked()
}

func (e *Engine) StepForward() {
	e.step(1)
}

func (e *Engine) StepBack() {
	e.step(-1)
}

func (e *Engine) step(delta int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || len(e.snapshots) == 0 {
		return
	}
	e.stopPlaybackLocked()
	next := e.index + delta
	if next < 0 || next >= len(e.snapshots) {
		return
	}
	e.index = next
	e.startFetchLocked()
}

// Play advances the cursor every interval until the last snapshot. It needs at
// least two snapshots and a cursor short of the end.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.playing || len(e.snapshots) < 2 || e.index >= len(e.snapshots)-1 {
		return
	}
	e.playing = true
	e.playGen++
	e.scheduleTickLocked(e.playGen)
}

func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPlaybackLocked()
}

func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Close stops playback and invalidates every in-flight fetch.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopPlaybackLocked()
	e.closed = true
	e.token++
	e.listGen++
}

func (e *Engine) scheduleTickLocked(gen uint64) {
	e.timer = e.opts.Clock.AfterFunc(e.opts.Interval, func() { e.tick(gen) })
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.playing || gen != e.playGen {
		return
	}
	e.timer = nil

	last := len(e.snapshots) - 1
	if e.index < last {
		e.index++
		e.startFetchLocked()
	}
	if e.index >= last {
		e.playing = false
		e.playGen++
		return
	}
	e.scheduleTickLocked(gen)
}

func (e *Engine) stopPlaybackLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.playing = false
	e.playGen++
}

// startFetchLocked loads the snapshot under the cursor in the background. The
// result is applied only if no newer cursor change happened meanwhile.
func (e *Engine) startFetchLocked() {
	e.token++
	tok := e.token
	snap := e.snapshots[e.index]

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.FetchTimeout)
		defer cancel()

		state, err := e.source.FetchSnapshot(ctx, snap)
		if err != nil {
			metrics.ReplayFetchesTotal.WithLabelValues("error").Inc()
			log.Printf("Replay: snapshot %s failed, showing empty state: %v", snap.Key, err)
			state = models.FullState{}
		}
		e.deliver(tok, &state, &snap)
	}()
}

func (e *Engine) deliver(tok uint64, state *models.FullState, snap *models.Snapshot) {
	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()

	e.mu.Lock()
	if tok != e.token {
		e.discarded++
		e.mu.Unlock()
		metrics.ReplayFetchesTotal.WithLabelValues("stale").Inc()
		return
	}
	e.current = state
	sink := e.sink
	e.mu.Unlock()

	if state != nil {
		metrics.ReplayFetchesTotal.WithLabelValues("applied").Inc()
	}
	if sink != nil {
		sink(state, snap)
	}
}
