package feed

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/clock"
	"github.com/Capitan-Parrot/wildfire-live/internal/metrics"
	"github.com/Capitan-Parrot/wildfire-live/internal/models"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const (
	DefaultKeepalive   = 30 * time.Second
	DefaultBaseBackoff = time.Second
	DefaultMaxBackoff  = 30 * time.Second
	DefaultDialTimeout = 15 * time.Second
)

var pingPayload = []byte(`{"action":"ping"}`)

type Options struct {
	URL         string
	Keepalive   time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	DialTimeout time.Duration
	Dialer      Dialer
	Clock       clock.Clock
}

// Manager holds one logical connection to the live feed and keeps it alive
// while enabled.
type Manager struct {
	opts Options

	mu             sync.Mutex
	enabled        bool
	state          State
	retries        int
	gen            uint64
	transport      Transport
	cancelDial     context.CancelFunc
	reconnectTimer clock.Timer
	keepaliveTimer clock.Timer
	onMessage      func(models.FeedMessage)
	onState        func(State)

	// deliverMu serializes handler calls across read loops
	deliverMu sync.Mutex

	notifyMu     sync.Mutex
	lastNotified State
}

func NewManager(opts Options) *Manager {
	if opts.Keepalive <= 0 {
		opts.Keepalive = DefaultKeepalive
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultBaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{HandshakeTimeout: opts.DialTimeout, WriteTimeout: 10 * time.Second}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	return &Manager{
		opts:         opts,
		state:        StateDisconnected,
		lastNotified: StateDisconnected,
	}
}

// Backoff returns min(base*2^retries, max).
func Backoff(retries int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < retries && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}

// OnMessage registers the single consumer of decoded feed messages,
// replacing any previous one.
func (m *Manager) OnMessage(handler func(models.FeedMessage)) {
	m.mu.Lock()
	m.onMessage = handler
	m.mu.Unlock()
}

func (m *Manager) OnStateChange(handler func(State)) {
	m.mu.Lock()
	m.onState = handler
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Retries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *Manager) Enable() {
	m.mu.Lock()
	if m.enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = true
	m.retries = 0
	log.Printf("Feed: enabled, connecting to %s", m.opts.URL)
	m.connectLocked()
	m.mu.Unlock()

	m.notifyState()
}

// Disable stops all timers, closes the transport and leaves the manager
// disconnected until the next Enable.
func (m *Manager) Disable() {
	m.mu.Lock()
	if !m.enabled && m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.enabled = false
	m.gen++
	stopTimer(&m.reconnectTimer)
	stopTimer(&m.keepaliveTimer)
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	t := m.transport
	m.transport = nil
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if t != nil {
		if err := t.Close(); err != nil {
			log.Printf("Feed: close error: %v", err)
		}
	}
	log.Println("Feed: disabled")
	m.notifyState()
}

func (m *Manager) connectLocked() {
	if !m.enabled || m.state != StateDisconnected {
		return
	}
	stopTimer(&m.reconnectTimer)

	m.gen++
	gen := m.gen
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.DialTimeout)
	m.cancelDial = cancel
	m.setStateLocked(StateConnecting)

	go m.dial(ctx, cancel, gen)
}

func (m *Manager) dial(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer cancel()

	t, err := m.opts.Dialer.Dial(ctx, m.opts.URL)

	m.mu.Lock()
	if gen != m.gen || !m.enabled {
		m.mu.Unlock()
		if t != nil {
			_ = t.Close()
		}
		return
	}
	m.cancelDial = nil

	if err != nil {
		log.Printf("Feed: connect failed (retry %d): %v", m.retries, err)
		m.handleCloseLocked()
		m.mu.Unlock()
		m.notifyState()
		return
	}

	m.transport = t
	m.retries = 0
	m.setStateLocked(StateConnected)
	m.scheduleKeepaliveLocked(gen)
	m.mu.Unlock()

	log.Println("Feed: connected")
	m.notifyState()
	m.readLoop(t, gen)
}

// handleCloseLocked moves to disconnected and, while enabled, schedules the
// next attempt with exponential backoff.
func (m *Manager) handleCloseLocked() {
	stopTimer(&m.keepaliveTimer)
	m.transport = nil
	m.setStateLocked(StateDisconnected)

	if !m.enabled {
		return
	}

	delay := Backoff(m.retries, m.opts.BaseBackoff, m.opts.MaxBackoff)
	m.retries++
	gen := m.gen
	stopTimer(&m.reconnectTimer)
	m.reconnectTimer = m.opts.Clock.AfterFunc(delay, func() { m.reconnect(gen) })
	metrics.FeedReconnectsTotal.Inc()
	log.Printf("Feed: reconnecting in %s", delay)
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.enabled {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	m.connectLocked()
	m.mu.Unlock()

	m.notifyState()
}

func (m *Manager) scheduleKeepaliveLocked(gen uint64) {
	m.keepaliveTimer = m.opts.Clock.AfterFunc(m.opts.Keepalive, func() { m.keepalive(gen) })
}

func (m *Manager) keepalive(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnected || m.transport == nil {
		m.mu.Unlock()
		return
	}
	t := m.transport
	m.scheduleKeepaliveLocked(gen)
	m.mu.Unlock()

	if err := t.WriteMessage(pingPayload); err != nil {
		log.Printf("Feed: keepalive failed: %v", err)
		// закрытие разбудит readLoop, он и запланирует переподключение
		_ = t.Close()
	}
}

func (m *Manager) readLoop(t Transport, gen uint64) {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			m.mu.Lock()
			current := gen == m.gen && m.transport == t
			if current {
				log.Printf("Feed: connection lost: %v", err)
				m.handleCloseLocked()
			}
			m.mu.Unlock()

			if current {
				_ = t.Close()
				m.notifyState()
			}
			return
		}

		msg, err := models.DecodeFeedMessage(data)
		if err != nil {
			metrics.FeedDroppedTotal.Inc()
			log.Printf("Feed: dropping malformed payload (%d bytes): %v", len(data), err)
			continue
		}
		metrics.FeedMessagesTotal.WithLabelValues(msg.Action).Inc()
		m.deliver(gen, msg)
	}
}

func (m *Manager) deliver(gen uint64, msg models.FeedMessage) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	handler := m.onMessage
	current := gen == m.gen
	m.mu.Unlock()

	if current && handler != nil {
		handler(msg)
	}
}

func (m *Manager) setStateLocked(s State) {
	m.state = s
	if s == StateConnected {
		metrics.FeedConnected.Set(1)
	} else {
		metrics.FeedConnected.Set(0)
	}
}

// notifyState reports the latest state to the observer; intermediate states
// that were already superseded may be skipped.
func (m *Manager) notifyState() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	s := m.state
	handler := m.onState
	m.mu.Unlock()

	if s == m.lastNotified {
		return
	}
	m.lastNotified = s
	if handler != nil {
		handler(s)
	}
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
