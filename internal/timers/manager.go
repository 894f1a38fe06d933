// Package timers runs in-memory countdown timers.
package timers

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"buddy/internal/domain"
	"buddy/internal/metrics"
)

// Callback receives a timer snapshot.
type Callback func(timer domain.Timer)

// Options configures a Manager.
type Options struct {
	Clock      Clock
	Interval   time.Duration
	OnTick     Callback
	OnComplete Callback
	Logger     zerolog.Logger
}

// Manager owns the active timer set. Each timer counts down on its own
// goroutine; all mutation happens under mu. Ticks run one at a time, so
// tick callbacks for different timers never overlap. Timers sharing a tick
// boundary are not ordered relative to each other.
type Manager struct {
	clock    Clock
	interval time.Duration
	logger   zerolog.Logger

	tickMu sync.Mutex

	mu         sync.Mutex
	timers     map[string]*entry
	order      []string
	onTick     Callback
	onComplete Callback

	wg sync.WaitGroup
}

type entry struct {
	timer   domain.Timer
	stop    chan struct{}
	stopped bool
}

// halt must be called with the manager lock held.
func (e *entry) halt() {
	if !e.stopped {
		e.stopped = true
		close(e.stop)
	}
}

func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Manager{
		clock:      opts.Clock,
		interval:   opts.Interval,
		logger:     opts.Logger.With().Str("component", "timers").Logger(),
		timers:     make(map[string]*entry),
		onTick:     opts.OnTick,
		onComplete: opts.OnComplete,
	}
}

// SetCallbacks replaces the tick and completion callbacks.
func (m *Manager) SetCallbacks(onTick, onComplete Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTick = onTick
	m.onComplete = onComplete
}

// Add starts a countdown of duration seconds and returns its id immediately.
func (m *Manager) Add(duration int, label string) string {
	if duration < 0 {
		duration = 0
	}

	id := uuid.NewString()
	e := &entry{
		timer: domain.Timer{
			ID:        id,
			Label:     label,
			Duration:  duration,
			Remaining: duration,
			CreatedAt: m.clock.Now(),
		},
		stop: make(chan struct{}),
	}

	m.mu.Lock()
	m.timers[id] = e
	m.order = append(m.order, id)
	m.mu.Unlock()

	metrics.ActiveTimers.Inc()
	m.logger.Info().Str("timer_id", id).Str("label", label).Int("duration", duration).Msg("timer started")

	ticker := m.clock.NewTicker(m.interval)
	m.wg.Add(1)
	go m.run(id, e.stop, ticker)
	return id
}

// Remove cancels and forgets a timer. Unknown ids are ignored.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	e, ok := m.timers[id]
	if ok {
		m.dropLocked(id, e)
	}
	m.mu.Unlock()

	if ok {
		m.logger.Debug().Str("timer_id", id).Msg("timer removed")
	}
}

// Clear cancels every timer.
func (m *Manager) Clear() {
	m.mu.Lock()
	for id, e := range m.timers {
		m.dropLocked(id, e)
	}
	m.order = nil
	m.mu.Unlock()
}

// Close cancels every timer and waits for the countdown goroutines to exit.
func (m *Manager) Close() {
	m.Clear()
	m.wg.Wait()
}

// Get returns a snapshot of one timer.
func (m *Manager) Get(id string) (domain.Timer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.timers[id]
	if !ok {
		return domain.Timer{}, false
	}
	return e.timer, true
}

// List returns snapshots of all timers, oldest first. Completed timers stay
// listed until removed.
func (m *Manager) List() []domain.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Timer, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.timers[id].timer)
	}
	return out
}

func (m *Manager) dropLocked(id string, e *entry) {
	e.halt()
	delete(m.timers, id)
	if idx := slices.Index(m.order, id); idx >= 0 {
		m.order = slices.Delete(m.order, idx, idx+1)
	}
	if !e.timer.IsComplete {
		metrics.ActiveTimers.Dec()
	}
}

func (m *Manager) run(id string, stop <-chan struct{}, ticker Ticker) {
	defer m.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if m.tick(id) {
				return
			}
		}
	}
}

// tick advances one timer by a single period. It reports whether the
// countdown is over, either because the timer completed or because it is
// no longer in the set.
func (m *Manager) tick(id string) bool {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	m.mu.Lock()
	e, ok := m.timers[id]
	if !ok || e.timer.IsComplete {
		m.mu.Unlock()
		return true
	}

	remaining := e.timer.Remaining - 1
	completed := remaining <= 0
	if completed {
		remaining = 0
		e.timer.IsComplete = true
		e.halt()
	}
	e.timer.Remaining = remaining
	snapshot := e.timer
	onTick, onComplete := m.onTick, m.onComplete
	m.mu.Unlock()

	if onTick != nil {
		m.invoke("tick", onTick, snapshot)
	}
	if completed {
		metrics.ActiveTimers.Dec()
		metrics.TimersCompleted.Inc()
		m.logger.Info().Str("timer_id", id).Str("label", snapshot.Label).Msg("timer complete")
		if onComplete != nil {
			go m.invoke("complete", onComplete, snapshot)
		}
	}
	return completed
}

func (m *Manager) invoke(name string, fn Callback, snapshot domain.Timer) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic", r).
				Str("callback", name).
				Str("timer_id", snapshot.ID).
				Msg("timer callback panicked")
		}
	}()
	fn(snapshot)
}
