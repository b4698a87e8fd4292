// Package syncer reconciles the local document store with the remote store.
// A cycle pulls remote changes first and then pushes dirty local records.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
)

// ErrSyncInProgress is returned when a trigger arrives while a cycle runs.
// The trigger is dropped, not queued.
var ErrSyncInProgress = errors.New("syncer: sync already in progress")

// Remote is the request/response API of the remote store.
type Remote interface {
	// Select returns rows of collection updated strictly after since. A zero
	// since returns every row.
	Select(ctx context.Context, collection string, since time.Time) ([]map[string]any, error)
	// Insert upserts rows by primary key.
	Insert(ctx context.Context, collection string, rows []map[string]any) error
}

// PullSpec maps a remote collection to the local store. Apply, when set,
// stores one pulled row inside the pull transaction instead of the plain
// upsert; the row already carries the clean sync bookkeeping.
type PullSpec struct {
	Collection string
	Apply      func(ctx context.Context, tx docstore.Tx, row map[string]any, now time.Time) error
}

// PushSpec maps a local collection to the remote writes of one record.
type PushSpec struct {
	Collection string
	Split      func(json.RawMessage) ([]Write, error)
}

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerTimer   Trigger = "timer"
	TriggerOnline  Trigger = "online"
	TriggerManual  Trigger = "manual"
	TriggerStartup Trigger = "startup"
	TriggerJob     Trigger = "job"
)

// State of the engine.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
)

// EngineConfig tunes scheduling and the push retry policy.
type EngineConfig struct {
	Interval     time.Duration
	CallTimeout  time.Duration
	PushAttempts int
	RetryBackoff time.Duration
	Pull         []PullSpec
	Push         []PushSpec
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 15 * time.Second
	}
	if c.PushAttempts <= 0 {
		c.PushAttempts = 1
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	return c
}

// Status is a point-in-time view of the engine.
type Status struct {
	State         State      `json:"state"`
	Online        bool       `json:"online"`
	LastEvent     *Event     `json:"last_event,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
}

// Engine runs sync cycles. Build one per process and share it.
type Engine struct {
	store     docstore.Store
	remote    Remote
	cfg       EngineConfig
	logger    *slog.Logger
	metrics   *Metrics
	publisher Publisher

	syncing atomic.Bool
	online  atomic.Bool
	wake    chan Trigger

	mu          sync.Mutex
	lastEvent   *Event
	lastSuccess *time.Time
	subs        map[chan Event]struct{}
	cancel      context.CancelFunc
	done        chan struct{}

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewEngine builds an engine that starts online. metrics and publisher may
// be nil.
func NewEngine(store docstore.Store, remote Remote, cfg EngineConfig, logger *slog.Logger, metrics *Metrics, publisher Publisher) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:     store,
		remote:    remote,
		cfg:       cfg.withDefaults(),
		logger:    logger.With(slog.String("component", "syncer")),
		metrics:   metrics,
		publisher: publisher,
		wake:      make(chan Trigger, 1),
		subs:      make(map[chan Event]struct{}),
		now:       time.Now,
		sleep:     sleepCtx,
	}
	e.online.Store(true)
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start resets records left in flight by a previous process and launches the
// scheduling loop. A first cycle runs right away when online.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return errors.New("syncer: engine already started")
	}
	if err := e.resetInFlight(ctx); err != nil {
		return err
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	if e.online.Load() {
		e.signal(TriggerStartup)
	}
	go e.loop(loopCtx, e.done)
	e.logger.Info("sync engine started", slog.Duration("interval", e.cfg.Interval))
	return nil
}

// Stop ends the scheduling loop and waits for a running cycle to return.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.online.Load() {
				continue
			}
			e.runScheduled(ctx, TriggerTimer)
		case trigger := <-e.wake:
			e.runScheduled(ctx, trigger)
		}
	}
}

// runScheduled never lets a cycle failure escape the loop.
func (e *Engine) runScheduled(ctx context.Context, trigger Trigger) {
	if _, err := e.SyncNow(ctx, trigger); err != nil && !errors.Is(err, ErrSyncInProgress) {
		e.logger.Debug("scheduled sync failed", slog.String("trigger", string(trigger)), slog.Any("error", err))
	}
}

func (e *Engine) signal(trigger Trigger) {
	select {
	case e.wake <- trigger:
	default:
	}
}

// SetOnline records connectivity. Going from offline to online wakes the
// loop for an immediate cycle.
func (e *Engine) SetOnline(online bool) {
	was := e.online.Swap(online)
	if online && !was {
		e.logger.Info("connectivity restored")
		e.signal(TriggerOnline)
	}
}

// Online reports the last connectivity state set.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// SyncNow runs one cycle in the caller's goroutine. It returns
// ErrSyncInProgress without waiting when another cycle is running.
func (e *Engine) SyncNow(ctx context.Context, trigger Trigger) (Event, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		e.metrics.cycle(trigger, CycleSkipped, 0)
		return Event{}, ErrSyncInProgress
	}
	defer e.syncing.Store(false)

	ev := Event{Trigger: trigger, StartedAt: e.now().UTC()}
	pulled, pushed, err := e.cycle(ctx)
	ev.FinishedAt = e.now().UTC()
	ev.Pulled, ev.Pushed = pulled, pushed
	if err != nil {
		ev.Status = CycleFailed
		ev.Error = err.Error()
		e.logger.Warn("sync cycle failed",
			slog.String("trigger", string(trigger)),
			slog.Int("pulled", pulled),
			slog.Int("pushed", pushed),
			slog.Any("error", err))
	} else {
		ev.Status = CycleSucceeded
		e.logger.Info("sync cycle finished",
			slog.String("trigger", string(trigger)),
			slog.Int("pulled", pulled),
			slog.Int("pushed", pushed))
	}
	e.finish(ctx, ev)
	return ev, err
}

func (e *Engine) cycle(ctx context.Context) (int, int, error) {
	pulled, err := e.pull(ctx)
	if err != nil {
		return pulled, 0, err
	}
	pushed, err := e.push(ctx)
	return pulled, pushed, err
}

func (e *Engine) finish(ctx context.Context, ev Event) {
	e.metrics.cycle(ev.Trigger, ev.Status, ev.FinishedAt.Sub(ev.StartedAt))

	e.mu.Lock()
	e.lastEvent = &ev
	if ev.Status == CycleSucceeded {
		at := ev.FinishedAt
		e.lastSuccess = &at
	}
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	e.mu.Unlock()

	if e.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CallTimeout)
	defer cancel()
	if err := e.publisher.Publish(pubCtx, ev); err != nil {
		e.logger.Warn("publish sync event", slog.Any("error", err))
	}
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	st := Status{State: StateIdle, Online: e.online.Load()}
	if e.syncing.Load() {
		st.State = StateSyncing
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastEvent != nil {
		ev := *e.lastEvent
		st.LastEvent = &ev
	}
	if e.lastSuccess != nil {
		at := *e.lastSuccess
		st.LastSuccessAt = &at
	}
	return st
}

// Subscribe returns a buffered channel of cycle events. Events are dropped
// for a subscriber that falls behind. Call the returned func to unsubscribe.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, ch)
			e.mu.Unlock()
			close(ch)
		})
	}
}
