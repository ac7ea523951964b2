// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus is the bounded, multi-producer/multi-consumer event bus every
// SensorHub component publishes domain events through. Publishing always
// durably appends to the event log first; dispatch to in-process handlers
// then happens on a fixed worker pool and is best-effort (non-blocking,
// drop-on-full).
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/daniell-olaitan/sensorhub/internal/log"
	"github.com/daniell-olaitan/sensorhub/internal/metrics"
	"github.com/daniell-olaitan/sensorhub/internal/store"
)

// Event is a single published domain event, durably appended to
// events:{topic} before dispatch.
type Event struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler processes a single dispatched event. A returned error is logged
// and does not stop dispatch to subsequent handlers or halt the worker.
type Handler func(ctx context.Context, ev Event) error

const eventRetention = 24 * time.Hour

// Config tunes the worker pool and queue depth.
type Config struct {
	QueueMaxSize int
	WorkerCount  int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{QueueMaxSize: 10000, WorkerCount: 4}
}

// Bus is the bounded event bus.
type Bus struct {
	store  *store.Store
	config Config
	logger zerolog.Logger

	mu          sync.RWMutex
	subscribers map[string][]Handler

	queue  chan Event
	wg     sync.WaitGroup
	cancel context.CancelFunc
	seq    uint64
	seqMu  sync.Mutex
}

// New builds a Bus over store using cfg. Call Start before publishing. A
// non-positive QueueMaxSize or a negative WorkerCount takes the default;
// a WorkerCount of 0 starts no workers, so queued events stay queued.
func New(s *store.Store, cfg Config) *Bus {
	defaults := DefaultConfig()
	if cfg.QueueMaxSize <= 0 {
		cfg.QueueMaxSize = defaults.QueueMaxSize
	}
	if cfg.WorkerCount < 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	return &Bus{
		store:       s,
		config:      cfg,
		logger:      log.WithComponent("bus"),
		subscribers: make(map[string][]Handler),
	}
}

// Subscribe registers handler for topic. Handlers fire in registration
// order for every event dispatched on that topic.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
}

// Start spins up the fixed worker pool. It is safe to call once per Bus.
func (b *Bus) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.queue = make(chan Event, b.config.QueueMaxSize)

	for i := 0; i < b.config.WorkerCount; i++ {
		b.wg.Add(1)
		go b.worker(workerCtx, i)
	}
}

// Stop cancels the workers and waits up to 1s for them to finish the event
// each is currently processing before returning. Events still waiting in
// the queue are not dispatched.
func (b *Bus) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		b.logger.Warn().Msg("event bus workers did not drain within shutdown grace period")
	}
}

// QueueDepth reports the current number of events waiting for dispatch,
// used by the telemetry pipeline's backpressure gate.
func (b *Bus) QueueDepth() int {
	return len(b.queue)
}

// Publish durably appends the event to the log, then attempts a
// non-blocking enqueue for in-process dispatch. A full queue drops the
// event from dispatch (but it remains in the durable log) and is recorded
// as a metric plus a warning log, never a silent loss.
func (b *Bus) Publish(ctx context.Context, topic, eventType string, payload map[string]any) error {
	ev := Event{
		ID:        b.nextID(topic),
		Topic:     topic,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	if err := b.appendEvent(ctx, ev); err != nil {
		return fmt.Errorf("bus: append event: %w", err)
	}

	select {
	case b.queue <- ev:
	default:
		metrics.IncBusDrop(topic)
		b.logger.Warn().
			Str(log.FieldTopic, topic).
			Str(log.FieldEvent, eventType).
			Msg("event bus queue full, dropping dispatch (event remains in durable log)")
	}

	return nil
}

func (b *Bus) nextID(topic string) string {
	b.seqMu.Lock()
	defer b.seqMu.Unlock()
	b.seq++
	return fmt.Sprintf("%s:%d", topic, time.Now().UnixMicro()+int64(b.seq))
}

func (b *Bus) appendEvent(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	key := store.EventsKey(ev.Topic)
	if err := b.store.ZAdd(ctx, key, float64(ev.Timestamp.Unix()), string(data)); err != nil {
		return err
	}
	return b.store.Expire(ctx, key, eventRetention)
}

// Events returns events on topic scored at or after start (zero value
// means "from the beginning"), oldest first; when limit > 0 only the
// earliest limit events are returned.
func (b *Bus) Events(ctx context.Context, topic string, start time.Time, limit int) ([]Event, error) {
	min := "-inf"
	if !start.IsZero() {
		min = fmt.Sprintf("%d", start.Unix())
	}
	raw, err := b.store.ZRangeByScore(ctx, store.EventsKey(topic), min, "+inf", int64(limit))
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (b *Bus) worker(ctx context.Context, id int) {
	defer b.wg.Done()
	for {
		select {
		case ev := <-b.queue:
			b.dispatch(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, ev Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[ev.Topic]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error().
						Str(log.FieldTopic, ev.Topic).
						Interface("panic", r).
						Msg("event bus handler panicked")
				}
			}()
			if err := h(ctx, ev); err != nil {
				b.logger.Error().
					Err(err).
					Str(log.FieldTopic, ev.Topic).
					Str(log.FieldEvent, ev.Type).
					Msg("event bus handler failed")
			}
		}()
	}
}
