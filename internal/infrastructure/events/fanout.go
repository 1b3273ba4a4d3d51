package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hilthontt/actionlog/internal/domain"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"github.com/hilthontt/actionlog/internal/infrastructure/messaging"
	"github.com/hilthontt/actionlog/internal/infrastructure/metrics"
	"github.com/hilthontt/actionlog/internal/infrastructure/ws"
)

var ErrStopped = errors.New("fanout stopped")

// Broadcaster pushes a message to realtime subscribers without blocking.
type Broadcaster interface {
	Broadcast(msg *ws.Message) error
}

type Config struct {
	Topic      string
	Workers    int
	BufferSize int
	Timeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Topic:      "user_actions",
		Workers:    4,
		BufferSize: 1024,
		Timeout:    2 * time.Second,
	}
}

// Fanout delivers accepted actions to the external topic and the realtime hub
// on background workers. Delivery is best effort: failures are logged and
// counted, never retried and never reported to the submitter.
type Fanout struct {
	publisher messaging.Publisher
	topic     bool
	hub       Broadcaster
	logger    logging.Logger
	metrics   *metrics.Metrics
	cfg       Config

	queue   chan domain.ActionPayload
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

func NewFanout(publisher messaging.Publisher, hub Broadcaster, logger logging.Logger, m *metrics.Metrics, cfg Config) *Fanout {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}

	return &Fanout{
		publisher: publisher,
		topic:     topicEnabled(publisher),
		hub:       hub,
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
		queue:     make(chan domain.ActionPayload, cfg.BufferSize),
	}
}

// topicEnabled is false for a disabled stream, whose deliveries are skipped
// rather than counted.
func topicEnabled(publisher messaging.Publisher) bool {
	switch publisher.(type) {
	case nil, messaging.Noop, *messaging.Noop:
		return false
	}
	return true
}

func (f *Fanout) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return ErrStopped
	}
	if f.started {
		return fmt.Errorf("fanout already started")
	}

	for i := 0; i < f.cfg.Workers; i++ {
		f.wg.Add(1)
		go f.worker(i)
	}
	f.started = true

	f.logger.Info(logging.Fanout, logging.Startup, "fanout started", map[logging.ExtraKey]any{
		"Workers":      f.cfg.Workers,
		"BufferSize":   f.cfg.BufferSize,
		"TopicEnabled": f.topic,
		logging.Topic:  f.cfg.Topic,
	})
	return nil
}

// Stop refuses new events and waits up to timeout for queued ones to drain.
func (f *Fanout) Stop(timeout time.Duration) error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	pending := len(f.queue)
	close(f.queue)
	started := f.started
	f.mu.Unlock()

	if !started {
		return nil
	}

	f.logger.Info(logging.Fanout, logging.Shutdown, "stopping fanout", map[logging.ExtraKey]any{logging.Count: pending})

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("fanout stop timeout after %v", timeout)
	}
}

// Dispatch queues payload for delivery and never blocks. It reports whether
// the event was queued; a full queue drops the event.
func (f *Fanout) Dispatch(payload domain.ActionPayload) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.stopped {
		f.drop(payload, "fanout stopped, event dropped")
		return false
	}

	select {
	case f.queue <- payload:
		return true
	default:
		f.drop(payload, "fanout queue full, event dropped")
		return false
	}
}

func (f *Fanout) Pending() int {
	return len(f.queue)
}

func (f *Fanout) drop(payload domain.ActionPayload, msg string) {
	if f.metrics != nil {
		f.metrics.FanoutDropped()
	}
	f.logger.Warn(logging.Fanout, logging.Dispatch, msg, map[logging.ExtraKey]any{
		logging.UserID:     payload.UserID,
		logging.ActionType: payload.ActionType,
	})
}

func (f *Fanout) worker(id int) {
	defer f.wg.Done()

	for payload := range f.queue {
		if f.topic {
			f.deliverTopic(payload)
		}
		f.deliverHub(payload)
	}

	f.logger.Debugf("fanout worker %d stopped", id)
}

func (f *Fanout) deliverTopic(payload domain.ActionPayload) {
	err := f.guard(func() error {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.Timeout)
		defer cancel()

		return f.publisher.Publish(ctx, f.cfg.Topic, body)
	})
	f.record(metrics.SinkTopic, logging.Publish, payload, err)
}

func (f *Fanout) deliverHub(payload domain.ActionPayload) {
	if f.hub == nil {
		return
	}

	err := f.guard(func() error {
		return f.hub.Broadcast(ws.NewUserAction(payload.UserID, payload))
	})
	f.record(metrics.SinkHub, logging.Broadcast, payload, err)
}

// guard runs fn and turns a panic into an error so one bad sink cannot take
// the worker down.
func (f *Fanout) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (f *Fanout) record(sink string, sub logging.SubCategory, payload domain.ActionPayload, err error) {
	if err == nil {
		if f.metrics != nil {
			f.metrics.FanoutDelivered(sink)
		}
		return
	}

	if f.metrics != nil {
		f.metrics.FanoutFailed(sink)
	}
	f.logger.Error(logging.Fanout, sub, "fanout delivery failed", map[logging.ExtraKey]any{
		logging.Sink:         sink,
		logging.Topic:        f.cfg.Topic,
		logging.UserID:       payload.UserID,
		logging.ActionType:   payload.ActionType,
		logging.ErrorMessage: err.Error(),
	})
}
