/*
 * Copyright 2026 Gridwatch Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package collector actively polls a registry of SNMP targets on independent
// schedules under a configured concurrency ceiling and emits raw telemetry
// for each successful poll.
package collector

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gridwatch/otmap/pkg/config"
	"github.com/gridwatch/otmap/pkg/logger"
	"github.com/gridwatch/otmap/pkg/models"
)

const (
	defaultPollInterval  = 30 * time.Second
	defaultTimeout       = 5 * time.Second
	defaultRetries       = 2
	defaultMaxConcurrent = 10
	defaultBatchSize     = 50
	defaultSNMPPort      = 161

	eventBuffer = 256
)

// Config controls the scheduling loop. Changes applied through UpdateConfig
// take effect on the next tick and never interrupt an in-flight poll.
type Config struct {
	PollInterval  config.Duration `json:"poll_interval"`
	Timeout       config.Duration `json:"timeout"`
	Retries       int             `json:"retries"`
	MaxConcurrent int             `json:"max_concurrent"`
	BatchSize     int             `json:"batch_size"`
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = config.Duration(defaultPollInterval)
	}

	if c.Timeout <= 0 {
		c.Timeout = config.Duration(defaultTimeout)
	}

	if c.Retries <= 0 {
		c.Retries = defaultRetries
	}

	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}

	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}

	return c
}

// ConfigUpdate is a partial reconfiguration; nil fields keep their value.
type ConfigUpdate struct {
	PollInterval  *config.Duration `json:"poll_interval,omitempty"`
	Timeout       *config.Duration `json:"timeout,omitempty"`
	Retries       *int             `json:"retries,omitempty"`
	MaxConcurrent *int             `json:"max_concurrent,omitempty"`
	BatchSize     *int             `json:"batch_size,omitempty"`
}

// TargetSpec describes one SNMP target. Missing fields are accepted at
// registration; validation failures surface as collection-time errors.
type TargetSpec struct {
	Host          string          `json:"host"`
	Port          uint16          `json:"port,omitempty"`
	Version       string          `json:"version"`
	Community     string          `json:"community,omitempty"`
	SecurityName  string          `json:"security_name,omitempty"`
	SecurityLevel string          `json:"security_level,omitempty"`
	AuthProtocol  string          `json:"auth_protocol,omitempty"`
	AuthKey       string          `json:"auth_key,omitempty"`
	PrivProtocol  string          `json:"priv_protocol,omitempty"`
	PrivKey       string          `json:"priv_key,omitempty"`
	Enabled       bool            `json:"enabled"`
	PollInterval  config.Duration `json:"poll_interval,omitempty"`
}

type target struct {
	id       string
	spec     TargetSpec
	session  session
	lastPoll time.Time
	inFlight bool
	removed  bool
}

// EventKind discriminates collector lifecycle and data events.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventStopped EventKind = "stopped"
	EventData    EventKind = "data"
	EventError   EventKind = "error"
)

// Event is the typed outbound signal consumed by the pipeline.
type Event struct {
	Kind     EventKind
	TargetID string
	Record   *models.TelemetryRecord
	Err      error
	Time     time.Time
}

// Status is a point-in-time snapshot of the collector counters.
type Status struct {
	Polls     uint64    `json:"polls"`
	Successes uint64    `json:"successes"`
	Errors    uint64    `json:"errors"`
	LastPoll  time.Time `json:"last_poll"`
	Running   bool      `json:"running"`
}

// pollFunc performs one poll of a target and returns the raw payload. It is
// a field so tests can substitute the SNMP round trip.
type pollFunc func(ctx context.Context, sess session, spec TargetSpec) (json.RawMessage, error)

// Collector is the bounded concurrent SNMP poller.
type Collector struct {
	mu      sync.Mutex
	cfg     Config
	targets map[string]*target
	sem     chan struct{}

	events chan Event

	polls     atomic.Uint64
	successes atomic.Uint64
	errorsN   atomic.Uint64
	lastPoll  atomic.Int64

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	poll       pollFunc
	newSession func(spec TargetSpec, timeout time.Duration, retries int) (session, error)

	log logger.Logger
}

// New creates a collector with an empty target registry.
func New(cfg Config, log logger.Logger) *Collector {
	return &Collector{
		cfg:        cfg.withDefaults(),
		targets:    make(map[string]*target),
		events:     make(chan Event, eventBuffer),
		poll:       snmpPoll,
		newSession: newSNMPSession,
		log:        log.WithComponent("collector"),
	}
}

// Events returns the outbound event channel. It is never closed; consumers
// stop reading after observing a stopped event.
func (c *Collector) Events() <-chan Event {
	return c.events
}

// AddTarget registers a target and returns its id. The registry survives
// stop/start cycles within the process.
func (c *Collector) AddTarget(spec TargetSpec) string {
	if spec.Port == 0 {
		spec.Port = defaultSNMPPort
	}

	id := uuid.New().String()

	c.mu.Lock()
	c.targets[id] = &target{id: id, spec: spec}
	c.mu.Unlock()

	c.log.Info().Str("target_id", id).Str("host", spec.Host).Msg("target registered")

	return id
}

// RemoveTarget deregisters a target, returning false for an unknown id. A
// poll already in flight completes before the session is torn down.
func (c *Collector) RemoveTarget(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.targets[id]
	if !ok {
		return false
	}

	delete(c.targets, id)

	if t.inFlight {
		t.removed = true
	} else if t.session != nil {
		t.session.Close()
		t.session = nil
	}

	return true
}

// SetTargetEnabled flips a target's enabled flag; disabled targets are
// skipped by the scheduler.
func (c *Collector) SetTargetEnabled(id string, enabled bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.targets[id]
	if !ok {
		return false
	}

	t.spec.Enabled = enabled

	return true
}

// UpdateConfig live-reconfigures the collector. New values apply on the next
// scheduling tick.
func (c *Collector) UpdateConfig(update ConfigUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if update.PollInterval != nil {
		c.cfg.PollInterval = *update.PollInterval
	}

	if update.Timeout != nil {
		c.cfg.Timeout = *update.Timeout
	}

	if update.Retries != nil {
		c.cfg.Retries = *update.Retries
	}

	if update.MaxConcurrent != nil && *update.MaxConcurrent != c.cfg.MaxConcurrent {
		c.cfg.MaxConcurrent = *update.MaxConcurrent

		if c.running {
			// In-flight polls release into the semaphore they acquired
			// from, so swapping is safe.
			c.sem = make(chan struct{}, c.cfg.MaxConcurrent)
		}
	}

	if update.BatchSize != nil {
		c.cfg.BatchSize = *update.BatchSize
	}

	c.cfg = c.cfg.withDefaults()
}

// Status reports the collector counters.
func (c *Collector) Status() Status {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()

	var last time.Time

	if ns := c.lastPoll.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}

	return Status{
		Polls:     c.polls.Load(),
		Successes: c.successes.Load(),
		Errors:    c.errorsN.Load(),
		LastPoll:  last,
		Running:   running,
	}
}

// Start begins the scheduling loop. Calling Start on a running collector is
// a no-op.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()

	if c.running {
		c.mu.Unlock()

		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.sem = make(chan struct{}, c.cfg.MaxConcurrent)
	c.running = true
	interval := c.cfg.PollInterval.AsDuration()
	c.mu.Unlock()

	c.emit(Event{Kind: EventStarted, Time: time.Now()})
	c.log.Info().Dur("poll_interval", interval).Msg("collector started")

	go c.run(runCtx, interval)
}

// Stop cancels the scheduler, lets in-flight polls drain up to a bounded
// grace period, and tears down sessions. Idempotent.
func (c *Collector) Stop() {
	c.mu.Lock()

	if !c.running {
		c.mu.Unlock()

		return
	}

	c.running = false
	cancel := c.cancel
	c.cancel = nil
	grace := c.cfg.PollInterval.AsDuration() + c.cfg.Timeout.AsDuration()
	c.mu.Unlock()

	cancel()

	drained := make(chan struct{})

	go func() {
		c.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(grace):
		c.log.Warn().Msg("grace period elapsed with polls still outstanding")
	}

	c.mu.Lock()

	for _, t := range c.targets {
		if t.session != nil && !t.inFlight {
			t.session.Close()
			t.session = nil
		}
	}

	c.mu.Unlock()

	c.emit(Event{Kind: EventStopped, Time: time.Now()})
	c.log.Info().Msg("collector stopped")
}

func (c *Collector) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)

			c.mu.Lock()
			next := c.cfg.PollInterval.AsDuration()
			c.mu.Unlock()

			if next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// tick admits due targets up to the concurrency ceiling. Targets that do not
// get a slot stay due and are retried on the next eligible tick; the
// scheduler itself never blocks.
func (c *Collector) tick(ctx context.Context) {
	now := time.Now()

	c.mu.Lock()

	sem := c.sem
	timeout := c.cfg.Timeout.AsDuration()
	retries := c.cfg.Retries
	batch := c.cfg.BatchSize
	globalInterval := c.cfg.PollInterval.AsDuration()

	admitted := 0

	for _, t := range c.targets {
		if admitted >= batch {
			break
		}

		if !t.spec.Enabled || t.inFlight {
			continue
		}

		interval := globalInterval
		if t.spec.PollInterval > 0 {
			interval = t.spec.PollInterval.AsDuration()
		}

		if !t.lastPoll.IsZero() && now.Sub(t.lastPoll) < interval {
			continue
		}

		select {
		case sem <- struct{}{}:
		default:
			// Ceiling reached; remaining due targets wait for the
			// next tick.
			c.mu.Unlock()

			return
		}

		t.inFlight = true
		t.lastPoll = now
		admitted++

		c.wg.Add(1)

		go c.pollTarget(ctx, t, sem, timeout, retries)
	}

	c.mu.Unlock()
}

func (c *Collector) pollTarget(ctx context.Context, t *target, sem chan struct{}, timeout time.Duration, retries int) {
	defer c.wg.Done()
	defer func() { <-sem }()

	c.polls.Add(1)
	c.lastPoll.Store(time.Now().UnixNano())

	payload, err := c.pollOnce(ctx, t, timeout, retries)

	c.mu.Lock()
	t.inFlight = false

	if t.removed && t.session != nil {
		t.session.Close()
		t.session = nil
	}

	removed := t.removed
	c.mu.Unlock()

	// A result arriving after cancellation is discarded.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		c.errorsN.Add(1)

		if !removed {
			c.log.Warn().Err(err).Str("target_id", t.id).Str("host", t.spec.Host).Msg("poll failed")
		}

		c.emit(Event{Kind: EventError, TargetID: t.id, Err: err, Time: time.Now()})

		return
	}

	c.successes.Add(1)

	record := &models.TelemetryRecord{
		ID:        uuid.New().String(),
		Source:    models.SourceSNMP,
		Timestamp: time.Now(),
		Payload:   payload,
		Metadata: map[string]string{
			"target_id": t.id,
			"host":      t.spec.Host,
		},
	}

	c.emit(Event{Kind: EventData, TargetID: t.id, Record: record, Time: record.Timestamp})
}

func (c *Collector) pollOnce(ctx context.Context, t *target, timeout time.Duration, retries int) (json.RawMessage, error) {
	c.mu.Lock()
	sess := t.session
	spec := t.spec
	c.mu.Unlock()

	if sess == nil {
		var err error

		sess, err = c.newSession(spec, timeout, retries)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		t.session = sess
		c.mu.Unlock()
	}

	return c.poll(ctx, sess, spec)
}

// emit never blocks the scheduler; when the consumer falls behind the event
// is dropped and counted in the log.
func (c *Collector) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Str("kind", string(ev.Kind)).Msg("event channel full, dropping event")
	}
}
