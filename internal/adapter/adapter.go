// Package adapter implements exchange feed adapters: a streaming
// websocket variant and a REST-poll variant, sharing a common
// Idle/Running/Stopping lifecycle and status-reporting shape.
package adapter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"marketagg/internal/model"
)

// Sink receives raw ticks from an adapter. *pipeline.Pipeline implements
// this.
type Sink interface {
	Write(ctx context.Context, tick model.RawTick) error
}

// Adapter is one exchange feed connection. Start blocks until ctx is
// cancelled or the adapter is explicitly Stopped, reconnecting on
// transient failures per variant.
type Adapter interface {
	Start(ctx context.Context, sink Sink) error
	Stop()
	GetStatus() model.ExchangeStatus
}

// lifecycleState mirrors the teacher's connection-state tracking in
// wssim.Ingest, generalized into an explicit enum instead of a bare
// "connected" bool, since adapters now also report Stopping.
type lifecycleState int32

const (
	stateIdle lifecycleState = iota
	stateRunning
	stateStopping
)

// status is the mutex-guarded connectivity snapshot each adapter
// maintains for GetStatus, independent of the periodic probe loop that
// later persists it via model.ExchangeStatusRepository.
type status struct {
	mu         sync.Mutex
	online     bool
	lastTickAt time.Time
	lastError  string
}

func (s *status) markOnline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = true
	s.lastError = ""
}

func (s *status) markOffline(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = false
	if err != nil {
		s.lastError = err.Error()
	}
}

func (s *status) recordTick(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTickAt = at
}

func (s *status) snapshot() (online bool, lastTickAt time.Time, lastError string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online, s.lastTickAt, s.lastError
}

// base holds the fields and lifecycle plumbing common to every adapter
// variant: name, state, and status tracking.
type base struct {
	exchange   string
	sourceType model.SourceType
	state      int32
	status     status
}

func newBase(exchange string, sourceType model.SourceType) base {
	return base{exchange: exchange, sourceType: sourceType, state: int32(stateIdle)}
}

// start marks the adapter running, rejecting a second concurrent start.
func (b *base) start() bool {
	return atomic.CompareAndSwapInt32(&b.state, int32(stateIdle), int32(stateRunning))
}

func (b *base) stop() {
	atomic.StoreInt32(&b.state, int32(stateStopping))
}

func (b *base) isStopping() bool {
	return atomic.LoadInt32(&b.state) == int32(stateStopping)
}

func (b *base) reset() {
	atomic.StoreInt32(&b.state, int32(stateIdle))
}

// GetStatus reports the exchange tag, source type, and the latest
// connectivity snapshot, per §4.7.
func (b *base) GetStatus() model.ExchangeStatus {
	online, lastTickAt, lastErr := b.status.snapshot()
	return model.ExchangeStatus{
		Exchange:   b.exchange,
		SourceType: b.sourceType,
		IsOnline:   online,
		LastTickAt: lastTickAt,
		LastError:  lastErr,
		UpdatedAt:  time.Now().UTC(),
	}
}
