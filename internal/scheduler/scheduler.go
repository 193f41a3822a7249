// Package scheduler runs the periodic background loops that don't
// belong on the per-tick hot path: candle/tick flushing and exchange
// status probing. The ticker-driven-select shape is the teacher's
// agg.Aggregator.Run idiom, generalized to drive two independent loops
// instead of one.
package scheduler

import (
	"context"
	"log"
	"time"

	"marketagg/internal/adapter"
	"marketagg/internal/model"
)

// Flusher is implemented by *candle.Aggregator. Flush logs its own
// failures internally (consistent with the teacher's per-component
// logging style) rather than surfacing an error here.
type Flusher interface {
	Flush(ctx context.Context)
}

// Scheduler drives the periodic flush and status-probe loops for the
// service's lifetime.
type Scheduler struct {
	flusher        Flusher
	flushInterval  time.Duration
	adapters       []adapter.Adapter
	statusRepo     model.ExchangeStatusRepository
	probeInterval  time.Duration
}

// New builds a Scheduler. flushIntervalSeconds and probeIntervalSeconds
// default to 10s and 30s respectively when non-positive.
func New(flusher Flusher, flushIntervalSeconds int, adapters []adapter.Adapter, statusRepo model.ExchangeStatusRepository, probeIntervalSeconds int) *Scheduler {
	if flushIntervalSeconds <= 0 {
		flushIntervalSeconds = 10
	}
	if probeIntervalSeconds <= 0 {
		probeIntervalSeconds = 30
	}
	return &Scheduler{
		flusher:       flusher,
		flushInterval: time.Duration(flushIntervalSeconds) * time.Second,
		adapters:      adapters,
		statusRepo:    statusRepo,
		probeInterval: time.Duration(probeIntervalSeconds) * time.Second,
	}
}

// Run drives both loops concurrently until ctx is cancelled, flushing
// once more on the way out.
func (s *Scheduler) Run(ctx context.Context) {
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		s.runFlushLoop(ctx)
	}()
	s.runStatusProbeLoop(ctx)
	<-flushDone
}

func (s *Scheduler) runFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flusher.Flush(context.Background())
			return
		case <-ticker.C:
			s.flusher.Flush(ctx)
		}
	}
}

func (s *Scheduler) runStatusProbeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	s.probeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probeAll(ctx)
		}
	}
}

func (s *Scheduler) probeAll(ctx context.Context) {
	for _, a := range s.adapters {
		status := a.GetStatus()
		if err := s.statusRepo.Upsert(ctx, status); err != nil {
			log.Printf("[scheduler] status upsert failed for %s: %v", status.Key(), err)
		}
	}
}
