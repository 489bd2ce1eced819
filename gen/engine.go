package gen

import (
	"container/heap"
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/population"
	"github.com/seclog-dev/seclog/gen/rate"
)

// EventWriter receives finished events. Write may block; that blocking is
// the engine's only throttle besides clock pacing. Err reports the writer's
// first terminal failure; the engine polls it after every write and stops
// generating as soon as it trips.
type EventWriter interface {
	Write(ev *Event)
	Err() error
}

// Stream pairs a source with its destination pipeline.
type Stream struct {
	Source Source
	Sink   EventWriter
}

// sessionGate is implemented by sources whose actors idle between sessions.
// The scheduler consults it before emitting and parks the actor until the
// returned instant when the gate is closed.
type sessionGate interface {
	Available(rng *rand.Rand, a *population.Actor, now time.Time) (bool, time.Time)
}

// EngineOptions configures one generation run.
type EngineOptions struct {
	Seed    Seed
	Clock   *Clock
	Model   *rate.Model
	Streams []Stream
	Limits  config.Limits
	// Workers requests uniform-mode parallelism. Actor-driven scheduling is
	// single-threaded and clamps this to 1.
	Workers int
	// Uniform switches from the per-actor event heap to N workers drawing
	// weighted actor samples against a global rate limiter.
	Uniform bool
}

// Engine merges every actor's arrival process into one simulated-time event
// stream. Actor-driven mode is fully deterministic: a single goroutine pops a
// min-heap of (nextFire, actorID) entries, so a fixed seed and configuration
// replay byte-identical output. Uniform mode trades that cross-actor ordering
// guarantee for parallelism.
type Engine struct {
	seed    Seed
	clock   *Clock
	model   *rate.Model
	streams []Stream
	limits  config.Limits
	workers int
	uniform bool

	emitted atomic.Int64
}

// NewEngine validates the options.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if len(opts.Streams) == 0 {
		return nil, config.Errorf("sources", "no source enabled")
	}
	for i, st := range opts.Streams {
		if st.Source == nil || st.Sink == nil {
			return nil, config.Errorf("sources", "stream %d is missing a source or sink", i)
		}
	}
	if opts.Clock == nil {
		return nil, config.Errorf("traffic", "no clock")
	}
	if opts.Model == nil {
		return nil, config.Errorf("traffic", "no rate model")
	}
	return &Engine{
		seed:    opts.Seed,
		clock:   opts.Clock,
		model:   opts.Model,
		streams: opts.Streams,
		limits:  opts.Limits,
		workers: opts.Workers,
		uniform: opts.Uniform,
	}, nil
}

// Run generates until a limit is reached, the context is canceled, or every
// actor becomes unschedulable. It returns nil on a limit-bounded completion.
func (e *Engine) Run(ctx context.Context) error {
	if e.uniform {
		return e.runUniform(ctx)
	}
	if e.workers > 1 {
		logrus.Warnf("actor-driven scheduling is single-threaded; ignoring gen_workers=%d", e.workers)
	}
	return e.runActorDriven(ctx)
}

// Emitted returns the number of events handed to sinks so far. Safe to call
// concurrently; the CLI's metrics ticker polls it.
func (e *Engine) Emitted() int64 {
	return e.emitted.Load()
}

func (e *Engine) runActorDriven(ctx context.Context) error {
	start := e.clock.Start
	h := &fireHeap{}
	for si, st := range e.streams {
		for _, a := range st.Source.Actors().Actors {
			as := &actorState{
				stream: si,
				actor:  a,
				rng:    rand.New(rand.NewSource(e.seed.Derive(st.Source.ID() + "/" + a.ID))),
			}
			if !e.prime(as, start) {
				logrus.Warnf("actor %s never reaches a positive rate in stream %s, skipping",
					a.ID, st.Source.ID())
				continue
			}
			heap.Push(h, as)
		}
	}
	if h.Len() == 0 {
		logrus.Warn("no schedulable actors, nothing to generate")
		return nil
	}

	var deadline time.Time
	if e.limits.MaxSeconds > 0 {
		deadline = start.Add(time.Duration(e.limits.MaxSeconds) * time.Second)
	}

	for h.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if e.limits.MaxEvents > 0 && e.emitted.Load() >= e.limits.MaxEvents {
			return nil
		}

		as := heap.Pop(h).(*actorState)
		now := as.nextFire
		if !deadline.IsZero() && now.After(deadline) {
			return nil
		}
		if err := e.clock.Pace(ctx, now); err != nil {
			return err
		}

		lambda := e.model.Intensity(as.actor, now)
		if lambda <= 0 {
			// Outside the active window: jump to the next boundary, no emit.
			next := e.model.NextChange(as.actor, now)
			if !next.After(now) {
				logrus.Warnf("actor %s stuck at zero rate, dropping from schedule", as.actor.ID)
				continue
			}
			as.nextFire = next
			heap.Push(h, as)
			continue
		}

		st := e.streams[as.stream]
		if g, ok := st.Source.(sessionGate); ok {
			if ready, next := g.Available(as.rng, as.actor, now); !ready {
				if !next.After(now) {
					next = now.Add(time.Minute)
				}
				// Park through the cooldown, then a fresh arrival gap.
				as.nextFire = next.Add(expAfter(as.rng, lambda))
				heap.Push(h, as)
				continue
			}
		}
		ev, err := st.Source.Emit(as.rng, as.actor, now)
		if err != nil {
			return fmt.Errorf("source %s: %w", st.Source.ID(), err)
		}
		st.Sink.Write(ev)
		e.emitted.Add(1)
		if err := st.Sink.Err(); err != nil {
			return fmt.Errorf("sink %s: %w", st.Source.ID(), err)
		}

		as.nextFire = now.Add(expAfter(as.rng, lambda))
		heap.Push(h, as)
	}
	logrus.Warn("scheduler drained before limits were reached")
	return nil
}

// prime finds the actor's first positive-rate instant at or after start and
// seeds nextFire there. It walks window boundaries a bounded number of hops;
// an actor with no reachable positive rate is reported unschedulable.
func (e *Engine) prime(as *actorState, start time.Time) bool {
	t := start
	for i := 0; i < 64; i++ {
		if lambda := e.model.Intensity(as.actor, t); lambda > 0 {
			as.nextFire = t.Add(expAfter(as.rng, lambda))
			return true
		}
		next := e.model.NextChange(as.actor, t)
		if !next.After(t) {
			return false
		}
		t = next
	}
	return false
}

// expAfter draws an exponential inter-arrival gap for rate lambda, floored at
// one millisecond so pathological rates cannot collapse the clock.
func expAfter(rng *rand.Rand, lambda float64) time.Duration {
	d := time.Duration(rng.ExpFloat64() / lambda * float64(time.Second))
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}
