package gen

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	xrate "golang.org/x/time/rate"

	"github.com/seclog-dev/seclog/gen/population"
)

// uniformSlot is one schedulable (stream, actor) pair in uniform mode. Its
// RNG is guarded by the owning stream's mutex.
type uniformSlot struct {
	stream int
	actor  *population.Actor
	rng    *rand.Rand
}

// uniformSchedule is the shared cursor all workers advance under one mutex:
// the simulated instant, the cached total intensity, and the global wall
// limiter. Workers reserve (timestamp, slot, event budget) inside the lock
// and do the expensive emit outside it.
type uniformSchedule struct {
	mu        sync.Mutex
	now       time.Time
	total     float64
	totalHour time.Time
	rng       *rand.Rand
	scheduled int64
	limiter   *xrate.Limiter
}

// runUniform trades the heap's strict cross-actor ordering for parallelism:
// N workers each draw a weighted actor sample at the shared simulated cursor.
// Per-stream emit order stays monotonic in simulated time because timestamps
// are reserved under the schedule lock, but cross-actor ordering between
// workers is best effort.
func (e *Engine) runUniform(ctx context.Context) error {
	workers := e.workers
	if workers < 1 {
		workers = 1
	}

	slots := make([]*uniformSlot, 0)
	for si, st := range e.streams {
		for _, a := range st.Source.Actors().Actors {
			slots = append(slots, &uniformSlot{
				stream: si,
				actor:  a,
				rng:    rand.New(rand.NewSource(e.seed.Derive(st.Source.ID() + "/" + a.ID))),
			})
		}
	}
	if len(slots) == 0 {
		logrus.Warn("no schedulable actors, nothing to generate")
		return nil
	}

	sched := &uniformSchedule{
		now: e.clock.Start,
		rng: rand.New(rand.NewSource(e.seed.Derive("uniform-schedule"))),
	}
	if e.clock.Scale > 0 {
		sched.limiter = xrate.NewLimiter(xrate.Inf, 1)
	}
	sched.retune(e, slots)

	var deadline time.Time
	if e.limits.MaxSeconds > 0 {
		deadline = e.clock.Start.Add(time.Duration(e.limits.MaxSeconds) * time.Second)
	}

	streamMu := make([]sync.Mutex, len(e.streams))
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				slot, at, ok := sched.next(e, slots, deadline)
				if !ok {
					return nil
				}
				if sched.limiter != nil {
					if err := sched.limiter.Wait(ctx); err != nil {
						return err
					}
				} else if err := ctx.Err(); err != nil {
					return err
				}

				st := e.streams[slot.stream]
				streamMu[slot.stream].Lock()
				if gate, ok := st.Source.(sessionGate); ok {
					if ready, _ := gate.Available(slot.rng, slot.actor, at); !ready {
						streamMu[slot.stream].Unlock()
						sched.unschedule()
						continue
					}
				}
				ev, err := st.Source.Emit(slot.rng, slot.actor, at)
				streamMu[slot.stream].Unlock()
				if err != nil {
					return fmt.Errorf("source %s: %w", st.Source.ID(), err)
				}
				st.Sink.Write(ev)
				e.emitted.Add(1)
				if err := st.Sink.Err(); err != nil {
					return fmt.Errorf("sink %s: %w", st.Source.ID(), err)
				}
			}
		})
	}
	return g.Wait()
}

// next reserves the following event: it advances the simulated cursor by an
// exponential gap at the total rate and picks an actor weighted by its
// instantaneous intensity. ok is false once a limit is reached.
func (s *uniformSchedule) next(e *Engine, slots []*uniformSlot, deadline time.Time) (*uniformSlot, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.limits.MaxEvents > 0 && s.scheduled >= e.limits.MaxEvents {
		return nil, time.Time{}, false
	}
	for {
		if !s.totalHour.Equal(s.now.Truncate(time.Hour)) {
			s.retune(e, slots)
		}
		if s.total > 0 {
			break
		}
		// Everyone is idle: jump the cursor to the earliest window boundary.
		next := time.Time{}
		for _, sl := range slots {
			c := e.model.NextChange(sl.actor, s.now)
			if c.After(s.now) && (next.IsZero() || c.Before(next)) {
				next = c
			}
		}
		if next.IsZero() {
			return nil, time.Time{}, false
		}
		s.now = next
	}

	s.now = s.now.Add(expAfter(s.rng, s.total))
	if !deadline.IsZero() && s.now.After(deadline) {
		return nil, time.Time{}, false
	}

	target := s.rng.Float64() * s.total
	acc := 0.0
	pick := slots[len(slots)-1]
	for _, sl := range slots {
		acc += e.model.Intensity(sl.actor, s.now)
		if target < acc {
			pick = sl
			break
		}
	}
	s.scheduled++
	return pick, s.now, true
}

// unschedule hands back a reservation that produced no event, so MaxEvents
// counts emitted events rather than draws dropped at a closed session gate.
func (s *uniformSchedule) unschedule() {
	s.mu.Lock()
	s.scheduled--
	s.mu.Unlock()
}

// retune refreshes the cached total intensity and the wall limiter. Rates
// only move on local-hour boundaries, so hourly refresh is exact.
func (s *uniformSchedule) retune(e *Engine, slots []*uniformSlot) {
	s.totalHour = s.now.Truncate(time.Hour)
	s.total = 0
	for _, sl := range slots {
		s.total += e.model.Intensity(sl.actor, s.now)
	}
	if s.limiter != nil {
		if s.total > 0 {
			wall := s.total * e.clock.Scale
			s.limiter.SetLimit(xrate.Limit(wall))
			s.limiter.SetBurst(int(wall) + 1)
		} else {
			s.limiter.SetLimit(xrate.Inf)
		}
	}
}
