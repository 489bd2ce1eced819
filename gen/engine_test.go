package gen

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/population"
	"github.com/seclog-dev/seclog/gen/rate"
)

type stubSource struct {
	id  string
	pop *population.Population
}

func (s *stubSource) ID() string                     { return s.id }
func (s *stubSource) Actors() *population.Population { return s.pop }

func (s *stubSource) Emit(rng *rand.Rand, a *population.Actor, t time.Time) (*Event, error) {
	_ = rng.Int63() // consume the stream like a real source would
	return &Event{
		Envelope: Envelope{
			SchemaVersion: "1.0",
			Timestamp:     t.UTC().Format(time.RFC3339Nano),
			Source:        s.id,
			EventType:     "StubCall",
			Actor:         Actor{ID: a.ID, Kind: string(a.Kind)},
			Outcome:       OutcomeSuccess,
		},
		AccountID: a.AccountID,
		Region:    "us-east-1",
	}, nil
}

type memSink struct {
	mu     sync.Mutex
	events []*Event
	err    error // when set, Err trips after the first write
}

func (m *memSink) Write(ev *Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

func (m *memSink) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) > 0 {
		return m.err
	}
	return nil
}

func (m *memSink) all() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Event(nil), m.events...)
}

func testActor(id string, eph float64) *population.Actor {
	return &population.Actor{
		ID:            id,
		Kind:          population.KindHuman,
		Role:          population.RoleDeveloper,
		EventsPerHour: eph,
		AccountID:     "111111111111",
		UserAgents:    []string{"Mozilla/5.0"},
		SourceIPs:     []string{"198.51.100.9"},
		ActiveHours:   24,
		WeekendActive: true,
	}
}

// Monday, well inside a working week.
var engineStart = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, actors []*population.Actor, limits config.Limits, uniform bool, workers int) (*Engine, *memSink) {
	t.Helper()
	pop := population.NewPopulation(actors)
	model, err := rate.New(config.Traffic{Mode: config.TrafficConstant, EventsPerSecond: 50}, pop, 1)
	require.NoError(t, err)
	sink := &memSink{}
	eng, err := NewEngine(EngineOptions{
		Seed:    Seed(1),
		Clock:   NewClock(engineStart, 0),
		Model:   model,
		Streams: []Stream{{Source: &stubSource{id: "stub", pop: pop}, Sink: sink}},
		Limits:  limits,
		Workers: workers,
		Uniform: uniform,
	})
	require.NoError(t, err)
	return eng, sink
}

func TestEngine_MaxEventsDeterministicReplay(t *testing.T) {
	run := func() []*Event {
		actors := []*population.Actor{
			testActor("user-0001", 20), testActor("user-0002", 20),
			testActor("user-0003", 5), testActor("user-0004", 40),
		}
		eng, sink := newTestEngine(t, actors, config.Limits{MaxEvents: 100}, false, 1)
		require.NoError(t, eng.Run(context.Background()))
		return sink.all()
	}

	first := run()
	second := run()
	require.Len(t, first, 100)
	require.Len(t, second, 100)
	for i := range first {
		assert.Equal(t, first[i].Envelope.Timestamp, second[i].Envelope.Timestamp)
		assert.Equal(t, first[i].Envelope.Actor.ID, second[i].Envelope.Actor.ID)
	}

	// the heap emits in nondecreasing simulated time
	var prev time.Time
	for _, ev := range first {
		ts, err := time.Parse(time.RFC3339Nano, ev.Envelope.Timestamp)
		require.NoError(t, err)
		assert.False(t, ts.Before(prev))
		prev = ts
	}
}

func TestEngine_MaxSecondsBoundsTimestamps(t *testing.T) {
	actors := []*population.Actor{testActor("user-0001", 30), testActor("user-0002", 30)}
	eng, sink := newTestEngine(t, actors, config.Limits{MaxSeconds: 60}, false, 1)
	require.NoError(t, eng.Run(context.Background()))

	events := sink.all()
	require.NotEmpty(t, events)
	limit := engineStart.Add(60 * time.Second)
	for _, ev := range events {
		ts, err := time.Parse(time.RFC3339Nano, ev.Envelope.Timestamp)
		require.NoError(t, err)
		assert.False(t, ts.Before(engineStart))
		assert.False(t, ts.After(limit))
	}
}

func TestEngine_ActiveWindowGatesTimestamps(t *testing.T) {
	a := testActor("user-0001", 60)
	a.ActiveStartHour = 9
	a.ActiveHours = 8
	a.WeekendActive = false
	pop := population.NewPopulation([]*population.Actor{a})

	model, err := rate.New(config.Traffic{Mode: config.TrafficRealistic}, pop, 1)
	require.NoError(t, err)
	sink := &memSink{}
	eng, err := NewEngine(EngineOptions{
		Seed:    Seed(7),
		Clock:   NewClock(engineStart, 0),
		Model:   model,
		Streams: []Stream{{Source: &stubSource{id: "stub", pop: pop}, Sink: sink}},
		Limits:  config.Limits{MaxEvents: 300},
	})
	require.NoError(t, err)
	require.NoError(t, eng.Run(context.Background()))

	events := sink.all()
	require.NotEmpty(t, events)
	for _, ev := range events {
		ts, err := time.Parse(time.RFC3339Nano, ev.Envelope.Timestamp)
		require.NoError(t, err)
		assert.True(t, a.Active(ts), "event at %s outside active window", ev.Envelope.Timestamp)
	}
}

func TestEngine_SkipsPermanentlyIdleActors(t *testing.T) {
	idle := testActor("user-idle", 0)
	busy := testActor("user-busy", 30)
	pop := population.NewPopulation([]*population.Actor{idle, busy})

	model, err := rate.New(config.Traffic{Mode: config.TrafficRealistic}, pop, 1)
	require.NoError(t, err)
	sink := &memSink{}
	eng, err := NewEngine(EngineOptions{
		Seed:    Seed(1),
		Clock:   NewClock(engineStart, 0),
		Model:   model,
		Streams: []Stream{{Source: &stubSource{id: "stub", pop: pop}, Sink: sink}},
		Limits:  config.Limits{MaxEvents: 50},
	})
	require.NoError(t, err)
	require.NoError(t, eng.Run(context.Background()))

	for _, ev := range sink.all() {
		assert.Equal(t, "user-busy", ev.Envelope.Actor.ID)
	}
	assert.Equal(t, int64(50), eng.Emitted())
}

func TestEngine_UniformModeCompletes(t *testing.T) {
	actors := []*population.Actor{
		testActor("user-0001", 20), testActor("user-0002", 20),
		testActor("user-0003", 20), testActor("user-0004", 20),
	}
	eng, sink := newTestEngine(t, actors, config.Limits{MaxEvents: 200}, true, 4)
	require.NoError(t, eng.Run(context.Background()))
	assert.Len(t, sink.all(), 200)

	seen := map[string]bool{}
	for _, ev := range sink.all() {
		seen[ev.Envelope.Actor.ID] = true
	}
	assert.Greater(t, len(seen), 1, "uniform sampling must reach multiple actors")
}

// gatedSource closes its session gate for a fixed window so tests can watch
// the scheduler park actors instead of emitting through it.
type gatedSource struct {
	stubSource
	closedFrom  time.Time
	closedUntil time.Time
}

func (g *gatedSource) Available(rng *rand.Rand, a *population.Actor, now time.Time) (bool, time.Time) {
	if !now.Before(g.closedFrom) && now.Before(g.closedUntil) {
		return false, g.closedUntil
	}
	return true, now
}

// TestEngine_SessionGateParksActors verifies no events land inside a closed
// gate window and generation resumes after it reopens.
func TestEngine_SessionGateParksActors(t *testing.T) {
	actors := []*population.Actor{testActor("user-0001", 40), testActor("user-0002", 40)}
	pop := population.NewPopulation(actors)
	model, err := rate.New(config.Traffic{Mode: config.TrafficConstant, EventsPerSecond: 50}, pop, 1)
	require.NoError(t, err)

	src := &gatedSource{
		stubSource:  stubSource{id: "stub", pop: pop},
		closedFrom:  engineStart.Add(2 * time.Second),
		closedUntil: engineStart.Add(5 * time.Second),
	}
	sink := &memSink{}
	eng, err := NewEngine(EngineOptions{
		Seed:    Seed(1),
		Clock:   NewClock(engineStart, 0),
		Model:   model,
		Streams: []Stream{{Source: src, Sink: sink}},
		Limits:  config.Limits{MaxEvents: 400},
	})
	require.NoError(t, err)
	require.NoError(t, eng.Run(context.Background()))

	var before, after int
	for _, ev := range sink.all() {
		ts, err := time.Parse(time.RFC3339Nano, ev.Envelope.Timestamp)
		require.NoError(t, err)
		switch {
		case ts.Before(src.closedFrom):
			before++
		case ts.Before(src.closedUntil):
			t.Fatalf("event at %s inside the closed gate window", ev.Envelope.Timestamp)
		default:
			after++
		}
	}
	assert.Positive(t, before)
	assert.Positive(t, after)
}

// TestEngine_StopsOnSinkFailure verifies a writer failure ends the run at
// the next emission instead of generating until the limit and only surfacing
// the error at close.
func TestEngine_StopsOnSinkFailure(t *testing.T) {
	actors := []*population.Actor{testActor("user-0001", 20), testActor("user-0002", 20)}
	eng, sink := newTestEngine(t, actors, config.Limits{MaxEvents: 5000}, false, 1)
	sink.err = errors.New("disk full")

	err := eng.Run(context.Background())
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, int64(1), eng.Emitted(), "run kept generating after the sink died")
}

func TestEngine_UniformStopsOnSinkFailure(t *testing.T) {
	actors := []*population.Actor{testActor("user-0001", 20), testActor("user-0002", 20)}
	eng, sink := newTestEngine(t, actors, config.Limits{MaxEvents: 5000}, true, 4)
	sink.err = errors.New("disk full")

	err := eng.Run(context.Background())
	require.ErrorContains(t, err, "disk full")
	assert.Less(t, eng.Emitted(), int64(100), "workers kept generating after the sink died")
}

func TestEngine_ContextCancel(t *testing.T) {
	actors := []*population.Actor{testActor("user-0001", 20)}
	eng, _ := newTestEngine(t, actors, config.Limits{}, false, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, eng.Run(ctx), context.Canceled)
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(EngineOptions{})
	assert.Error(t, err)

	pop := population.NewPopulation([]*population.Actor{testActor("user-0001", 10)})
	_, err = NewEngine(EngineOptions{Streams: []Stream{{Source: &stubSource{id: "stub", pop: pop}}}})
	assert.Error(t, err)
}
