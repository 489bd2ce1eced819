// Package rate turns traffic configuration and per-actor traits into an
// instantaneous event intensity, in events per simulated second. The model is
// pure: intensity depends only on (actor, instant, seed), so schedulers can
// replay it.
package rate

import (
	"hash/fnv"
	"math"
	"time"

	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/population"
)

const (
	defaultEventsPerSecond = 10.0
	burstWindow            = 10 * time.Minute
	burstChance            = 0.12
)

func defaultCurve() config.Curve {
	return config.Curve{
		WeekdayMultiplier: 1.0,
		WeekendMultiplier: 0.4,
		PeakHoursLocal:    []int{9, 10, 11, 12, 13, 14, 15, 16, 17},
		PeakMultiplier:    1.5,
	}
}

// Model computes per-actor intensities for one traffic configuration.
type Model struct {
	mode   config.TrafficMode
	base   float64
	curve  config.Curve
	peak   [24]bool
	seed   int64
	weight map[string]float64
}

// New validates the traffic block against the population and builds a model.
// In constant mode the global rate is split across actors proportionally to
// their configured events_per_hour, so the population-wide sum stays at
// events_per_second while relative actor activity is preserved.
func New(cfg config.Traffic, pop *population.Population, seed int64) (*Model, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = config.TrafficConstant
	}
	switch mode {
	case config.TrafficConstant, config.TrafficRealistic:
	default:
		return nil, config.Errorf("traffic.mode", "unknown mode %q", mode)
	}
	if cfg.EventsPerSecond < 0 || math.IsNaN(cfg.EventsPerSecond) || math.IsInf(cfg.EventsPerSecond, 0) {
		return nil, config.Errorf("traffic.events_per_second", "must be >= 0")
	}
	if err := cfg.Curve.Validate(); err != nil {
		return nil, err
	}

	curve := defaultCurve()
	if cfg.Curve != nil {
		curve = *cfg.Curve
	}
	m := &Model{
		mode:  mode,
		base:  cfg.EventsPerSecond,
		curve: curve,
		seed:  seed,
	}
	if m.base == 0 {
		m.base = defaultEventsPerSecond
	}
	for _, h := range curve.PeakHoursLocal {
		m.peak[h] = true
	}

	if mode == config.TrafficConstant {
		total := 0.0
		for _, a := range pop.Actors {
			total += a.EventsPerHour
		}
		if total <= 0 {
			return nil, config.Errorf("population", "no actor has a positive events_per_hour")
		}
		m.weight = make(map[string]float64, pop.Len())
		for _, a := range pop.Actors {
			m.weight[a.ID] = a.EventsPerHour / total
		}
	}
	return m, nil
}

// Intensity returns a's instantaneous rate in events per simulated second at
// the UTC instant t. Zero means the actor is outside its active window (or
// weighted to nothing) and must not emit.
func (m *Model) Intensity(a *population.Actor, t time.Time) float64 {
	if !a.Active(t) {
		return 0
	}
	if m.mode == config.TrafficConstant {
		return m.base * m.weight[a.ID]
	}

	r := a.EventsPerHour / 3600.0
	local := a.LocalTime(t)
	if isWeekend(local) {
		r *= m.curve.WeekendMultiplier
	} else {
		r *= m.curve.WeekdayMultiplier
	}
	if m.peak[local.Hour()] {
		r *= m.curve.PeakMultiplier
	}
	if a.Kind == population.KindService {
		r *= m.patternMultiplier(a, local)
	}
	return r
}

// TotalIntensity sums Intensity over the whole population. Uniform-mode
// pacing samples this once per tick to retune its limiter.
func (m *Model) TotalIntensity(pop *population.Population, t time.Time) float64 {
	total := 0.0
	for _, a := range pop.Actors {
		total += m.Intensity(a, t)
	}
	return total
}

// NextChange returns the next instant at which a's intensity may move between
// zero and non-zero, so schedulers can skip sleeping actors to their window
// boundary instead of polling.
func (m *Model) NextChange(a *population.Actor, t time.Time) time.Time {
	if !a.Active(t) {
		return a.NextActiveStart(t)
	}
	// Multipliers shift on local-hour boundaries.
	local := a.LocalTime(t)
	next := local.Truncate(time.Hour).Add(time.Hour)
	return next.Add(-time.Duration(a.TimezoneOffset) * time.Hour)
}

func (m *Model) patternMultiplier(a *population.Actor, local time.Time) float64 {
	switch a.ServicePattern {
	case population.PatternDiurnal:
		switch h := local.Hour(); {
		case h >= 7 && h <= 9:
			return 0.7
		case h >= 10 && h <= 17:
			return 1.1
		case h >= 18 && h <= 21:
			return 0.8
		default:
			return 0.35
		}
	case population.PatternBursty:
		window := local.Unix() / int64(burstWindow/time.Second)
		u := windowDraw(m.seed, a.ID, window, 0)
		if u < burstChance {
			return 2 + 3*windowDraw(m.seed, a.ID, window, 1)
		}
		return 0.4 + 0.6*windowDraw(m.seed, a.ID, window, 2)
	default:
		return 1
	}
}

// windowDraw is a deterministic uniform [0,1) draw keyed by the model seed,
// actor and burst window, so replays see the same burst schedule.
func windowDraw(seed int64, actorID string, window int64, lane byte) float64 {
	h := fnv.New64a()
	var buf [17]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(seed) >> (8 * i))
		buf[8+i] = byte(uint64(window) >> (8 * i))
	}
	buf[16] = lane
	h.Write(buf[:])
	h.Write([]byte(actorID))
	return float64(h.Sum64()>>11) / float64(1<<53)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
