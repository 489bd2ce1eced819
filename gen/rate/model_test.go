package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/population"
)

func alwaysOn(id string, eph float64) *population.Actor {
	return &population.Actor{
		ID:            id,
		Kind:          population.KindHuman,
		EventsPerHour: eph,
		ActiveHours:   24,
		WeekendActive: true,
	}
}

// Mon 2026-01-05 12:00 UTC, a weekday peak hour under the default curve.
var weekdayNoon = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

// TestModel_ConstantSplitsGlobalRate verifies constant mode preserves the
// global events_per_second across the population and splits it by actor
// weight.
func TestModel_ConstantSplitsGlobalRate(t *testing.T) {
	pop := population.NewPopulation([]*population.Actor{
		alwaysOn("a", 30),
		alwaysOn("b", 10),
	})
	m, err := New(config.Traffic{Mode: config.TrafficConstant, EventsPerSecond: 8}, pop, 1)
	require.NoError(t, err)

	ia := m.Intensity(pop.Actors[0], weekdayNoon)
	ib := m.Intensity(pop.Actors[1], weekdayNoon)
	assert.InDelta(t, 6.0, ia, 1e-9)
	assert.InDelta(t, 2.0, ib, 1e-9)
	assert.InDelta(t, 8.0, m.TotalIntensity(pop, weekdayNoon), 1e-9)
}

// TestModel_ActiveWindowGatesToZero verifies inactive actors get intensity 0
// in both modes and NextChange lands on the window opening.
func TestModel_ActiveWindowGatesToZero(t *testing.T) {
	office := &population.Actor{
		ID:              "office",
		Kind:            population.KindHuman,
		EventsPerHour:   12,
		ActiveStartHour: 9,
		ActiveHours:     8,
	}
	pop := population.NewPopulation([]*population.Actor{office})

	for _, mode := range []config.TrafficMode{config.TrafficConstant, config.TrafficRealistic} {
		m, err := New(config.Traffic{Mode: mode, EventsPerSecond: 5}, pop, 1)
		require.NoError(t, err)

		night := time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC)
		assert.Zero(t, m.Intensity(office, night))
		assert.Positive(t, m.Intensity(office, weekdayNoon))

		open := m.NextChange(office, night)
		assert.Equal(t, 9, open.UTC().Hour())
		assert.Positive(t, m.Intensity(office, open))
	}
}

// TestModel_RealisticCurve verifies weekday/weekend and peak multipliers.
func TestModel_RealisticCurve(t *testing.T) {
	a := alwaysOn("a", 3600) // base 1 event/sec
	pop := population.NewPopulation([]*population.Actor{a})
	m, err := New(config.Traffic{
		Mode: config.TrafficRealistic,
		Curve: &config.Curve{
			WeekdayMultiplier: 1.0,
			WeekendMultiplier: 0.5,
			PeakHoursLocal:    []int{12},
			PeakMultiplier:    2.0,
		},
	}, pop, 1)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, m.Intensity(a, weekdayNoon), 1e-9)

	offPeak := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.0, m.Intensity(a, offPeak), 1e-9)

	saturday := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	assert.InDelta(t, 0.5, m.Intensity(a, saturday), 1e-9)
}

// TestModel_TimezoneShiftsCurve verifies peak hours apply in the actor's
// local time, not UTC.
func TestModel_TimezoneShiftsCurve(t *testing.T) {
	west := alwaysOn("west", 3600)
	west.TimezoneOffset = -8
	pop := population.NewPopulation([]*population.Actor{west})
	m, err := New(config.Traffic{
		Mode: config.TrafficRealistic,
		Curve: &config.Curve{
			WeekdayMultiplier: 1.0,
			WeekendMultiplier: 1.0,
			PeakHoursLocal:    []int{12},
			PeakMultiplier:    3.0,
		},
	}, pop, 1)
	require.NoError(t, err)

	utc20 := time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC) // 12:00 local
	assert.InDelta(t, 3.0, m.Intensity(west, utc20), 1e-9)
	assert.InDelta(t, 1.0, m.Intensity(west, weekdayNoon), 1e-9)
}

// TestModel_ServicePatterns verifies the diurnal bucket curve and the bursty
// multiplier's bounds and determinism.
func TestModel_ServicePatterns(t *testing.T) {
	svc := func(p population.Pattern) *population.Actor {
		return &population.Actor{
			ID:             "svc",
			Kind:           population.KindService,
			ServicePattern: p,
			EventsPerHour:  3600,
			ActiveHours:    24,
			WeekendActive:  true,
		}
	}
	flatCurve := &config.Curve{WeekdayMultiplier: 1, WeekendMultiplier: 1, PeakMultiplier: 1}
	cfg := config.Traffic{Mode: config.TrafficRealistic, Curve: flatCurve}

	t.Run("diurnal", func(t *testing.T) {
		a := svc(population.PatternDiurnal)
		m, err := New(cfg, population.NewPopulation([]*population.Actor{a}), 1)
		require.NoError(t, err)

		at := func(h int) float64 {
			return m.Intensity(a, time.Date(2026, 1, 5, h, 0, 0, 0, time.UTC))
		}
		assert.InDelta(t, 0.35, at(3), 1e-9)
		assert.InDelta(t, 0.7, at(8), 1e-9)
		assert.InDelta(t, 1.1, at(13), 1e-9)
		assert.InDelta(t, 0.8, at(19), 1e-9)
	})

	t.Run("bursty", func(t *testing.T) {
		a := svc(population.PatternBursty)
		m, err := New(cfg, population.NewPopulation([]*population.Actor{a}), 1)
		require.NoError(t, err)

		sawBurst, sawQuiet := false, false
		for i := 0; i < 200; i++ {
			at := weekdayNoon.Add(time.Duration(i) * burstWindow)
			v := m.Intensity(a, at)
			assert.GreaterOrEqual(t, v, 0.4-1e-9)
			assert.LessOrEqual(t, v, 5.0+1e-9)
			assert.Equal(t, v, m.Intensity(a, at), "replay at window %d", i)
			if v > 1.5 {
				sawBurst = true
			}
			if v < 1.0 {
				sawQuiet = true
			}
		}
		assert.True(t, sawBurst, "no burst window in 200 samples")
		assert.True(t, sawQuiet, "no quiet window in 200 samples")
	})
}

// TestNew_Validation rejects bad modes, rates and curves.
func TestNew_Validation(t *testing.T) {
	pop := population.NewPopulation([]*population.Actor{alwaysOn("a", 10)})

	_, err := New(config.Traffic{Mode: "chaotic"}, pop, 1)
	assert.Error(t, err)

	_, err = New(config.Traffic{EventsPerSecond: -1}, pop, 1)
	assert.Error(t, err)

	_, err = New(config.Traffic{Curve: &config.Curve{PeakHoursLocal: []int{24}}}, pop, 1)
	assert.Error(t, err)

	_, err = New(config.Traffic{Curve: &config.Curve{WeekdayMultiplier: -1}}, pop, 1)
	assert.Error(t, err)

	zero := population.NewPopulation([]*population.Actor{alwaysOn("a", 0)})
	_, err = New(config.Traffic{Mode: config.TrafficConstant}, zero, 1)
	assert.Error(t, err)
}
