// Package catalog implements weighted event selection and per-actor event
// sequencing shared by all log sources. A source contributes its curated
// weight table, transition candidates and payload templates; this package
// owns the draw mechanics, session identity and error injection.
package catalog

import (
	"math"
	"math/rand"
	"sort"

	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/population"
)

// WeightedEvent names one event type and its relative draw weight.
type WeightedEvent struct {
	Name   string
	Weight float64
}

// Catalog is an immutable resolved weight table. Events are kept sorted by
// name so draws replay identically regardless of map iteration order in the
// inputs.
type Catalog struct {
	events  []WeightedEvent
	weights map[string]float64
}

// New validates and resolves a weight table. Overrides replace or add
// per-event weights from source config; an override weight of 0 removes the
// event. An empty resolved table is a ConfigError.
func New(base []WeightedEvent, overrides map[string]float64) (*Catalog, error) {
	merged := make(map[string]float64, len(base))
	for _, e := range base {
		if e.Name == "" {
			return nil, config.Errorf("catalog", "event name must be non-empty")
		}
		if !validWeight(e.Weight) {
			return nil, config.Errorf("catalog", "invalid weight for %s: %v", e.Name, e.Weight)
		}
		merged[e.Name] = e.Weight
	}
	for name, w := range overrides {
		if name == "" {
			return nil, config.Errorf("catalog.overrides", "event name must be non-empty")
		}
		if w == 0 {
			delete(merged, name)
			continue
		}
		if !validWeight(w) {
			return nil, config.Errorf("catalog.overrides", "invalid weight for %s: %v", name, w)
		}
		merged[name] = w
	}
	if len(merged) == 0 {
		return nil, config.Errorf("catalog", "no events available after applying overrides")
	}

	c := &Catalog{
		events:  make([]WeightedEvent, 0, len(merged)),
		weights: merged,
	}
	for name, w := range merged {
		c.events = append(c.events, WeightedEvent{Name: name, Weight: w})
	}
	sort.Slice(c.events, func(i, j int) bool { return c.events[i].Name < c.events[j].Name })
	return c, nil
}

// Contains reports whether name survived override resolution.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.weights[name]
	return ok
}

// Weight returns the resolved base weight, or 1 for events the table does
// not list (transition candidates outside the curated set keep a neutral
// base).
func (c *Catalog) Weight(name string) float64 {
	if w, ok := c.weights[name]; ok {
		return w
	}
	return 1
}

// Events returns the resolved table in name order.
func (c *Catalog) Events() []WeightedEvent {
	out := make([]WeightedEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Pick draws one event from the full table, with the actor's bias
// multipliers applied.
func (c *Catalog) Pick(rng *rand.Rand, bias map[string]float64) string {
	return drawWeighted(rng, c.events, func(e WeightedEvent) float64 {
		return e.Weight * biasFor(bias, e.Name)
	})
}

// PickFrom draws from transition candidates intersected with the table.
// Candidate weights multiply the base weights and the actor bias; candidates
// the table dropped are skipped. An empty intersection falls back to the
// full table.
func (c *Catalog) PickFrom(rng *rand.Rand, candidates []WeightedEvent, bias map[string]float64) string {
	live := candidates[:0:0]
	for _, cand := range candidates {
		if c.Contains(cand.Name) && validWeight(cand.Weight) {
			live = append(live, cand)
		}
	}
	if len(live) == 0 {
		return c.Pick(rng, bias)
	}
	return drawWeighted(rng, live, func(e WeightedEvent) float64 {
		return c.Weight(e.Name) * e.Weight * biasFor(bias, e.Name)
	})
}

// TransitionFunc returns the plausible next events for an actor given its
// last event in the current session ("" right after session start). Ties are
// broken by list order.
type TransitionFunc func(a *population.Actor, last string) []WeightedEvent

func drawWeighted(rng *rand.Rand, events []WeightedEvent, weight func(WeightedEvent) float64) string {
	total := 0.0
	for _, e := range events {
		if w := weight(e); w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return events[0].Name
	}
	r := rng.Float64() * total
	for _, e := range events {
		w := weight(e)
		if w <= 0 {
			continue
		}
		if r < w {
			return e.Name
		}
		r -= w
	}
	return events[len(events)-1].Name
}

func biasFor(bias map[string]float64, name string) float64 {
	if b, ok := bias[name]; ok && validWeight(b) {
		return b
	}
	return 1
}

func validWeight(w float64) bool {
	return w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}
