package population

import (
	"hash/fnv"
	"math"

	"github.com/seclog-dev/seclog/gen/config"
)

// Selector carves a stable per-source subset out of a shared population so
// multiple log sources can draw overlapping but independently-sized actor
// sets. Membership depends only on (seed, sourceID, actorID); raising a ratio
// only ever adds actors, never removes ones already selected.
type Selector struct {
	sourceID     string
	humanRatio   float64
	serviceRatio float64
	seed         int64
}

// NewSelector validates cfg and builds a selector. A nil default seed of 0 is
// legal; distinct seeds produce distinct subsets.
func NewSelector(cfg SelectorConfig, defaultSeed int64) (*Selector, error) {
	if cfg.SourceID == "" {
		return nil, config.Errorf("population.selectors", "source_id must be non-empty")
	}
	for name, ratio := range map[string]float64{
		"human_ratio":   cfg.HumanRatio,
		"service_ratio": cfg.ServiceRatio,
	} {
		if ratio < 0 || ratio > 1 || math.IsNaN(ratio) {
			return nil, config.Errorf("population.selectors", "%s %s outside [0,1]", cfg.SourceID, name)
		}
	}
	seed := defaultSeed
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	return &Selector{
		sourceID:     cfg.SourceID,
		humanRatio:   cfg.HumanRatio,
		serviceRatio: cfg.ServiceRatio,
		seed:         seed,
	}, nil
}

// Contains reports whether a belongs to this selector's subset.
func (s *Selector) Contains(a *Actor) bool {
	ratio := s.humanRatio
	if a.Kind == KindService {
		ratio = s.serviceRatio
	}
	if ratio <= 0 {
		return false
	}
	if ratio >= 1 {
		return true
	}
	return hash01(s.seed, s.sourceID, a.ID) < ratio
}

// Select returns the subset in the population's order.
func (s *Selector) Select(p *Population) []*Actor {
	out := make([]*Actor, 0, p.Len())
	for _, a := range p.Actors {
		if s.Contains(a) {
			out = append(out, a)
		}
	}
	return out
}

// hash01 maps (seed, sourceID, actorID) to a uniform value in [0, 1).
func hash01(seed int64, sourceID, actorID string) float64 {
	h := fnv.New64a()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(uint64(seed) >> (8 * i))
	}
	h.Write(buf[:])
	h.Write([]byte(sourceID))
	h.Write([]byte{0})
	h.Write([]byte(actorID))
	return float64(h.Sum64()>>11) / float64(1<<53)
}
