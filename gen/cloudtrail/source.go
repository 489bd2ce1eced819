package cloudtrail

import (
	"math/rand"
	"strings"
	"time"

	"github.com/seclog-dev/seclog/gen"
	"github.com/seclog-dev/seclog/gen/catalog"
	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/population"
)

// SourceID is the stream identifier used for output paths and RNG
// partitioning.
const SourceID = "cloudtrail"

// FileLabel is the source token embedded in output filenames.
const FileLabel = "CloudTrail"

// RegionWeight weights one AWS region for event placement.
type RegionWeight struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// Config is the CloudTrail block of the generator configuration.
type Config struct {
	// Curated includes the built-in event table. Nil means true.
	Curated *bool `yaml:"curated"`
	// EventWeights overrides or extends the table; a weight of 0 removes
	// the event.
	EventWeights map[string]float64 `yaml:"event_weights"`
	// Regions limits placement to the listed regions (uniform unless
	// weighted below).
	Regions            []string              `yaml:"regions"`
	RegionDistribution []RegionWeight        `yaml:"region_distribution"`
	ErrorRates         []catalog.ErrorRule   `yaml:"error_rates"`
	Sessions           catalog.SessionConfig `yaml:"sessions"`
}

// Source emits CloudTrail management events for its sub-population.
type Source struct {
	pop     *population.Population
	seq     *catalog.Sequencer
	regions *regionPicker
}

// New builds a CloudTrail source over the given (already selected)
// population.
func New(cfg Config, pop *population.Population) (*Source, error) {
	var base []catalog.WeightedEvent
	if cfg.Curated == nil || *cfg.Curated {
		base = CuratedEvents()
	}
	cat, err := catalog.New(base, cfg.EventWeights)
	if err != nil {
		return nil, err
	}
	seq, err := catalog.NewSequencer(cat, Transitions, cfg.ErrorRates, DefaultError, cfg.Sessions)
	if err != nil {
		return nil, err
	}
	regions, err := newRegionPicker(cfg.Regions, cfg.RegionDistribution)
	if err != nil {
		return nil, err
	}
	return &Source{pop: pop, seq: seq, regions: regions}, nil
}

func (s *Source) ID() string { return SourceID }

func (s *Source) Actors() *population.Population { return s.pop }

// Available reports whether the actor's session gate permits an event at
// now, and when it next will.
func (s *Source) Available(rng *rand.Rand, a *population.Actor, now time.Time) (bool, time.Time) {
	return s.seq.Available(rng, a, now)
}

// Emit draws the actor's next event and renders the full CloudTrail record
// plus the shared envelope.
func (s *Source) Emit(rng *rand.Rand, a *population.Actor, t time.Time) (*gen.Event, error) {
	draw := s.seq.Next(rng, a, t)
	c := call{
		actor:     a,
		region:    s.regions.pick(rng),
		ip:        draw.IP,
		userAgent: draw.UserAgent,
		eventTime: t.UTC().Format("2006-01-02T15:04:05.000Z"),
		mfa:       a.Kind == population.KindHuman && rng.Float64() < 0.8,
	}
	rec := buildRecord(rng, draw.Name, c)
	if draw.Failed {
		applyError(rec, draw.Error)
	}

	outcome := gen.OutcomeSuccess
	if draw.Failed {
		outcome = gen.OutcomeFailure
	}
	var name *string
	if a.UserName != "" {
		n := a.UserName
		name = &n
	}
	ev := &gen.Event{
		Envelope: gen.Envelope{
			SchemaVersion: "v1",
			Timestamp:     rec.EventTime,
			Source:        SourceID,
			EventType:     rec.EventName,
			Actor: gen.Actor{
				ID:   a.PrincipalID,
				Kind: a.IdentityType,
				Name: name,
			},
			Outcome:   outcome,
			IP:        &rec.SourceIPAddress,
			UserAgent: &rec.UserAgent,
			SessionID: &draw.SessionID,
			TenantID:  &rec.RecipientAccountID,
		},
		Payload:   rec,
		AccountID: a.AccountID,
		Region:    rec.AWSRegion,
	}
	return ev, nil
}

type regionPicker struct {
	names   []string
	weights []float64
}

func newRegionPicker(regions []string, dist []RegionWeight) (*regionPicker, error) {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}
	for _, r := range regions {
		add(r)
	}
	if len(names) == 0 {
		for _, d := range dist {
			if d.Weight > 0 {
				add(d.Name)
			}
		}
	}
	if len(names) == 0 {
		names = []string{"us-east-1", "us-west-2", "eu-west-1", "ap-southeast-1"}
	}

	byName := make(map[string]float64, len(dist))
	for _, d := range dist {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			continue
		}
		if d.Weight < 0 {
			return nil, config.Errorf("cloudtrail.region_distribution", "%s weight must be >= 0", name)
		}
		if d.Weight > 0 {
			byName[name] = d.Weight
		}
	}
	weights := make([]float64, len(names))
	total := 0.0
	for i, name := range names {
		w, ok := byName[name]
		if !ok {
			w = 1
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return nil, config.Errorf("cloudtrail.region_distribution", "region weights sum to zero")
	}
	return &regionPicker{names: names, weights: weights}, nil
}

func (p *regionPicker) pick(rng *rand.Rand) string {
	r := rng.Float64()
	total := 0.0
	for _, w := range p.weights {
		total += w
	}
	r *= total
	for i, w := range p.weights {
		if r < w {
			return p.names[i]
		}
		r -= w
	}
	return p.names[len(p.names)-1]
}
