package entra

import (
	"math/rand"
	"time"

	"github.com/seclog-dev/seclog/gen"
	"github.com/seclog-dev/seclog/gen/catalog"
	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/population"
)

// SourceID is the stream identifier used for output paths and RNG
// partitioning.
const SourceID = "entra_id"

// FileLabel is the source token embedded in output filenames.
const FileLabel = "EntraID"

// Config is the Entra ID block of the generator configuration.
type Config struct {
	TenantID     string `yaml:"tenant_id"`
	TenantDomain string `yaml:"tenant_domain"`
	// CategoryWeights rebalances the sign-in/audit split. Nil keeps the
	// built-in 1:1; a category weighted 0 is dropped entirely.
	CategoryWeights map[string]float64 `yaml:"category_weights"`
	// EventWeights overrides individual event weights after the category
	// split is applied; 0 removes the event.
	EventWeights map[string]float64    `yaml:"event_weights"`
	ErrorRates   []catalog.ErrorRule   `yaml:"error_rates"`
	Sessions     catalog.SessionConfig `yaml:"sessions"`
}

// Source emits Entra ID sign-in and audit events for its sub-population.
type Source struct {
	pop          *population.Population
	seq          *catalog.Sequencer
	tenantID     string
	tenantDomain string
}

// New builds an Entra ID source over the given (already selected)
// population. The two curated tables are folded into one catalog, with each
// category's weights normalized so the configured category split holds
// regardless of table sizes.
func New(cfg Config, pop *population.Population) (*Source, error) {
	tenantDomain := cfg.TenantDomain
	if tenantDomain == "" {
		tenantDomain = "contoso.example"
	}
	tenantID := cfg.TenantID
	if tenantID == "" {
		tenantID = stableGUID("tenant", tenantDomain)
	}

	base, err := foldCategories(cfg.CategoryWeights)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.New(base, cfg.EventWeights)
	if err != nil {
		return nil, err
	}
	seq, err := catalog.NewSequencer(cat, Transitions, cfg.ErrorRates, DefaultError, cfg.Sessions)
	if err != nil {
		return nil, err
	}
	return &Source{
		pop:          pop,
		seq:          seq,
		tenantID:     tenantID,
		tenantDomain: tenantDomain,
	}, nil
}

func foldCategories(weights map[string]float64) ([]catalog.WeightedEvent, error) {
	catWeight := func(c Category) (float64, error) {
		if weights == nil {
			return 1, nil
		}
		w, ok := weights[string(c)]
		if !ok {
			return 1, nil
		}
		if w < 0 {
			return 0, config.Errorf("entra_id.category_weights", "%s weight must be >= 0", c)
		}
		return w, nil
	}
	for name := range weights {
		if Category(name) != CategorySignIn && Category(name) != CategoryAudit {
			return nil, config.Errorf("entra_id.category_weights", "unknown category %q", name)
		}
	}

	var folded []catalog.WeightedEvent
	for _, tbl := range []struct {
		cat    Category
		events []catalog.WeightedEvent
	}{
		{CategorySignIn, SignInEvents()},
		{CategoryAudit, AuditEvents()},
	} {
		w, err := catWeight(tbl.cat)
		if err != nil {
			return nil, err
		}
		if w == 0 {
			continue
		}
		total := 0.0
		for _, e := range tbl.events {
			total += e.Weight
		}
		for _, e := range tbl.events {
			folded = append(folded, catalog.WeightedEvent{
				Name:   e.Name,
				Weight: w * e.Weight / total,
			})
		}
	}
	if len(folded) == 0 {
		return nil, config.Errorf("entra_id.category_weights", "all categories weighted to zero")
	}
	return folded, nil
}

func (s *Source) ID() string { return SourceID }

func (s *Source) Actors() *population.Population { return s.pop }

// Available reports whether the actor's session gate permits an event at
// now, and when it next will.
func (s *Source) Available(rng *rand.Rand, a *population.Actor, now time.Time) (bool, time.Time) {
	return s.seq.Available(rng, a, now)
}

// Emit draws the actor's next event and renders the sign-in or audit payload
// plus the shared envelope.
func (s *Source) Emit(rng *rand.Rand, a *population.Actor, t time.Time) (*gen.Event, error) {
	draw := s.seq.Next(rng, a, t)
	eventTime := t.UTC().Format("2006-01-02T15:04:05.000Z")
	id := newIdentity(a, s.tenantID, s.tenantDomain, draw.IP, draw.UserAgent)

	var (
		payload any
		target  *gen.Target
	)
	var override *catalog.ErrorDetail
	if draw.Failed && draw.RuleError {
		override = &draw.Error
	}
	if CategoryOf(draw.Name) == CategorySignIn {
		payload = buildSignIn(rng, id, draw.Name, eventTime, draw.Failed, override)
	} else {
		audit := buildAudit(rng, id, draw.Name, eventTime, draw.Failed, override)
		res := audit.TargetResources[0]
		name := res.DisplayName
		target = &gen.Target{ID: res.ID, Kind: res.Type, Name: &name}
		payload = audit
	}

	outcome := gen.OutcomeSuccess
	if draw.Failed {
		outcome = gen.OutcomeFailure
	}

	actorID, actorKind := id.servicePrincipalID, "service_principal"
	var actorName *string
	if a.Kind == population.KindHuman {
		actorID, actorKind = id.userID, "user"
		upn := id.userPrincipalName
		actorName = &upn
	} else {
		app := id.appDisplayName
		actorName = &app
	}

	ev := &gen.Event{
		Envelope: gen.Envelope{
			SchemaVersion: "v1",
			Timestamp:     eventTime,
			Source:        SourceID,
			EventType:     draw.Name,
			Actor: gen.Actor{
				ID:   actorID,
				Kind: actorKind,
				Name: actorName,
			},
			Target:    target,
			Outcome:   outcome,
			IP:        &draw.IP,
			UserAgent: &draw.UserAgent,
			SessionID: &draw.SessionID,
			TenantID:  &s.tenantID,
		},
		Payload:   payload,
		AccountID: s.tenantID,
		Region:    "global",
	}
	return ev, nil
}
