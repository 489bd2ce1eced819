package catalog

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/population"
)

// ErrorRule overrides error injection for one event type. A nil Rate keeps
// the actor's own error rate; Code/Message fall back to the source's
// defaults for the event.
type ErrorRule struct {
	Name    string   `yaml:"name"`
	Rate    *float64 `yaml:"rate"`
	Code    string   `yaml:"code"`
	Message string   `yaml:"message"`
}

// ErrorDetail is the injected failure for one emitted event.
type ErrorDetail struct {
	Code    string
	Message string
}

// Draw is one sequenced event: the chosen type, the session identity it was
// emitted under, and the injected failure, if any. RuleError marks a failure
// whose Code/Message came from a configured rule rather than the source's
// defaults; sources must carry those verbatim instead of rolling their own.
type Draw struct {
	Name      string
	Failed    bool
	Error     ErrorDetail
	RuleError bool
	IP        string
	UserAgent string
	SessionID string
}

// DefaultErrorFunc supplies a source's built-in code/message for an event
// type. It must always return a usable detail.
type DefaultErrorFunc func(name string) ErrorDetail

// Cooldown bounds (minutes) for the idle gap drawn when a session expires.
const (
	defaultHumanCooldownMin   = 30
	defaultHumanCooldownMax   = 180
	defaultServiceCooldownMin = 5
	defaultServiceCooldownMax = 30
)

// SessionConfig tunes the idle gap between an actor's sessions. The gap is
// drawn uniformly in [min, max) minutes when a session expires. Zero-value
// fields keep the defaults; humans idle 30-180 minutes, services 5-30.
type SessionConfig struct {
	HumanCooldownMinMinutes   int `yaml:"human_cooldown_min_minutes"`
	HumanCooldownMaxMinutes   int `yaml:"human_cooldown_max_minutes"`
	ServiceCooldownMinMinutes int `yaml:"service_cooldown_min_minutes"`
	ServiceCooldownMaxMinutes int `yaml:"service_cooldown_max_minutes"`
}

func (c SessionConfig) resolve() (SessionConfig, error) {
	fill := func(min, max *int, defMin, defMax int) {
		if *min == 0 && *max == 0 {
			*min, *max = defMin, defMax
		}
	}
	fill(&c.HumanCooldownMinMinutes, &c.HumanCooldownMaxMinutes,
		defaultHumanCooldownMin, defaultHumanCooldownMax)
	fill(&c.ServiceCooldownMinMinutes, &c.ServiceCooldownMaxMinutes,
		defaultServiceCooldownMin, defaultServiceCooldownMax)
	if c.HumanCooldownMinMinutes < 0 || c.HumanCooldownMaxMinutes <= c.HumanCooldownMinMinutes {
		return c, config.Errorf("sessions", "human cooldown range [%d, %d) is invalid",
			c.HumanCooldownMinMinutes, c.HumanCooldownMaxMinutes)
	}
	if c.ServiceCooldownMinMinutes < 0 || c.ServiceCooldownMaxMinutes <= c.ServiceCooldownMinMinutes {
		return c, config.Errorf("sessions", "service cooldown range [%d, %d) is invalid",
			c.ServiceCooldownMinMinutes, c.ServiceCooldownMaxMinutes)
	}
	return c, nil
}

type session struct {
	id        string
	endsAt    time.Time
	remaining int
	last      string
	ip        string
	userAgent string
}

// Sequencer drives one source's per-actor event chains. It owns all mutable
// per-actor state (sessions, last event); callers pass the per-actor RNG so
// replays with the same seed walk the same chains.
//
// Not safe for concurrent use; schedulers serialize access per actor.
type Sequencer struct {
	catalog     *Catalog
	transitions TransitionFunc
	rules       map[string]ErrorRule
	defaults    DefaultErrorFunc
	cooldowns   SessionConfig
	sessions    map[string]*session
	nextAt      map[string]time.Time
}

// NewSequencer validates the error rules and session bounds and builds a
// sequencer. transitions may be nil, in which case every draw uses the full
// table.
func NewSequencer(c *Catalog, transitions TransitionFunc, rules []ErrorRule, defaults DefaultErrorFunc, sessions SessionConfig) (*Sequencer, error) {
	byName := make(map[string]ErrorRule, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, config.Errorf("error_rates", "event name must be non-empty")
		}
		if r.Rate != nil && (*r.Rate < 0 || *r.Rate > 1) {
			return nil, config.Errorf("error_rates", "%s rate outside [0,1]", r.Name)
		}
		byName[r.Name] = r
	}
	if defaults == nil {
		defaults = func(string) ErrorDetail {
			return ErrorDetail{Code: "AccessDenied", Message: "Access denied"}
		}
	}
	cooldowns, err := sessions.resolve()
	if err != nil {
		return nil, err
	}
	return &Sequencer{
		catalog:     c,
		transitions: transitions,
		rules:       byName,
		defaults:    defaults,
		cooldowns:   cooldowns,
		sessions:    make(map[string]*session),
		nextAt:      make(map[string]time.Time),
	}, nil
}

// Next draws the actor's next event at the simulated instant now. Session
// identity (ip, user agent, session id) is chosen when a session starts and
// stays sticky until it ends; a session ends when its event budget or
// duration runs out, after which the next call starts a fresh one with the
// chain reset.
func (s *Sequencer) Next(rng *rand.Rand, a *population.Actor, now time.Time) Draw {
	sess := s.ensureSession(rng, a, now)

	var name string
	if s.transitions != nil {
		name = s.catalog.PickFrom(rng, s.transitions(a, sess.last), a.EventBias)
	} else {
		name = s.catalog.Pick(rng, a.EventBias)
	}
	sess.last = name

	draw := Draw{
		Name:      name,
		IP:        sess.ip,
		UserAgent: sess.userAgent,
		SessionID: sess.id,
	}
	if rate, detail, fromRule := s.errorFor(a, name); rng.Float64() < rate {
		draw.Failed = true
		draw.Error = detail
		draw.RuleError = fromRule
	}

	s.consumeSession(rng, sess)
	return draw
}

// Available reports whether the actor may emit at now, and the earliest
// instant it may emit again. An expired session is torn down here and an
// inter-session cooldown drawn; the actor idles until the cooldown passes.
// Schedulers consult this before Emit so sessions get a gap between them
// instead of abutting.
func (s *Sequencer) Available(rng *rand.Rand, a *population.Actor, now time.Time) (bool, time.Time) {
	if sess := s.sessions[a.ID]; sess != nil && !now.Before(sess.endsAt) {
		delete(s.sessions, a.ID)
		s.nextAt[a.ID] = now.Add(s.cooldown(rng, a))
	}
	if next, ok := s.nextAt[a.ID]; ok && now.Before(next) {
		return false, next
	}
	delete(s.nextAt, a.ID)
	return true, now
}

func (s *Sequencer) cooldown(rng *rand.Rand, a *population.Actor) time.Duration {
	lo, hi := s.cooldowns.ServiceCooldownMinMinutes, s.cooldowns.ServiceCooldownMaxMinutes
	if a.Kind == population.KindHuman {
		lo, hi = s.cooldowns.HumanCooldownMinMinutes, s.cooldowns.HumanCooldownMaxMinutes
	}
	return time.Duration(lo+rng.Intn(hi-lo)) * time.Minute
}

func (s *Sequencer) ensureSession(rng *rand.Rand, a *population.Actor, now time.Time) *session {
	human := a.Kind == population.KindHuman

	sess := s.sessions[a.ID]
	if sess == nil || !now.Before(sess.endsAt) {
		// A forced draw during a cooldown starts the next session early.
		delete(s.nextAt, a.ID)
		minutes := 10 + rng.Intn(50)
		if human {
			minutes = 20 + rng.Intn(100)
		}
		sess = &session{
			id:        uuid.Must(uuid.NewRandomFromReader(rng)).String(),
			endsAt:    now.Add(time.Duration(minutes) * time.Minute),
			ip:        pickSticky(rng, a.SourceIPs, stickiness(human, 0.7, 0.95)),
			userAgent: pickSticky(rng, a.UserAgents, stickiness(human, 0.65, 0.9)),
		}
		s.sessions[a.ID] = sess
	}

	// Refill the chain budget when it runs out; identity stays sticky for
	// the session's whole lifetime.
	if sess.remaining == 0 {
		if human {
			sess.remaining = 3 + rng.Intn(7)
		} else {
			sess.remaining = 6 + rng.Intn(12)
		}
	}
	return sess
}

func (s *Sequencer) consumeSession(rng *rand.Rand, sess *session) {
	if sess.remaining > 0 {
		sess.remaining--
	}
	// Occasionally forget the chain even when the session keeps going.
	if sess.remaining == 0 && rng.Float64() < 0.2 {
		sess.last = ""
	}
}

// errorFor resolves the effective rate and failure detail for one event
// type. fromRule reports whether a configured rule supplied the code or
// message, so sources know the detail is an operator's choice, not a default.
func (s *Sequencer) errorFor(a *population.Actor, name string) (float64, ErrorDetail, bool) {
	detail := s.defaults(name)
	rate := a.ErrorRate
	fromRule := false
	if rule, ok := s.rules[name]; ok {
		if rule.Rate != nil {
			rate = *rule.Rate
		}
		if rule.Code != "" {
			detail.Code = rule.Code
			fromRule = true
		}
		if rule.Message != "" {
			detail.Message = rule.Message
			fromRule = true
		}
	}
	return rate, detail, fromRule
}

// pickSticky favors the pool's primary value, keeping most events in a pool
// on one identity while the rest spread over the alternates.
func pickSticky(rng *rand.Rand, pool []string, primary float64) string {
	if len(pool) == 0 {
		return "unknown"
	}
	if len(pool) == 1 || rng.Float64() < primary {
		return pool[0]
	}
	return pool[1+rng.Intn(len(pool)-1)]
}

func stickiness(human bool, humanW, serviceW float64) float64 {
	if human {
		return humanW
	}
	return serviceW
}
