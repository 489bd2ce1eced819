// Package population builds and persists the deterministic actor set that
// drives event generation. Actors are immutable once built; generation runs
// load them read-only and keep all per-run mutable state elsewhere.
package population

import (
	"time"
)

// Kind splits the population into interactive humans and automated services.
type Kind string

const (
	KindHuman   Kind = "human"
	KindService Kind = "service"
)

// Human roles. Role weights and per-role rates come from config.
const (
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
	RoleReadOnly  = "readonly"
	RoleAuditor   = "auditor"
)

// Service profiles shipped with the curated catalogs.
const (
	ProfileGeneric          = "generic"
	ProfileEC2Reaper        = "ec2_reaper"
	ProfileDataLakeBot      = "datalake_bot"
	ProfileLogsShipper      = "logs_shipper"
	ProfileMetricsCollector = "metrics_collector"
)

// Pattern shapes a service actor's intensity over time.
type Pattern string

const (
	PatternConstant Pattern = "constant"
	PatternDiurnal  Pattern = "diurnal"
	PatternBursty   Pattern = "bursty"
)

// Actor is one simulated identity with persistent behavioral traits.
// Humans carry a Role; services carry a ServiceProfile and Pattern.
type Actor struct {
	ID             string
	Kind           Kind
	Role           string
	ServiceProfile string
	ServicePattern Pattern

	EventsPerHour float64
	ErrorRate     float64

	AccountID    string
	IdentityType string
	PrincipalID  string
	ARN          string
	AccessKeyID  string
	UserName     string

	UserAgents []string
	SourceIPs  []string

	ActiveStartHour int
	ActiveHours     int
	TimezoneOffset  int // whole hours east of UTC
	TimezoneFixed   bool
	WeekendActive   bool

	Tags      []string
	EventBias map[string]float64
}

// LocalTime converts a UTC instant into the actor's local time.
func (a *Actor) LocalTime(t time.Time) time.Time {
	return t.UTC().Add(time.Duration(a.TimezoneOffset) * time.Hour)
}

// Active reports whether the actor may emit at the given UTC instant,
// honoring the weekend flag and the (possibly midnight-wrapping) window.
func (a *Actor) Active(t time.Time) bool {
	local := a.LocalTime(t)
	if !a.WeekendActive && isWeekend(local) {
		return false
	}
	if a.ActiveHours >= 24 {
		return true
	}
	hour := local.Hour()
	start := a.ActiveStartHour
	end := (start + a.ActiveHours) % 24
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// NextActiveStart returns the next UTC instant at which the actor's window
// opens at or after t. Call only when the actor is currently inactive.
func (a *Actor) NextActiveStart(t time.Time) time.Time {
	local := a.LocalTime(t)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	for i := 0; i < 9; i++ { // at most a week of skipped days plus slack
		if !a.WeekendActive && isWeekend(day) {
			day = day.AddDate(0, 0, 1)
			continue
		}
		start := day.Add(time.Duration(a.ActiveStartHour) * time.Hour)
		if start.After(local) {
			return start.Add(-time.Duration(a.TimezoneOffset) * time.Hour)
		}
		day = day.AddDate(0, 0, 1)
	}
	// Unreachable for any valid window; fall back to tomorrow.
	return t.Add(24 * time.Hour)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Population is a unique-by-ID collection of actors.
type Population struct {
	Actors []*Actor

	byID map[string]*Actor
}

// NewPopulation indexes the given actors. Later duplicates are dropped.
func NewPopulation(actors []*Actor) *Population {
	p := &Population{byID: make(map[string]*Actor, len(actors))}
	for _, a := range actors {
		if _, dup := p.byID[a.ID]; dup {
			continue
		}
		p.byID[a.ID] = a
		p.Actors = append(p.Actors, a)
	}
	return p
}

// Get returns the actor with the given ID, or nil.
func (p *Population) Get(id string) *Actor {
	return p.byID[id]
}

// Len returns the number of actors.
func (p *Population) Len() int {
	return len(p.Actors)
}
