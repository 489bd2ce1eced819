package population

// Config holds the validated population-build parameters. The CLI layer
// loads and decodes it from YAML; Build treats it as already typed but still
// validates cross-field invariants before any sampling happens.
type Config struct {
	ActorCount         int                    `yaml:"actor_count"`
	ServiceRatio       *float64               `yaml:"service_ratio"`
	HotActorRatio      *float64               `yaml:"hot_actor_ratio"`
	HotActorMultiplier *float64               `yaml:"hot_actor_multiplier"`
	AccountIDs         []string               `yaml:"account_ids"`
	AccountCount       int                    `yaml:"account_count"`
	ErrorRate          *ErrorRateConfig       `yaml:"error_rate"`
	HumanErrorRate     *ErrorRateConfig       `yaml:"human_error_rate"`
	ServiceErrorRate   *ErrorRateConfig       `yaml:"service_error_rate"`
	Roles              []RoleConfig           `yaml:"roles"`
	ServiceRate        *float64               `yaml:"service_events_per_hour"`
	ServiceProfiles    []ServiceProfileConfig `yaml:"service_profiles"`
	Timezones          []TimezoneWeight       `yaml:"timezone_distribution"`
	Actors             []ExplicitActor        `yaml:"actors"`
	Selectors          []SelectorConfig       `yaml:"selectors"`
}

// RoleConfig weights one human role and sets its baseline rate.
type RoleConfig struct {
	Name          string  `yaml:"name"`
	Weight        float64 `yaml:"weight"`
	EventsPerHour float64 `yaml:"events_per_hour"`
}

// ServiceProfileConfig weights one service profile.
type ServiceProfileConfig struct {
	Name          string   `yaml:"name"`
	Weight        float64  `yaml:"weight"`
	EventsPerHour *float64 `yaml:"events_per_hour"`
	Pattern       string   `yaml:"pattern"`
}

// ErrorRateConfig samples per-actor error rates from [Min, Max].
// Distribution is "uniform" (default) or "normal" (truncated to the range,
// mean at the midpoint).
type ErrorRateConfig struct {
	Min          float64 `yaml:"min"`
	Max          float64 `yaml:"max"`
	Distribution string  `yaml:"distribution"`
}

// TimezoneWeight weights one timezone for actor assignment. Name is an IANA
// zone name ("UTC", "America/Los_Angeles", ...).
type TimezoneWeight struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// ExplicitActor pins one actor's traits; unset fields are sampled like a
// generated actor's. Explicit actors are always retained even when they
// exceed ActorCount.
type ExplicitActor struct {
	ID              string             `yaml:"id"`
	Kind            string             `yaml:"kind"`
	Role            string             `yaml:"role"`
	ServiceProfile  string             `yaml:"service_profile"`
	ServicePattern  string             `yaml:"service_pattern"`
	EventsPerHour   *float64           `yaml:"events_per_hour"`
	ErrorRate       *float64           `yaml:"error_rate"`
	AccountID       string             `yaml:"account_id"`
	UserName        string             `yaml:"user_name"`
	PrincipalID     string             `yaml:"principal_id"`
	ARN             string             `yaml:"arn"`
	AccessKeyID     string             `yaml:"access_key_id"`
	IdentityType    string             `yaml:"identity_type"`
	Timezone        string             `yaml:"timezone"`
	ActiveStartHour *int               `yaml:"active_start_hour"`
	ActiveHours     *int               `yaml:"active_hours"`
	WeekendActive   *bool              `yaml:"weekend_active"`
	UserAgents      []string           `yaml:"user_agents"`
	SourceIPs       []string           `yaml:"source_ips"`
	Tags            []string           `yaml:"tags"`
	EventBias       map[string]float64 `yaml:"event_bias"`
}

// SelectorConfig derives a per-source subset of a shared population.
type SelectorConfig struct {
	SourceID     string  `yaml:"source_id"`
	HumanRatio   float64 `yaml:"human_ratio"`
	ServiceRatio float64 `yaml:"service_ratio"`
	Seed         *int64  `yaml:"seed"`
}
