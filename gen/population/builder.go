package population

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/seclog-dev/seclog/gen/config"
)

// Default knobs, matching the curated catalogs' expectations.
const (
	defaultActorCount   = 500
	defaultServiceRatio = 0.2
	defaultHotRatio     = 0.1
	defaultHotMult      = 6.0
	defaultServiceRate  = 6.0
)

type errorRateSpec struct {
	min, max float64
	normal   bool
}

var defaultErrorRate = errorRateSpec{min: 0.01, max: 0.05}

type roleSpec struct {
	name   string
	weight float64
	rate   float64
}

func defaultRoles() []roleSpec {
	return []roleSpec{
		{RoleAdmin, 0.15, 24.0},
		{RoleDeveloper, 0.55, 18.0},
		{RoleReadOnly, 0.25, 8.0},
		{RoleAuditor, 0.05, 6.0},
	}
}

type profileSpec struct {
	name    string
	weight  float64
	rate    float64
	pattern Pattern
}

// Build constructs a deterministic actor population from cfg and seed.
// Identical (cfg, seed, at) triples produce identical populations; at is the
// reference instant IANA timezone offsets are resolved against, so a run
// pinned to a start time replays identically across DST transitions. Build
// performs no I/O; persistence is the Store's job.
func Build(cfg Config, seed int64, at time.Time) (*Population, error) {
	rng := rand.New(rand.NewSource(seed))

	serviceRatio := clampedOr(cfg.ServiceRatio, defaultServiceRatio, 0, 1)
	hotRatio := clampedOr(cfg.HotActorRatio, defaultHotRatio, 0, 1)
	hotMult := math.Max(1, valueOr(cfg.HotActorMultiplier, defaultHotMult))
	serviceRate := math.Max(0.1, valueOr(cfg.ServiceRate, defaultServiceRate))

	roles, err := resolveRoles(cfg.Roles)
	if err != nil {
		return nil, err
	}
	profiles, err := resolveProfiles(cfg.ServiceProfiles, serviceRate)
	if err != nil {
		return nil, err
	}
	accounts, err := resolveAccounts(cfg, rng)
	if err != nil {
		return nil, err
	}

	baseline := resolveErrorRate(cfg.ErrorRate, defaultErrorRate)
	humanErr := resolveErrorRate(cfg.HumanErrorRate, baseline)
	serviceErr := resolveErrorRate(cfg.ServiceErrorRate, baseline)

	now := at.UTC()
	explicit, err := buildExplicit(rng, cfg.Actors, humanErr, serviceErr, accounts, now)
	if err != nil {
		return nil, err
	}

	count := cfg.ActorCount
	if count == 0 {
		count = defaultActorCount
	}
	remaining := count - len(explicit)
	if remaining < 0 {
		remaining = 0
	}

	taken := make(map[string]bool, count)
	for _, a := range explicit {
		taken[a.ID] = true
	}

	generated := make([]*Actor, 0, remaining)
	for i := 0; len(generated) < remaining; i++ {
		id := fmt.Sprintf("actor-%05d", i)
		if taken[id] {
			continue
		}
		taken[id] = true

		var a *Actor
		if rng.Float64() < serviceRatio {
			a = newService(rng, id, pickAccount(rng, accounts), pickProfile(rng, profiles, serviceRate), sampleErrorRate(rng, serviceErr))
		} else {
			a = newHuman(rng, id, pickAccount(rng, accounts), roles, sampleErrorRate(rng, humanErr))
		}
		generated = append(generated, a)
	}

	applyHotRates(rng, generated, hotRatio, hotMult)

	actors := append(generated, explicit...)
	if err := applyTimezones(rng, actors, cfg.Timezones, now); err != nil {
		return nil, err
	}

	return NewPopulation(actors), nil
}

func newHuman(rng *rand.Rand, id, account string, roles []roleSpec, errorRate float64) *Actor {
	weights := make([]float64, len(roles))
	for i, r := range roles {
		weights[i] = r.weight
	}
	role := roles[pickWeighted(rng, weights)]

	userName := "user-" + strings.ToLower(randomAlpha(rng, 6))
	return &Actor{
		ID:              id,
		Kind:            KindHuman,
		Role:            role.name,
		EventsPerHour:   role.rate,
		ErrorRate:       errorRate,
		AccountID:       account,
		IdentityType:    "IAMUser",
		PrincipalID:     "AIDA" + randomAlpha(rng, 16),
		ARN:             fmt.Sprintf("arn:aws:iam::%s:user/%s", account, userName),
		AccessKeyID:     "AKIA" + randomAlpha(rng, 16),
		UserName:        userName,
		UserAgents:      humanUserAgents(rng),
		SourceIPs:       humanSourceIPs(rng),
		ActiveStartHour: 6 + rng.Intn(6),
		ActiveHours:     7 + rng.Intn(4),
		TimezoneOffset:  pickHumanTimezone(rng),
		WeekendActive:   rng.Float64() < 0.2,
	}
}

func newService(rng *rand.Rand, id, account string, profile profileSpec, errorRate float64) *Actor {
	roleName := "svc-role-" + strings.ToLower(randomAlpha(rng, 4))
	sessionName := "svc-" + randomAlpha(rng, 8)
	return &Actor{
		ID:              id,
		Kind:            KindService,
		ServiceProfile:  profile.name,
		ServicePattern:  profile.pattern,
		EventsPerHour:   profile.rate,
		ErrorRate:       errorRate,
		AccountID:       account,
		IdentityType:    "AssumedRole",
		PrincipalID:     "AROA" + randomAlpha(rng, 16),
		ARN:             fmt.Sprintf("arn:aws:sts::%s:assumed-role/%s/%s", account, roleName, sessionName),
		AccessKeyID:     "ASIA" + randomAlpha(rng, 16),
		UserAgents:      serviceUserAgents(rng),
		SourceIPs:       serviceSourceIPs(rng),
		ActiveStartHour: rng.Intn(24),
		ActiveHours:     16 + rng.Intn(8),
		WeekendActive:   true,
	}
}

func buildExplicit(
	rng *rand.Rand,
	entries []ExplicitActor,
	humanErr, serviceErr errorRateSpec,
	accounts []string,
	now time.Time,
) ([]*Actor, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	actors := make([]*Actor, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return nil, config.Errorf("population.actors", "actor id must be non-empty")
		}
		if seen[e.ID] {
			return nil, config.Errorf("population.actors", "duplicate actor id %q", e.ID)
		}
		seen[e.ID] = true

		kind := Kind(e.Kind)
		if kind != KindHuman && kind != KindService {
			return nil, config.Errorf("population.actors", "actor %q has invalid kind %q", e.ID, e.Kind)
		}
		if e.EventsPerHour == nil || *e.EventsPerHour <= 0 || math.IsInf(*e.EventsPerHour, 0) {
			return nil, config.Errorf("population.actors", "actor %q needs events_per_hour > 0", e.ID)
		}

		account := e.AccountID
		if account == "" {
			account = pickAccount(rng, accounts)
		} else if !validAccountID(account) {
			return nil, config.Errorf("population.actors", "actor %q account_id must be 12 digits", e.ID)
		}

		errorRate := 0.0
		if e.ErrorRate != nil {
			errorRate = *e.ErrorRate
			if errorRate < 0 || errorRate > 1 {
				return nil, config.Errorf("population.actors", "actor %q error_rate outside [0,1]", e.ID)
			}
		}

		var a *Actor
		switch kind {
		case KindHuman:
			if e.ServiceProfile != "" || e.ServicePattern != "" {
				return nil, config.Errorf("population.actors", "actor %q is human but has a service profile", e.ID)
			}
			if !validRole(e.Role) {
				return nil, config.Errorf("population.actors", "actor %q needs a valid role, got %q", e.ID, e.Role)
			}
			if e.ErrorRate == nil {
				errorRate = sampleErrorRate(rng, humanErr)
			}
			a = newHuman(rng, e.ID, account, []roleSpec{{e.Role, 1, *e.EventsPerHour}}, errorRate)
		case KindService:
			if e.Role != "" || e.UserName != "" {
				return nil, config.Errorf("population.actors", "actor %q is service but has human-only fields", e.ID)
			}
			if !validProfile(e.ServiceProfile) {
				return nil, config.Errorf("population.actors", "actor %q needs a valid service_profile, got %q", e.ID, e.ServiceProfile)
			}
			pattern := PatternConstant
			if e.ServicePattern != "" {
				pattern = Pattern(e.ServicePattern)
				if !validPattern(pattern) {
					return nil, config.Errorf("population.actors", "actor %q has invalid service_pattern %q", e.ID, e.ServicePattern)
				}
			}
			if e.ErrorRate == nil {
				errorRate = sampleErrorRate(rng, serviceErr)
			}
			a = newService(rng, e.ID, account, profileSpec{e.ServiceProfile, 1, *e.EventsPerHour, pattern}, errorRate)
		}

		if e.UserName != "" {
			a.UserName = e.UserName
			if e.ARN == "" {
				a.ARN = fmt.Sprintf("arn:aws:iam::%s:user/%s", account, e.UserName)
			}
		}
		if e.PrincipalID != "" {
			a.PrincipalID = e.PrincipalID
		}
		if e.ARN != "" {
			a.ARN = e.ARN
		}
		if e.AccessKeyID != "" {
			a.AccessKeyID = e.AccessKeyID
		}
		if e.IdentityType != "" {
			a.IdentityType = e.IdentityType
		}
		if len(e.UserAgents) > 0 {
			a.UserAgents = trimmed(e.UserAgents)
			if len(a.UserAgents) == 0 {
				return nil, config.Errorf("population.actors", "actor %q user_agents must be non-empty", e.ID)
			}
		}
		if len(e.SourceIPs) > 0 {
			a.SourceIPs = trimmed(e.SourceIPs)
			if len(a.SourceIPs) == 0 {
				return nil, config.Errorf("population.actors", "actor %q source_ips must be non-empty", e.ID)
			}
		}
		if e.ActiveStartHour != nil {
			if *e.ActiveStartHour < 0 || *e.ActiveStartHour > 23 {
				return nil, config.Errorf("population.actors", "actor %q active_start_hour outside [0,23]", e.ID)
			}
			a.ActiveStartHour = *e.ActiveStartHour
		}
		if e.ActiveHours != nil {
			if *e.ActiveHours < 1 || *e.ActiveHours > 24 {
				return nil, config.Errorf("population.actors", "actor %q active_hours outside [1,24]", e.ID)
			}
			a.ActiveHours = *e.ActiveHours
		}
		if e.WeekendActive != nil {
			a.WeekendActive = *e.WeekendActive
		}
		if e.Timezone != "" {
			offset, err := timezoneOffset(e.Timezone, now)
			if err != nil {
				return nil, config.Errorf("population.actors", "actor %q: %v", e.ID, err)
			}
			a.TimezoneOffset = offset
			a.TimezoneFixed = true
		}
		a.EventsPerHour = *e.EventsPerHour
		a.Tags = trimmed(e.Tags)
		a.EventBias = cleanBias(e.EventBias)
		actors = append(actors, a)
	}
	return actors, nil
}

func resolveRoles(entries []RoleConfig) ([]roleSpec, error) {
	if len(entries) == 0 {
		return defaultRoles(), nil
	}
	roles := make([]roleSpec, 0, len(entries))
	total := 0.0
	for _, e := range entries {
		if !validRole(e.Name) {
			return nil, config.Errorf("population.roles", "unknown role %q", e.Name)
		}
		if e.Weight <= 0 || math.IsInf(e.Weight, 0) || math.IsNaN(e.Weight) {
			continue
		}
		rate := e.EventsPerHour
		if rate <= 0 {
			for _, d := range defaultRoles() {
				if d.name == e.Name {
					rate = d.rate
				}
			}
		}
		roles = append(roles, roleSpec{e.Name, e.Weight, rate})
		total += e.Weight
	}
	if total <= 0 {
		return nil, config.Errorf("population.roles", "role weights sum to zero")
	}
	return roles, nil
}

func resolveProfiles(entries []ServiceProfileConfig, fallbackRate float64) ([]profileSpec, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	profiles := make([]profileSpec, 0, len(entries))
	total := 0.0
	for _, e := range entries {
		if !validProfile(e.Name) {
			return nil, config.Errorf("population.service_profiles", "unknown profile %q", e.Name)
		}
		if e.Weight <= 0 || math.IsInf(e.Weight, 0) || math.IsNaN(e.Weight) {
			continue
		}
		rate := math.Max(0.1, valueOr(e.EventsPerHour, fallbackRate))
		pattern := PatternConstant
		if e.Pattern != "" {
			pattern = Pattern(e.Pattern)
			if !validPattern(pattern) {
				return nil, config.Errorf("population.service_profiles", "invalid pattern %q", e.Pattern)
			}
		}
		profiles = append(profiles, profileSpec{e.Name, e.Weight, rate, pattern})
		total += e.Weight
	}
	if total <= 0 {
		return nil, config.Errorf("population.service_profiles", "profile weights sum to zero")
	}
	return profiles, nil
}

func resolveAccounts(cfg Config, rng *rand.Rand) ([]string, error) {
	if len(cfg.AccountIDs) > 0 {
		for _, id := range cfg.AccountIDs {
			if !validAccountID(id) {
				return nil, config.Errorf("population.account_ids", "%q is not a 12-digit account id", id)
			}
		}
		return cfg.AccountIDs, nil
	}
	count := cfg.AccountCount
	if count < 1 {
		count = 1
	}
	accounts := make([]string, count)
	for i := range accounts {
		accounts[i] = randomAccountID(rng)
	}
	return accounts, nil
}

func resolveErrorRate(cfg *ErrorRateConfig, fallback errorRateSpec) errorRateSpec {
	if cfg == nil {
		return fallback
	}
	min, max := cfg.Min, cfg.Max
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return fallback
	}
	min = clamp(min, 0, 1)
	max = clamp(max, 0, 1)
	if max < min {
		min, max = max, min
	}
	return errorRateSpec{min: min, max: max, normal: cfg.Distribution == "normal"}
}

// sampleErrorRate draws within [min, max]. The normal variant targets the
// range midpoint and rejects out-of-range draws a few times before clamping.
func sampleErrorRate(rng *rand.Rand, spec errorRateSpec) float64 {
	if spec.max-spec.min < 1e-12 {
		return spec.min
	}
	if !spec.normal {
		return spec.min + rng.Float64()*(spec.max-spec.min)
	}
	mean := (spec.min + spec.max) / 2
	std := math.Max((spec.max-spec.min)/6, 1e-4)
	for i := 0; i < 6; i++ {
		v := mean + std*rng.NormFloat64()
		if v >= spec.min && v <= spec.max {
			return v
		}
	}
	return clamp(mean+std*rng.NormFloat64(), spec.min, spec.max)
}

func applyHotRates(rng *rand.Rand, actors []*Actor, ratio, mult float64) {
	hot := int(math.Round(float64(len(actors)) * ratio))
	if hot == 0 || len(actors) == 0 {
		return
	}
	if hot > len(actors) {
		hot = len(actors)
	}
	idx := make([]int, len(actors))
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < hot; i++ {
		j := i + rng.Intn(len(actors)-i)
		idx[i], idx[j] = idx[j], idx[i]
		actors[idx[i]].EventsPerHour *= mult
	}
}

func applyTimezones(rng *rand.Rand, actors []*Actor, entries []TimezoneWeight, now time.Time) error {
	if len(entries) == 0 {
		return nil
	}
	offsets := make([]int, 0, len(entries))
	weights := make([]float64, 0, len(entries))
	total := 0.0
	for _, e := range entries {
		if e.Weight <= 0 || math.IsInf(e.Weight, 0) || math.IsNaN(e.Weight) {
			continue
		}
		offset, err := timezoneOffset(e.Name, now)
		if err != nil {
			return config.Errorf("population.timezone_distribution", "%v", err)
		}
		offsets = append(offsets, offset)
		weights = append(weights, e.Weight)
		total += e.Weight
	}
	if total <= 0 {
		return config.Errorf("population.timezone_distribution", "timezone weights sum to zero")
	}
	for _, a := range actors {
		if a.TimezoneFixed {
			continue
		}
		a.TimezoneOffset = offsets[pickWeighted(rng, weights)]
	}
	return nil
}

func timezoneOffset(name string, at time.Time) (int, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return 0, fmt.Errorf("timezone %q: %w", name, err)
	}
	_, seconds := at.In(loc).Zone()
	return int(math.Round(float64(seconds) / 3600)), nil
}

// pickWeighted draws an index proportional to weights. Callers must have
// validated that the weights sum to a positive value; ties and ordering are
// resolved by draw position, not input order.
func pickWeighted(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	r := rng.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

func pickAccount(rng *rand.Rand, accounts []string) string {
	if len(accounts) == 0 {
		return "000000000000"
	}
	return accounts[rng.Intn(len(accounts))]
}

func pickProfile(rng *rand.Rand, profiles []profileSpec, fallbackRate float64) profileSpec {
	if len(profiles) == 0 {
		return profileSpec{ProfileGeneric, 1, math.Max(0.1, fallbackRate), PatternConstant}
	}
	weights := make([]float64, len(profiles))
	for i, p := range profiles {
		weights[i] = p.weight
	}
	return profiles[pickWeighted(rng, weights)]
}

func pickHumanTimezone(rng *rand.Rand) int {
	roll := rng.Float64()
	switch {
	case roll < 0.5:
		return -8
	case roll < 0.8:
		return 0
	default:
		return 8
	}
}

func validRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDeveloper, RoleReadOnly, RoleAuditor:
		return true
	}
	return false
}

func validProfile(profile string) bool {
	switch profile {
	case ProfileGeneric, ProfileEC2Reaper, ProfileDataLakeBot, ProfileLogsShipper, ProfileMetricsCollector:
		return true
	}
	return false
}

func validPattern(p Pattern) bool {
	switch p {
	case PatternConstant, PatternDiurnal, PatternBursty:
		return true
	}
	return false
}

func validAccountID(id string) bool {
	if len(id) != 12 {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func cleanBias(bias map[string]float64) map[string]float64 {
	if len(bias) == 0 {
		return nil
	}
	out := make(map[string]float64, len(bias))
	for name, w := range bias {
		if name == "" || w <= 0 || math.IsInf(w, 0) || math.IsNaN(w) {
			continue
		}
		out[name] = w
	}
	return out
}

func clampedOr(v *float64, def, lo, hi float64) float64 {
	return clamp(valueOr(v, def), lo, hi)
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
