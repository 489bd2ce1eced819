package entra

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/seclog-dev/seclog/gen/catalog"
	"github.com/seclog-dev/seclog/gen/population"
)

// identity is the actor's Entra-side identity, derived once per emit from
// the durable actor traits plus the session's sticky attributes.
type identity struct {
	actor                *population.Actor
	tenantID             string
	tenantDomain         string
	userPrincipalName    string
	userDisplayName      string
	userID               string
	appID                string
	appDisplayName       string
	servicePrincipalID   string
	servicePrincipalName string
	ip                   string
	userAgent            string
}

func newIdentity(a *population.Actor, tenantID, tenantDomain, ip, userAgent string) identity {
	userName := a.UserName
	if userName == "" {
		userName = "user-" + strings.ToLower(a.PrincipalID)
	}
	appName := appDisplayName(a)
	id := identity{
		actor:                a,
		tenantID:             tenantID,
		tenantDomain:         tenantDomain,
		appID:                stableGUID(tenantID, a.AccessKeyID),
		appDisplayName:       appName,
		servicePrincipalID:   stableGUID(tenantID, a.PrincipalID+"-sp"),
		servicePrincipalName: strings.ReplaceAll(strings.ToLower(appName), " ", "") + "@" + strings.ToLower(tenantDomain),
		ip:                   ip,
		userAgent:            userAgent,
	}
	if a.Kind == population.KindHuman {
		id.userPrincipalName = strings.ToLower(userName) + "@" + strings.ToLower(tenantDomain)
		id.userDisplayName = strings.ToLower(userName)
		id.userID = stableGUID(tenantID, a.PrincipalID)
	}
	return id
}

func appDisplayName(a *population.Actor) string {
	if a.Kind == population.KindHuman {
		return "Microsoft 365"
	}
	switch a.ServiceProfile {
	case population.ProfileEC2Reaper:
		return "EC2 Reaper"
	case population.ProfileDataLakeBot:
		return "Datalake Bot"
	case population.ProfileLogsShipper:
		return "Logs Shipper"
	case population.ProfileMetricsCollector:
		return "Metrics Collector"
	default:
		return "Service Principal"
	}
}

var signInFailures = []SignInStatus{
	{ErrorCode: 50126, FailureReason: "Invalid username or password"},
	{ErrorCode: 50053, FailureReason: "Account is locked"},
	{ErrorCode: 50055, FailureReason: "Password expired"},
	{ErrorCode: 50057, FailureReason: "User account is disabled"},
	{ErrorCode: 50074, FailureReason: "Strong authentication is required"},
}

// buildSignIn renders one sign-in payload. A non-nil override carries an
// operator-configured failure code/message and wins over the built-in
// failure table.
func buildSignIn(rng *rand.Rand, id identity, name, eventTime string, failed bool, override *catalog.ErrorDetail) *SignInEvent {
	status := SignInStatus{AdditionalDetails: "MFA requirement satisfied"}
	if failed {
		status = signInFailures[rng.Intn(len(signInFailures))]
		status.AdditionalDetails = "Authentication failed"
		if override != nil {
			if code, err := strconv.Atoi(strings.TrimPrefix(override.Code, "AADSTS")); err == nil {
				status.ErrorCode = code
			}
			if override.Message != "" {
				status.FailureReason = override.Message
			}
		}
	}

	caStatus := "success"
	switch {
	case failed:
		caStatus = "failure"
	case rng.Float64() < 0.2:
		caStatus = "notApplied"
	}

	riskDetail := "none"
	if failed && rng.Float64() < 0.25 {
		riskDetail = "unfamiliarFeatures"
	}
	riskLevel, riskState := "none", "none"
	var riskEvents []string
	if riskDetail != "none" {
		riskLevel = "low"
		if rng.Float64() < 0.6 {
			riskLevel = "medium"
		}
		riskState = "atRisk"
		riskEvents = []string{riskDetail}
	}

	interactive := id.actor.Kind == population.KindHuman
	return &SignInEvent{
		ID:                      randomGUID(rng),
		CreatedDateTime:         eventTime,
		AppDisplayName:          id.appDisplayName,
		AppID:                   id.appID,
		IPAddress:               id.ip,
		ClientAppUsed:           clientAppUsed(rng, id.userAgent, interactive, name),
		CorrelationID:           randomGUID(rng),
		ConditionalAccessStatus: caStatus,
		AppliedCAPolicies:       appliedPolicies(rng, caStatus),
		IsInteractive:           interactive,
		DeviceDetail:            deviceDetail(rng, id.userAgent),
		Location:                locationFor(rng, id.actor.TimezoneOffset),
		RiskDetail:              riskDetail,
		RiskLevelAggregated:     riskLevel,
		RiskLevelDuringSignIn:   riskLevel,
		RiskState:               riskState,
		RiskEventTypes:          riskEvents,
		ResourceDisplayName:     id.appDisplayName,
		ResourceID:              id.appID,
		Status:                  status,
		UserDisplayName:         id.userDisplayName,
		UserID:                  id.userID,
		UserPrincipalName:       id.userPrincipalName,
	}
}

func buildAudit(rng *rand.Rand, id identity, activity, eventTime string, failed bool, override *catalog.ErrorDetail) *AuditEvent {
	result, reason := "success", ""
	if failed {
		result, reason = "failure", "Operation failed"
		if override != nil && override.Message != "" {
			reason = override.Message
		}
	}

	var initiator Initiator
	if id.actor.Kind == population.KindHuman {
		initiator.User = &UserIdentity{
			DisplayName:       id.userDisplayName,
			ID:                id.userID,
			IPAddress:         id.ip,
			UserPrincipalName: id.userPrincipalName,
		}
	} else {
		initiator.App = &AppIdentity{
			AppID:                id.appID,
			DisplayName:          id.appDisplayName,
			ServicePrincipalID:   id.servicePrincipalID,
			ServicePrincipalName: id.servicePrincipalName,
		}
	}

	return &AuditEvent{
		ActivityDateTime:    eventTime,
		ActivityDisplayName: activity,
		AdditionalDetails: []KeyValue{
			{Key: "activity", Value: activity},
			{Key: "client", Value: "seclog"},
		},
		Category:        auditCategory(activity),
		CorrelationID:   randomGUID(rng),
		ID:              randomGUID(rng),
		InitiatedBy:     initiator,
		LoggedByService: "Core Directory",
		OperationType:   auditOperation(activity),
		Result:          result,
		ResultReason:    reason,
		TargetResources: []TargetResource{targetFor(rng, activity, id.tenantDomain)},
	}
}

func clientAppUsed(rng *rand.Rand, userAgent string, interactive bool, name string) string {
	switch name {
	case "DeviceCode", "RefreshToken":
		return "Other clients"
	}
	if !interactive {
		return "Other clients"
	}
	if strings.Contains(userAgent, "Mobile") || strings.Contains(userAgent, "iPhone") {
		return "MobileAppsAndDesktopClients"
	}
	if rng.Float64() < 0.1 {
		return "Exchange ActiveSync"
	}
	return "Browser"
}

func deviceDetail(rng *rand.Rand, userAgent string) DeviceDetail {
	os, name := "Unknown", "Unknown Device"
	switch {
	case strings.Contains(userAgent, "Windows"):
		os, name = "Windows", "Windows Desktop"
	case strings.Contains(userAgent, "Mac OS"):
		os, name = "macOS", "MacBook Pro"
	case strings.Contains(userAgent, "Linux"):
		os, name = "Linux", "Linux Workstation"
	case strings.Contains(userAgent, "iPhone"):
		os, name = "iOS", "iPhone"
	}
	browser := "Unknown"
	switch {
	case strings.Contains(userAgent, "Chrome/"):
		browser = "Chrome"
	case strings.Contains(userAgent, "Firefox/"):
		browser = "Firefox"
	case strings.Contains(userAgent, "Safari/"):
		browser = "Safari"
	}

	managed := rng.Float64() < 0.5
	compliant := managed && rng.Float64() < 0.7
	trust := ""
	if managed {
		trust = "AzureAD"
	} else if rng.Float64() < 0.2 {
		trust = "HybridAzureADJoined"
	}
	return DeviceDetail{
		Browser:         browser,
		DeviceID:        randomGUID(rng),
		DisplayName:     name,
		IsCompliant:     &compliant,
		IsManaged:       &managed,
		OperatingSystem: os,
		TrustType:       trust,
	}
}

func locationFor(rng *rand.Rand, offset int) Location {
	switch offset {
	case -8:
		return location("Seattle", "WA", "US", 47.6062, -122.3321)
	case 0:
		return location("London", "London", "GB", 51.5074, -0.1278)
	case 8:
		return location("Singapore", "Singapore", "SG", 1.3521, 103.8198)
	}
	if rng.Float64() < 0.5 {
		return location("New York", "NY", "US", 40.7128, -74.0060)
	}
	return location("Frankfurt", "Hesse", "DE", 50.1109, 8.6821)
}

func location(city, state, country string, lat, lon float64) Location {
	return Location{
		City:            city,
		State:           state,
		CountryOrRegion: country,
		GeoCoordinates:  GeoCoordinates{Latitude: lat, Longitude: lon},
	}
}

func appliedPolicies(rng *rand.Rand, status string) []ConditionalAccessPolicy {
	if status == "notApplied" {
		return nil
	}
	result := "success"
	if status == "failure" {
		result = "failure"
	} else if rng.Float64() < 0.2 {
		result = "notApplied"
	}
	return []ConditionalAccessPolicy{{
		DisplayName:             "Require MFA",
		EnforcedGrantControls:   []string{"mfa"},
		EnforcedSessionControls: []string{},
		ID:                      stableGUID("cap", "mfa"),
		Result:                  result,
	}}
}

func targetFor(rng *rand.Rand, activity, tenantDomain string) TargetResource {
	resType, prefix, property := "DirectoryObject", "object", "displayName"
	switch activity {
	case "AddUser", "UpdateUser", "DeleteUser", "ResetPassword":
		resType, prefix, property = "User", "user", "accountEnabled"
	case "AddGroupMember", "RemoveGroupMember":
		resType, prefix, property = "Group", "group", "members"
	case "AddAppRoleAssignment":
		resType, prefix, property = "ServicePrincipal", "app", "appRoleAssignment"
	case "UpdateConditionalAccess":
		resType, prefix, property = "ConditionalAccessPolicy", "policy", "state"
	}

	displayName := fmt.Sprintf("%s-%d", prefix, 1000+rng.Intn(9000))
	target := TargetResource{
		ID:                 stableGUID(resType, displayName),
		DisplayName:        displayName,
		Type:               resType,
		ModifiedProperties: []ModifiedProperty{},
	}
	if resType == "User" {
		target.UserPrincipalName = strings.ReplaceAll(displayName, "-", "") + "@" + strings.ToLower(tenantDomain)
	}
	if resType == "Group" {
		target.GroupType = "Unified"
	}
	if strings.HasPrefix(activity, "Update") || activity == "ResetPassword" {
		target.ModifiedProperties = []ModifiedProperty{{
			DisplayName: property,
			OldValue:    "previous",
			NewValue:    "updated",
		}}
	}
	return target
}

func auditCategory(activity string) string {
	switch activity {
	case "AddUser", "UpdateUser", "DeleteUser", "ResetPassword":
		return "UserManagement"
	case "AddGroupMember", "RemoveGroupMember":
		return "GroupManagement"
	case "AddAppRoleAssignment":
		return "AppManagement"
	case "UpdateConditionalAccess":
		return "Policy"
	default:
		return "Other"
	}
}

func auditOperation(activity string) string {
	switch activity {
	case "AddUser", "AddGroupMember", "AddAppRoleAssignment":
		return "Add"
	case "RemoveGroupMember":
		return "Remove"
	case "DeleteUser":
		return "Delete"
	case "ResetPassword":
		return "Reset"
	case "UpdateUser", "UpdateConditionalAccess":
		return "Update"
	default:
		return "Other"
	}
}

// stableGUID derives a deterministic GUID from (namespace-ish seed, salt),
// so the same principal always maps to the same Entra object id.
func stableGUID(seed, salt string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed+"\x00"+salt)).String()
}

func randomGUID(rng *rand.Rand) string {
	return uuid.Must(uuid.NewRandomFromReader(rng)).String()
}
