package entra

import (
	"github.com/seclog-dev/seclog/gen/catalog"
	"github.com/seclog-dev/seclog/gen/population"
)

// Category labels one side of the Entra log split.
type Category string

const (
	CategorySignIn Category = "signin"
	CategoryAudit  Category = "audit"
)

// SignInEvents is the curated sign-in log table.
func SignInEvents() []catalog.WeightedEvent {
	return []catalog.WeightedEvent{
		{Name: "SignIn", Weight: 1.0},
		{Name: "RefreshToken", Weight: 0.4},
		{Name: "DeviceCode", Weight: 0.2},
	}
}

// AuditEvents is the curated directory audit table.
func AuditEvents() []catalog.WeightedEvent {
	return []catalog.WeightedEvent{
		{Name: "AddUser", Weight: 0.8},
		{Name: "UpdateUser", Weight: 1.2},
		{Name: "DeleteUser", Weight: 0.2},
		{Name: "AddGroupMember", Weight: 0.9},
		{Name: "RemoveGroupMember", Weight: 0.4},
		{Name: "AddAppRoleAssignment", Weight: 0.6},
		{Name: "ResetPassword", Weight: 0.3},
		{Name: "UpdateConditionalAccess", Weight: 0.2},
	}
}

// CategoryOf classifies a curated event name.
func CategoryOf(name string) Category {
	switch name {
	case "SignIn", "RefreshToken", "DeviceCode":
		return CategorySignIn
	default:
		return CategoryAudit
	}
}

// Transitions chains Entra events within a session: a fresh session opens
// with an interactive sign-in, directory changes follow established
// sessions, and services skip interactive flows.
func Transitions(a *population.Actor, last string) []catalog.WeightedEvent {
	service := a.Kind == population.KindService

	if last == "" {
		if service {
			return []catalog.WeightedEvent{
				{Name: "SignIn", Weight: 2.0},
				{Name: "RefreshToken", Weight: 1.0},
			}
		}
		return []catalog.WeightedEvent{
			{Name: "SignIn", Weight: 3.0},
			{Name: "DeviceCode", Weight: 0.3},
		}
	}

	if CategoryOf(last) == CategorySignIn {
		if service {
			return []catalog.WeightedEvent{
				{Name: "RefreshToken", Weight: 1.2},
				{Name: "AddAppRoleAssignment", Weight: 0.5},
				{Name: "AddGroupMember", Weight: 0.4},
				{Name: "UpdateUser", Weight: 0.4},
			}
		}
		return []catalog.WeightedEvent{
			{Name: "RefreshToken", Weight: 0.8},
			{Name: "UpdateUser", Weight: 1.0},
			{Name: "AddGroupMember", Weight: 0.8},
			{Name: "AddUser", Weight: 0.6},
			{Name: "ResetPassword", Weight: 0.3},
		}
	}

	// Mid-session directory work, with occasional token refreshes.
	return []catalog.WeightedEvent{
		{Name: "UpdateUser", Weight: 1.2},
		{Name: "AddGroupMember", Weight: 0.9},
		{Name: "RemoveGroupMember", Weight: 0.4},
		{Name: "AddAppRoleAssignment", Weight: 0.6},
		{Name: "RefreshToken", Weight: 0.6},
		{Name: "UpdateConditionalAccess", Weight: 0.2},
	}
}

// DefaultError supplies the generic failure detail; sign-in templates
// replace it with a concrete AADSTS error code.
func DefaultError(name string) catalog.ErrorDetail {
	if CategoryOf(name) == CategorySignIn {
		return catalog.ErrorDetail{Code: "50126", Message: "Invalid username or password"}
	}
	return catalog.ErrorDetail{Code: "failure", Message: "Operation failed"}
}
