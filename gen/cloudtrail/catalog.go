package cloudtrail

import (
	"github.com/seclog-dev/seclog/gen/catalog"
	"github.com/seclog-dev/seclog/gen/population"
)

// CuratedEvents is the default weighted table of management events. Weights
// are relative draw frequencies, tuned so storage and logging calls dominate
// while destructive operations stay rare.
func CuratedEvents() []catalog.WeightedEvent {
	return []catalog.WeightedEvent{
		{Name: "ConsoleLogin", Weight: 1.0},
		{Name: "AssumeRole", Weight: 0.8},
		{Name: "GetSessionToken", Weight: 0.6},
		{Name: "GetCallerIdentity", Weight: 0.6},
		{Name: "CreateUser", Weight: 0.3},
		{Name: "DeleteUser", Weight: 0.1},
		{Name: "CreateAccessKey", Weight: 0.2},
		{Name: "UpdateAccessKey", Weight: 0.2},
		{Name: "AttachRolePolicy", Weight: 0.2},
		{Name: "PutObject", Weight: 1.4},
		{Name: "GetObject", Weight: 1.6},
		{Name: "DeleteObject", Weight: 0.8},
		{Name: "CreateBucket", Weight: 0.3},
		{Name: "DeleteBucket", Weight: 0.1},
		{Name: "RunInstances", Weight: 0.4},
		{Name: "TerminateInstances", Weight: 0.2},
		{Name: "StartInstances", Weight: 0.3},
		{Name: "StopInstances", Weight: 0.3},
		{Name: "DescribeInstances", Weight: 0.9},
		{Name: "CreateSecurityGroup", Weight: 0.3},
		{Name: "AuthorizeSecurityGroupIngress", Weight: 0.4},
		{Name: "CreateLogGroup", Weight: 0.2},
		{Name: "PutLogEvents", Weight: 1.1},
		{Name: "CreateLogStream", Weight: 0.5},
		{Name: "DescribeLogStreams", Weight: 0.6},
		{Name: "Encrypt", Weight: 0.5},
		{Name: "Decrypt", Weight: 0.5},
		{Name: "GenerateDataKey", Weight: 0.4},
		{Name: "PutMetricData", Weight: 0.8},
		{Name: "GetMetricData", Weight: 0.8},
		{Name: "ListMetrics", Weight: 0.5},
	}
}

// Transitions returns the plausible next events for an actor given the last
// event in its session. Humans follow role-specific chains that open with a
// sign-in or role assumption; services skip interactive sign-ins entirely.
func Transitions(a *population.Actor, last string) []catalog.WeightedEvent {
	if a.Kind == population.KindService {
		return serviceCandidates(last)
	}
	switch a.Role {
	case population.RoleAdmin:
		return adminCandidates(last)
	case population.RoleReadOnly:
		return readonlyCandidates(last)
	case population.RoleAuditor:
		return auditorCandidates(last)
	default:
		return developerCandidates(last)
	}
}

func serviceCandidates(last string) []catalog.WeightedEvent {
	switch last {
	case "":
		return []catalog.WeightedEvent{
			{Name: "AssumeRole", Weight: 2.0},
			{Name: "GetCallerIdentity", Weight: 1.0},
			{Name: "PutLogEvents", Weight: 1.2},
		}
	case "AssumeRole", "GetCallerIdentity":
		return []catalog.WeightedEvent{
			{Name: "PutObject", Weight: 1.2},
			{Name: "GetObject", Weight: 1.2},
			{Name: "PutLogEvents", Weight: 1.6},
			{Name: "DescribeInstances", Weight: 0.6},
			{Name: "RunInstances", Weight: 0.2},
		}
	default:
		return []catalog.WeightedEvent{
			{Name: "PutLogEvents", Weight: 1.8},
			{Name: "GetObject", Weight: 1.1},
			{Name: "PutObject", Weight: 0.9},
			{Name: "DescribeInstances", Weight: 0.6},
		}
	}
}

func adminCandidates(last string) []catalog.WeightedEvent {
	switch last {
	case "":
		return []catalog.WeightedEvent{
			{Name: "ConsoleLogin", Weight: 3.0},
			{Name: "GetSessionToken", Weight: 1.0},
			{Name: "AssumeRole", Weight: 1.5},
			{Name: "GetCallerIdentity", Weight: 0.6},
		}
	case "ConsoleLogin":
		return []catalog.WeightedEvent{
			{Name: "GetSessionToken", Weight: 1.4},
			{Name: "AssumeRole", Weight: 2.5},
			{Name: "CreateUser", Weight: 0.6},
			{Name: "CreateAccessKey", Weight: 0.5},
			{Name: "AttachRolePolicy", Weight: 0.4},
		}
	case "AssumeRole":
		return []catalog.WeightedEvent{
			{Name: "CreateUser", Weight: 0.6},
			{Name: "AttachRolePolicy", Weight: 0.5},
			{Name: "UpdateAccessKey", Weight: 0.4},
			{Name: "DescribeInstances", Weight: 0.7},
		}
	default:
		return []catalog.WeightedEvent{
			{Name: "DescribeInstances", Weight: 0.8},
			{Name: "GetCallerIdentity", Weight: 0.6},
			{Name: "CreateSecurityGroup", Weight: 0.3},
			{Name: "AuthorizeSecurityGroupIngress", Weight: 0.3},
		}
	}
}

func developerCandidates(last string) []catalog.WeightedEvent {
	switch last {
	case "":
		return []catalog.WeightedEvent{
			{Name: "ConsoleLogin", Weight: 2.6},
			{Name: "GetSessionToken", Weight: 0.9},
			{Name: "AssumeRole", Weight: 1.8},
			{Name: "GetCallerIdentity", Weight: 0.5},
		}
	case "ConsoleLogin":
		return []catalog.WeightedEvent{
			{Name: "GetSessionToken", Weight: 1.2},
			{Name: "AssumeRole", Weight: 2.4},
			{Name: "RunInstances", Weight: 0.8},
			{Name: "CreateSecurityGroup", Weight: 0.6},
			{Name: "PutObject", Weight: 0.6},
		}
	case "AssumeRole":
		return []catalog.WeightedEvent{
			{Name: "RunInstances", Weight: 0.9},
			{Name: "DescribeInstances", Weight: 1.0},
			{Name: "PutObject", Weight: 1.0},
			{Name: "GetObject", Weight: 0.8},
		}
	default:
		return []catalog.WeightedEvent{
			{Name: "DescribeInstances", Weight: 1.0},
			{Name: "PutObject", Weight: 0.9},
			{Name: "GetObject", Weight: 0.8},
			{Name: "CreateLogGroup", Weight: 0.4},
		}
	}
}

func readonlyCandidates(last string) []catalog.WeightedEvent {
	switch last {
	case "":
		return []catalog.WeightedEvent{
			{Name: "ConsoleLogin", Weight: 2.8},
			{Name: "GetSessionToken", Weight: 0.7},
			{Name: "AssumeRole", Weight: 1.2},
			{Name: "GetCallerIdentity", Weight: 0.6},
		}
	case "ConsoleLogin":
		return []catalog.WeightedEvent{
			{Name: "GetSessionToken", Weight: 0.8},
			{Name: "DescribeInstances", Weight: 1.2},
			{Name: "GetObject", Weight: 1.0},
			{Name: "GetCallerIdentity", Weight: 0.6},
		}
	case "AssumeRole":
		return []catalog.WeightedEvent{
			{Name: "DescribeInstances", Weight: 1.2},
			{Name: "GetObject", Weight: 1.1},
			{Name: "GetCallerIdentity", Weight: 0.6},
		}
	default:
		return []catalog.WeightedEvent{
			{Name: "DescribeInstances", Weight: 1.2},
			{Name: "GetObject", Weight: 1.0},
			{Name: "GetCallerIdentity", Weight: 0.5},
		}
	}
}

func auditorCandidates(last string) []catalog.WeightedEvent {
	switch last {
	case "":
		return []catalog.WeightedEvent{
			{Name: "ConsoleLogin", Weight: 2.2},
			{Name: "GetSessionToken", Weight: 0.8},
			{Name: "AssumeRole", Weight: 1.4},
			{Name: "GetCallerIdentity", Weight: 0.8},
		}
	case "ConsoleLogin":
		return []catalog.WeightedEvent{
			{Name: "GetSessionToken", Weight: 0.9},
			{Name: "GetCallerIdentity", Weight: 0.9},
			{Name: "DescribeInstances", Weight: 0.9},
			{Name: "PutLogEvents", Weight: 1.2},
			{Name: "CreateLogGroup", Weight: 0.4},
		}
	case "AssumeRole":
		return []catalog.WeightedEvent{
			{Name: "PutLogEvents", Weight: 1.5},
			{Name: "DescribeInstances", Weight: 0.8},
			{Name: "GetObject", Weight: 0.6},
		}
	default:
		return []catalog.WeightedEvent{
			{Name: "PutLogEvents", Weight: 1.4},
			{Name: "DescribeInstances", Weight: 0.8},
			{Name: "GetCallerIdentity", Weight: 0.6},
		}
	}
}

// DefaultError is the built-in failure code/message per event type.
func DefaultError(name string) catalog.ErrorDetail {
	switch name {
	case "ConsoleLogin":
		return catalog.ErrorDetail{Code: "SigninFailure", Message: "Failed authentication"}
	case "GetSessionToken":
		return catalog.ErrorDetail{Code: "AccessDenied", Message: "Invalid MFA token"}
	case "AssumeRole":
		return catalog.ErrorDetail{Code: "AccessDenied", Message: "Not authorized to assume role"}
	case "RunInstances":
		return catalog.ErrorDetail{Code: "UnauthorizedOperation", Message: "Not authorized to perform operation"}
	default:
		return catalog.ErrorDetail{Code: "AccessDenied", Message: "Access denied"}
	}
}
