// Package entra synthesizes Microsoft Entra ID sign-in and directory audit
// events in the Graph API shape: weighted event categories, conditional
// access and device detail on sign-ins, and typed target resources on audit
// activities.
package entra

// SignInStatus is the status element of a sign-in event.
type SignInStatus struct {
	AdditionalDetails string `json:"additionalDetails,omitempty"`
	ErrorCode         int    `json:"errorCode"`
	FailureReason     string `json:"failureReason,omitempty"`
}

// GeoCoordinates is the coordinate pair inside a sign-in location.
type GeoCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is the resolved sign-in location.
type Location struct {
	City            string         `json:"city"`
	State           string         `json:"state"`
	CountryOrRegion string         `json:"countryOrRegion"`
	GeoCoordinates  GeoCoordinates `json:"geoCoordinates"`
}

// DeviceDetail describes the device a sign-in came from.
type DeviceDetail struct {
	Browser         string `json:"browser"`
	DeviceID        string `json:"deviceId"`
	DisplayName     string `json:"displayName"`
	IsCompliant     *bool  `json:"isCompliant"`
	IsManaged       *bool  `json:"isManaged"`
	OperatingSystem string `json:"operatingSystem"`
	TrustType       string `json:"trustType,omitempty"`
}

// ConditionalAccessPolicy is one applied conditional-access policy.
type ConditionalAccessPolicy struct {
	DisplayName             string   `json:"displayName"`
	EnforcedGrantControls   []string `json:"enforcedGrantControls"`
	EnforcedSessionControls []string `json:"enforcedSessionControls"`
	ID                      string   `json:"id"`
	Result                  string   `json:"result"`
}

// SignInEvent is one Entra ID sign-in log entry.
type SignInEvent struct {
	ID                        string                    `json:"id"`
	CreatedDateTime           string                    `json:"createdDateTime"`
	AppDisplayName            string                    `json:"appDisplayName"`
	AppID                     string                    `json:"appId"`
	IPAddress                 string                    `json:"ipAddress"`
	ClientAppUsed             string                    `json:"clientAppUsed"`
	CorrelationID             string                    `json:"correlationId"`
	ConditionalAccessStatus   string                    `json:"conditionalAccessStatus"`
	AppliedCAPolicies         []ConditionalAccessPolicy `json:"appliedConditionalAccessPolicies"`
	IsInteractive             bool                      `json:"isInteractive"`
	DeviceDetail              DeviceDetail              `json:"deviceDetail"`
	Location                  Location                  `json:"location"`
	RiskDetail                string                    `json:"riskDetail"`
	RiskLevelAggregated       string                    `json:"riskLevelAggregated"`
	RiskLevelDuringSignIn     string                    `json:"riskLevelDuringSignIn"`
	RiskState                 string                    `json:"riskState"`
	RiskEventTypes            []string                  `json:"riskEventTypes"`
	ResourceDisplayName       string                    `json:"resourceDisplayName"`
	ResourceID                string                    `json:"resourceId"`
	Status                    SignInStatus              `json:"status"`
	UserDisplayName           string                    `json:"userDisplayName,omitempty"`
	UserID                    string                    `json:"userId,omitempty"`
	UserPrincipalName         string                    `json:"userPrincipalName,omitempty"`
}

// KeyValue is a generic key/value detail pair.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// UserIdentity identifies the human initiator of an audit activity.
type UserIdentity struct {
	DisplayName       string `json:"displayName"`
	ID                string `json:"id"`
	IPAddress         string `json:"ipAddress"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// AppIdentity identifies the application initiator of an audit activity.
type AppIdentity struct {
	AppID                string `json:"appId"`
	DisplayName          string `json:"displayName"`
	ServicePrincipalID   string `json:"servicePrincipalId"`
	ServicePrincipalName string `json:"servicePrincipalName"`
}

// Initiator is the initiatedBy element; exactly one side is set.
type Initiator struct {
	App  *AppIdentity  `json:"app"`
	User *UserIdentity `json:"user"`
}

// ModifiedProperty is one property change on a target resource.
type ModifiedProperty struct {
	DisplayName string `json:"displayName"`
	NewValue    string `json:"newValue,omitempty"`
	OldValue    string `json:"oldValue,omitempty"`
}

// TargetResource is the directory object an audit activity touched.
type TargetResource struct {
	ID                 string             `json:"id"`
	DisplayName        string             `json:"displayName"`
	Type               string             `json:"type"`
	UserPrincipalName  string             `json:"userPrincipalName,omitempty"`
	GroupType          string             `json:"groupType,omitempty"`
	ModifiedProperties []ModifiedProperty `json:"modifiedProperties"`
}

// AuditEvent is one Entra ID directory audit log entry.
type AuditEvent struct {
	ActivityDateTime    string           `json:"activityDateTime"`
	ActivityDisplayName string           `json:"activityDisplayName"`
	AdditionalDetails   []KeyValue       `json:"additionalDetails"`
	Category            string           `json:"category"`
	CorrelationID       string           `json:"correlationId"`
	ID                  string           `json:"id"`
	InitiatedBy         Initiator        `json:"initiatedBy"`
	LoggedByService     string           `json:"loggedByService"`
	OperationType       string           `json:"operationType"`
	Result              string           `json:"result"`
	ResultReason        string           `json:"resultReason,omitempty"`
	TargetResources     []TargetResource `json:"targetResources"`
}
