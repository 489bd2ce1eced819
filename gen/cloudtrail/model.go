// Package cloudtrail synthesizes AWS CloudTrail management events: a curated
// weighted catalog, role-conditioned event chains, and per-event payload
// templates matching the CloudTrail record format.
package cloudtrail

// Record is one CloudTrail management event as it appears in a trail.
type Record struct {
	EventVersion                 string         `json:"eventVersion"`
	EventTime                    string         `json:"eventTime"`
	EventSource                  string         `json:"eventSource"`
	EventName                    string         `json:"eventName"`
	AWSRegion                    string         `json:"awsRegion"`
	SourceIPAddress              string         `json:"sourceIPAddress"`
	UserAgent                    string         `json:"userAgent"`
	UserIdentity                 UserIdentity   `json:"userIdentity"`
	RequestParameters            map[string]any `json:"requestParameters,omitempty"`
	ResponseElements             map[string]any `json:"responseElements,omitempty"`
	RequestID                    string         `json:"requestID"`
	EventID                      string         `json:"eventID"`
	ReadOnly                     bool           `json:"readOnly"`
	EventType                    string         `json:"eventType"`
	ManagementEvent              bool           `json:"managementEvent"`
	RecipientAccountID           string         `json:"recipientAccountId"`
	EventCategory                string         `json:"eventCategory"`
	TLSDetails                   *TLSDetails    `json:"tlsDetails,omitempty"`
	SessionCredentialFromConsole bool           `json:"sessionCredentialFromConsole"`
	ErrorCode                    string         `json:"errorCode,omitempty"`
	ErrorMessage                 string         `json:"errorMessage,omitempty"`
}

// UserIdentity is the CloudTrail userIdentity element.
type UserIdentity struct {
	Type           string          `json:"type"`
	PrincipalID    string          `json:"principalId"`
	ARN            string          `json:"arn"`
	AccountID      string          `json:"accountId"`
	AccessKeyID    string          `json:"accessKeyId,omitempty"`
	UserName       string          `json:"userName,omitempty"`
	SessionContext *SessionContext `json:"sessionContext,omitempty"`
}

// SessionContext carries the temporary-credential attributes.
type SessionContext struct {
	Attributes SessionAttributes `json:"attributes"`
}

// SessionAttributes is the sessionContext.attributes element.
type SessionAttributes struct {
	CreationDate     string `json:"creationDate"`
	MFAAuthenticated string `json:"mfaAuthenticated"`
}

// TLSDetails is the connection metadata CloudTrail records per call.
type TLSDetails struct {
	TLSVersion               string `json:"tlsVersion"`
	CipherSuite              string `json:"cipherSuite"`
	ClientProvidedHostHeader string `json:"clientProvidedHostHeader"`
}
