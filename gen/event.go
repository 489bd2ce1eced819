package gen

// Outcome is the coarse result classification carried in the envelope.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Actor identifies the principal an event is attributed to.
type Actor struct {
	ID   string  `json:"id"`
	Kind string  `json:"kind"`
	Name *string `json:"name"`
}

// Target identifies the resource acted upon, when the source reports one.
type Target struct {
	ID   string  `json:"id"`
	Kind string  `json:"kind"`
	Name *string `json:"name,omitempty"`
}

// Envelope is the source-independent header shared by all emitted events.
type Envelope struct {
	SchemaVersion string  `json:"schema_version"`
	Timestamp     string  `json:"timestamp"`
	Source        string  `json:"source"`
	EventType     string  `json:"event_type"`
	Actor         Actor   `json:"actor"`
	Target        *Target `json:"target"`
	Outcome       Outcome `json:"outcome"`
	IP            *string `json:"ip"`
	UserAgent     *string `json:"user_agent"`
	SessionID     *string `json:"session_id"`
	TenantID      *string `json:"tenant_id"`
}

// Event pairs the envelope with a source-specific payload.
//
// AccountID and Region are routing hints for the writer pipeline; they are
// duplicated inside the payload and excluded from serialization here.
type Event struct {
	Envelope Envelope `json:"envelope"`
	Payload  any      `json:"payload"`

	AccountID string `json:"-"`
	Region    string `json:"-"`
}
