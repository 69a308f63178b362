package domain

import "time"

// Audit event kinds
const (
	EventIdentityCreated = "identity.created"
	EventRequestSent     = "request.sent"
	EventRequestAccepted = "request.accepted"
	EventRequestDeclined = "request.declined"
	EventRecordCreated   = "record.created"
	EventFieldSet        = "field.set"
	EventFieldRenamed    = "field.renamed"
)

// AuditEvent is a best-effort trace of a social or progress mutation.
// Recording one never affects the outcome of the operation it traces;
// the document store stays the sole source of truth.
type AuditEvent struct {
	Kind      string                 `json:"kind"`
	ActorID   string                 `json:"actor_id"`
	SubjectID string                 `json:"subject_id,omitempty"`
	Field     string                 `json:"field,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
