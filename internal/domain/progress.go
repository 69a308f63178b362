package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValueKind discriminates the scalar kinds a progress field may hold.
type ValueKind int

const (
	KindNumber ValueKind = iota
	KindString
	KindBool
)

// Value is a tagged scalar: exactly one of number, string, or boolean.
// Progress fields have no schema, so a field may change kind across
// writes.
type Value struct {
	Kind   ValueKind
	Number float64
	Str    string
	Bool   bool
}

// NumberValue returns a numeric Value.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// MarshalJSON encodes the value as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Number)
	case KindString:
		return json.Marshal(v.Str)
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// UnmarshalJSON decodes a bare JSON scalar into a tagged value.
// Non-scalar JSON (null, object, array) is rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		*v = NumberValue(t)
	case string:
		*v = StringValue(t)
	case bool:
		*v = BoolValue(t)
	default:
		return ErrInvalidFieldValue
	}
	return nil
}

// String renders the value for logs and error messages.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case KindString:
		return v.Str
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return "<invalid>"
	}
}

// ProgressRecord is the schema-less field map of one game profile.
type ProgressRecord map[string]Value

// RecordMeta describes a progress record's fixed attributes, as opposed
// to its free-form fields.
type RecordMeta struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// LeaderboardEntry is a read-time projection joining a ranked progress
// record with its owner identity. It is never stored.
type LeaderboardEntry struct {
	Rank        int64          `json:"rank"`
	RecordID    string         `json:"record_id"`
	OwnerID     string         `json:"owner_id"`
	DisplayName string         `json:"display_name"`
	Profile     Profile        `json:"profile"`
	Score       float64        `json:"score"`
	Fields      ProgressRecord `json:"fields"`
}

// ProgressEvent is a progress-field update submitted through the
// ingestion pipeline.
type ProgressEvent struct {
	RecordID  string    `json:"record_id"`
	Field     string    `json:"field"`
	Value     Value     `json:"value"`
	EventType string    `json:"event_type,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
