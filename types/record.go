package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RecordKind identifies the category of structured data a record carries.
// The kind determines which field schema, storage directory, and filename
// prefix apply.
type RecordKind string

const (
	KindOrder        RecordKind = "order"
	KindMealLog      RecordKind = "meal_log"
	KindFitnessGoal  RecordKind = "fitness_goal"
	KindHealthMetric RecordKind = "health_metric"
)

// Valid reports whether the kind is one of the known record kinds.
func (k RecordKind) Valid() bool {
	switch k {
	case KindOrder, KindMealLog, KindFitnessGoal, KindHealthMetric:
		return true
	}
	return false
}

// FieldType is the semantic type of a single record field.
type FieldType string

const (
	// FieldString is a plain string value.
	FieldString FieldType = "string"
	// FieldList is a comma-delimited list, normalized to []string.
	FieldList FieldType = "list"
	// FieldInt is an integer parsed strictly from the raw argument.
	FieldInt FieldType = "int"
	// FieldText is free text; unlike FieldString it may be empty.
	FieldText FieldType = "text"
)

// FieldSpec declares one datum of a record kind: its argument name, JSON
// key, semantic type, and an optional sentinel string that stands for
// deliberate absence ("none").
type FieldSpec struct {
	// Name is the tool argument name (snake_case, e.g. "drink_type").
	Name string `json:"name"`
	// JSONKey is the key used in the persisted document (camelCase).
	JSONKey string `json:"json_key"`
	// Type is the semantic field type.
	Type FieldType `json:"type"`
	// Sentinel, when non-empty, is matched case-insensitively against the
	// raw value. A sentinel list field normalizes to an empty list; a
	// sentinel scalar field stores the sentinel literal.
	Sentinel string `json:"sentinel,omitempty"`
	// Description is the natural-language hint the conversational driver
	// uses to decide what to ask the user.
	Description string `json:"description"`
	// Identifier marks the field whose value names the persisted file.
	Identifier bool `json:"identifier,omitempty"`
}

// Field is one normalized name/value pair of a record.
type Field struct {
	Key   string
	Value any
}

// Record is an ordered mapping from JSON key to normalized value, plus
// system metadata stamped at creation time. Once written a record is
// immutable; corrections are new records.
type Record struct {
	Kind      RecordKind
	CreatedAt time.Time

	// OriginKey/OriginValue form the static origin tag of the owning
	// application family, e.g. "shop" → "Brew Haven Coffee Shop".
	OriginKey   string
	OriginValue string

	fields []Field
}

// NewRecord creates an empty record of the given kind.
func NewRecord(kind RecordKind) *Record {
	return &Record{Kind: kind}
}

// Set appends a field, preserving insertion order. Setting an existing
// key replaces its value in place.
func (r *Record) Set(key string, value any) {
	for i := range r.fields {
		if r.fields[i].Key == key {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Key: key, Value: value})
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	for _, f := range r.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Fields returns the fields in insertion order.
func (r *Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Len returns the number of data fields (metadata excluded).
func (r *Record) Len() int { return len(r.fields) }

// Identifier returns the human identifier value stored under key, used
// for filename construction.
func (r *Record) Identifier(key string) string {
	v, ok := r.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// MarshalJSON serializes the record as a flat object with stable key
// ordering: data fields in schema order, then "timestamp", then the
// origin tag.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal field %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, f := range r.fields {
		if err := write(f.Key, f.Value); err != nil {
			return nil, err
		}
	}
	if err := write("timestamp", r.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if r.OriginKey != "" {
		if err := write(r.OriginKey, r.OriginValue); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
