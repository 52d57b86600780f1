// Package payload reads fields out of schema-less JSON objects without
// assuming their presence or type.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
)

// State describes the outcome of a single field lookup.
type State int

const (
	Absent State = iota
	Mismatch
	Present
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Mismatch:
		return "mismatched type"
	case Present:
		return "present"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var ErrRequiredField = errors.New("required field")

// FieldError reports a required field that was absent or had the wrong type.
type FieldError struct {
	Field string
	State State
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("required field %q is %s", e.Field, e.State)
}

func (e *FieldError) Unwrap() error {
	return ErrRequiredField
}

type Value[T any] struct {
	V     T
	State State
}

func (v Value[T]) Get() (T, bool) {
	return v.V, v.State == Present
}

func (v Value[T]) Or(def T) T {
	if v.State == Present {
		return v.V
	}

	return def
}

// Require returns the value or a *FieldError naming field.
func (v Value[T]) Require(field string) (T, error) {
	if v.State != Present {
		var zero T
		return zero, &FieldError{Field: field, State: v.State}
	}

	return v.V, nil
}

// Object is a decoded JSON object.
type Object map[string]any

// Decode parses raw JSON. ok is false when the document is valid JSON but
// not an object.
func Decode(raw []byte) (Object, bool, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("decoding payload: %w", err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, false, nil
	}

	return Object(obj), true, nil
}

func (o Object) lookup(key string) (any, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, false
	}

	return v, true
}

func (o Object) String(key string) Value[string] {
	v, ok := o.lookup(key)
	if !ok {
		return Value[string]{State: Absent}
	}

	s, ok := v.(string)
	if !ok {
		return Value[string]{State: Mismatch}
	}

	return Value[string]{V: s, State: Present}
}

func (o Object) Object(key string) Value[Object] {
	v, ok := o.lookup(key)
	if !ok {
		return Value[Object]{State: Absent}
	}

	m, ok := v.(map[string]any)
	if !ok {
		return Value[Object]{State: Mismatch}
	}

	return Value[Object]{V: Object(m), State: Present}
}
