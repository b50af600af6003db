// Package optional provides a tri-state value: absent, explicitly null, or set.
// The zero Value is absent, which lets partial-update structs distinguish a
// field that was omitted from one that was sent as null.
package optional

import (
	"bytes"
	"encoding/json"
)

type state uint8

const (
	absent state = iota
	null
	present
)

// Value holds an optional T.
type Value[T any] struct {
	v     T
	state state
}

// Some returns a set Value holding v.
func Some[T any](v T) Value[T] {
	return Value[T]{v: v, state: present}
}

// Null returns an explicitly null Value.
func Null[T any]() Value[T] {
	return Value[T]{state: null}
}

// IsSet reports whether the value was supplied at all, null included.
func (o Value[T]) IsSet() bool { return o.state != absent }

// IsNull reports whether the value was explicitly null.
func (o Value[T]) IsNull() bool { return o.state == null }

// HasValue reports whether a non-null value is present.
func (o Value[T]) HasValue() bool { return o.state == present }

// Get returns the value and whether it is present.
func (o Value[T]) Get() (T, bool) {
	return o.v, o.state == present
}

// OrElse returns the value when present, otherwise def.
func (o Value[T]) OrElse(def T) T {
	if o.state == present {
		return o.v
	}
	return def
}

// Ptr returns a pointer to a copy of the value, or nil when absent or null.
func (o Value[T]) Ptr() *T {
	if o.state != present {
		return nil
	}
	v := o.v
	return &v
}

// FromPtr converts a nullable pointer to a set Value: nil becomes Null.
func FromPtr[T any](p *T) Value[T] {
	if p == nil {
		return Null[T]()
	}
	return Some(*p)
}

// UnmarshalJSON is only invoked for keys present in the document, so a
// missing key leaves the Value absent.
func (o *Value[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.v = zero
		o.state = null
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.v = v
	o.state = present
	return nil
}

// MarshalJSON renders absent and null values as null.
func (o Value[T]) MarshalJSON() ([]byte, error) {
	if o.state != present {
		return []byte("null"), nil
	}
	return json.Marshal(o.v)
}
