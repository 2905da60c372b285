package domain

import "encoding/json"

// Opt is a three-state optional for partial updates. A field is either
// absent (leave the column unchanged), explicit null (clear it), or a
// value. The zero value is the absent state.
type Opt[T any] struct {
	Defined bool
	Null    bool
	Value   T
}

// Some returns a defined Opt carrying v.
func Some[T any](v T) Opt[T] { return Opt[T]{Defined: true, Value: v} }

// Null returns a defined Opt in the explicit-null state.
func Null[T any]() Opt[T] { return Opt[T]{Defined: true, Null: true} }

// IsZero reports the absent state, so omitzero JSON tags drop the field.
func (o Opt[T]) IsZero() bool { return !o.Defined }

// HasValue reports whether o carries a concrete value.
func (o Opt[T]) HasValue() bool { return o.Defined && !o.Null }

// UnmarshalJSON is invoked only for keys present in the payload, which is
// what distinguishes absence from explicit null.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	o.Defined = true
	if string(data) == "null" {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Defined || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
