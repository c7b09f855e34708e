package payment

import "encoding/json"

// Optional is a value that is either present or absent.
//
// Fields of this type are tagged `omitzero`, so an absent value never
// reaches the wire: the key is dropped instead of being sent as "" or 0.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an absent value. It is the same as the zero Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Optional[T]) OrElse(fallback T) T {
	if !o.set {
		return fallback
	}
	return o.value
}

func (o Optional[T]) IsSome() bool { return o.set }

// IsZero reports absence; encoding/json consults it for `omitzero`.
func (o Optional[T]) IsZero() bool { return !o.set }

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
