// Package ptr provides helpers for the optional (pointer) fields used across
// domain types, update params and DTOs.
package ptr

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}

// Deref returns the value p points to, or def when p is nil.
func Deref[T any](p *T, def T) T {
	if p != nil {
		return *p
	}
	return def
}

// FromString returns nil for an empty string and a pointer to s otherwise.
// Used where the wire format treats "" as "not set".
func FromString[T ~string](s string) *T {
	if s == "" {
		return nil
	}
	v := T(s)
	return &v
}
