// Package enums holds the string enums shared by the database models, the
// HTTP layer and the outbox payloads. Each one mirrors a Postgres enum.
package enums

import "fmt"

// set is the closed list of values a string enum accepts.
type set[T ~string] []T

func (s set[T]) has(v T) bool {
	for _, candidate := range s {
		if candidate == v {
			return true
		}
	}
	return false
}

func (s set[T]) parse(raw, kind string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
