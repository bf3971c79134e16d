package api

import (
	"encoding/json"
	"fmt"
)

// Subject is the opaque key/value identity of the artifact a test result
// pertains to. Two subjects are equal when their canonical serializations
// are byte-identical, regardless of key insertion order.
type Subject map[string]any

// Canonical returns the canonical JSON serialization of the subject.
// encoding/json sorts map keys lexicographically at every nesting level,
// which makes the output deterministic for any key order in the input.
// The canonical form is what the store indexes and compares on.
func (s Subject) Canonical() ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("subject is nil")
	}
	return json.Marshal(map[string]any(s))
}

// Key returns the canonical serialization as a string, suitable for use
// as a grouping key. Panics only if the subject contains values that
// cannot be represented as JSON, which validation rejects earlier.
func (s Subject) Key() string {
	b, err := s.Canonical()
	if err != nil {
		return ""
	}
	return string(b)
}

// Equal reports whether two subjects are deeply equal, independent of
// key order.
func (s Subject) Equal(other Subject) bool {
	if s == nil && other == nil {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if len(s) != len(other) {
		return false
	}
	a, errA := s.Canonical()
	b, errB := other.Canonical()
	if errA != nil || errB != nil {
		return false
	}
	return string(a) == string(b)
}

// ParseSubject decodes a JSON object into a Subject. Anything other than
// a JSON object is rejected.
func ParseSubject(data []byte) (Subject, error) {
	var s Subject
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("subject must be a JSON object: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("subject must be a JSON object")
	}
	return s, nil
}
