package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidationFailed  = errors.New("validation_failed")
	ErrPersistenceFailed = errors.New("persistence_failed")
	ErrNotFound          = errors.New("source_not_found")
	ErrConflict          = errors.New("source_conflict")
)

// ValidationError carries per-field messages, keyed by wire field name.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], " ")))
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
