package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("payment not found")

// ValidationError maps request fields to human readable problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ProviderError reports a purchase PayWay did not accept. StatusCode is 0 when no response arrived.
type ProviderError struct {
	StatusCode int
	Detail     string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("payment provider unavailable: %s", e.Detail)
	}
	return fmt.Sprintf("payment provider rejected purchase (status %d): %s", e.StatusCode, e.Detail)
}
