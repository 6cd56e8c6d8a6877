package ai

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned before any network call when neither a
// per-call key nor the client fallback key is set.
var ErrMissingAPIKey = errors.New("openrouter: api key is required")

// UpstreamError is a failed provider call. Message carries the upstream
// error text when the provider sent one.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openrouter: status %d", e.Status)
	}
	return fmt.Sprintf("openrouter: %s", e.Message)
}
