package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrGlobalTimeout means the fan-out deadline elapsed while collectors
	// were still pending. The whole request fails; nothing is cached.
	ErrGlobalTimeout = errors.New("context gathering exceeded the global deadline")

	// ErrEmptyQuery rejects queries that normalize to nothing.
	ErrEmptyQuery = errors.New("query text is empty")

	// ErrNoCollectors means the enablement map switched every collector off.
	ErrNoCollectors = errors.New("no collectors enabled")
)

// RequiredError is fatal: a collector marked required failed, timed out, or
// produced no content. Reason is redacted before construction.
type RequiredError struct {
	CollectorID string
	Reason      string
	Err         error
}

func (e *RequiredError) Error() string {
	return fmt.Sprintf("required collector %s: %s", e.CollectorID, e.Reason)
}

func (e *RequiredError) Unwrap() error { return e.Err }

// Warning records a non-required collector failure that was excluded from
// the payload instead of aborting the request.
type Warning struct {
	CollectorID string `json:"collector_id"`
	Reason      string `json:"reason"`
}
