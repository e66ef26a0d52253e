// Package collector defines the contract for context collectors, the settled
// result of invoking one, and the registry that fixes their assembly order.
//
// A collector is an independently invokable unit of work: given a query it
// returns a text fragment or fails. Collectors never panic past their
// boundary and honor context cancellation promptly; everything else about
// their internals is their own business.
package collector

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/gatherd/internal/query"
)

// Collector produces one context fragment for a query.
type Collector interface {
	// ID returns the stable identifier used for enablement, ordering,
	// and section naming.
	ID() string

	// Collect returns the fragment text. An empty string with a nil error
	// means the collector had nothing to contribute.
	Collect(ctx context.Context, q query.Query) (string, error)
}

// Outcome classifies how a collector resolved for one run.
type Outcome int

const (
	// OutcomeOk means the collector returned text (possibly empty).
	OutcomeOk Outcome = iota

	// OutcomeErr means the collector failed.
	OutcomeErr

	// OutcomeTimeout means the collector exceeded its deadline.
	OutcomeTimeout
)

// String returns the outcome name for logs and error messages.
func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "ok"
	case OutcomeErr:
		return "error"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result is the settled resolution of one collector for one run. Exactly one
// Result is produced per launched collector; failures are carried as values,
// never as panics.
type Result struct {
	CollectorID string
	Outcome     Outcome
	Text        string
	Err         error
	Elapsed     time.Duration
}

// Settle classifies a collector return into a Result. Deadline expiry is
// reported as OutcomeTimeout; any other error as OutcomeErr.
func Settle(id, text string, err error, elapsed time.Duration) Result {
	r := Result{CollectorID: id, Text: text, Elapsed: elapsed}
	switch {
	case err == nil:
		r.Outcome = OutcomeOk
	case errors.Is(err, context.DeadlineExceeded):
		r.Outcome = OutcomeTimeout
		r.Err = err
	default:
		r.Outcome = OutcomeErr
		r.Err = err
	}
	return r
}

// Func adapts a plain function to the Collector interface. Used heavily in
// tests and for small inline collectors.
type Func struct {
	Name string
	Fn   func(ctx context.Context, q query.Query) (string, error)
}

// ID implements Collector.
func (f Func) ID() string { return f.Name }

// Collect implements Collector.
func (f Func) Collect(ctx context.Context, q query.Query) (string, error) {
	return f.Fn(ctx, q)
}
