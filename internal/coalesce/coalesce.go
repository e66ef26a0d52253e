// Package coalesce deduplicates concurrent identical units of work so that N
// simultaneous callers asking for the same (operation, args) trigger exactly
// one execution and all observe its outcome.
package coalesce

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Group coalesces concurrent calls that share a signature. The zero value is
// ready to use. Pending entries are removed as soon as the underlying call
// completes, before results are delivered, so a later call with the same
// signature executes fresh rather than reusing a settled result.
type Group struct {
	sf singleflight.Group

	calls      atomic.Int64
	executions atomic.Int64
}

// Signature builds the canonical key for an operation and its arguments.
// Map keys are encoded in sorted order, so two argument maps with equal
// contents always produce the same signature.
func Signature(operation string, args map[string]string) string {
	if len(args) == 0 {
		return operation + "()"
	}
	// encoding/json sorts map keys, which makes the encoding canonical.
	b, err := json.Marshal(args)
	if err != nil {
		// map[string]string cannot fail to marshal; keep the operation
		// distinct anyway.
		return operation + "(?)"
	}
	return operation + "(" + string(b) + ")"
}

// Do executes fn for the given (operation, args) signature, or attaches to an
// in-flight execution with the same signature and returns its outcome.
// shared is true when the result was produced by one execution serving more
// than one caller.
//
// The context passed by the caller that initiates the execution governs the
// underlying call; later callers that find the work already in flight can
// still abandon their wait through their own ctx without cancelling it.
func (g *Group) Do(ctx context.Context, operation string, args map[string]string, fn func(context.Context) (string, error)) (value string, shared bool, err error) {
	key := Signature(operation, args)

	ch := g.sf.DoChan(key, func() (interface{}, error) {
		g.executions.Add(1)
		return fn(ctx)
	})
	// Counted after DoChan so that a caller visible in Calls() is already
	// attached to its flight.
	g.calls.Add(1)

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Shared, res.Err
		}
		v, _ := res.Val.(string)
		return v, res.Shared, nil
	}
}

// Calls returns how many times Do has been invoked.
func (g *Group) Calls() int64 { return g.calls.Load() }

// Executions returns how many underlying calls actually ran.
func (g *Group) Executions() int64 { return g.executions.Load() }

// Dedups returns how many callers attached to an execution they did not
// initiate.
func (g *Group) Dedups() int64 { return g.calls.Load() - g.executions.Load() }
