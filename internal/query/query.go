// Package query defines the immutable request that drives a context-gathering
// run and the derivation of content-addressed cache keys from it.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Query is one user instruction plus the workspace it applies to.
// Construct it once per request and treat it as read-only afterward.
type Query struct {
	// RawText is the user's instruction exactly as received.
	RawText string

	// WorkingDir is the absolute path of the workspace the instruction
	// refers to. May be empty when the caller has no workspace.
	WorkingDir string
}

// New returns a Query for the given instruction and workspace.
func New(rawText, workingDir string) Query {
	return Query{RawText: rawText, WorkingDir: workingDir}
}

// Normalized returns the query text in canonical form: trimmed, lowercased,
// with internal whitespace runs collapsed to single spaces. Two requests
// that normalize identically are considered the same question for caching.
func (q Query) Normalized() string {
	return strings.Join(strings.Fields(strings.ToLower(q.RawText)), " ")
}

// Key derives the cache key for this query under the given external-state
// fingerprint. The key is a SHA-256 hex digest over the normalized text and
// the fingerprint, so it is deterministic, fixed-length, and changes whenever
// either the question or the observed repository state changes.
//
// The fingerprint deliberately captures only cheap state (see repostate);
// external changes it does not capture may be served stale for up to the
// cache TTL.
func (q Query) Key(fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(q.Normalized()))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// Empty reports whether the query carries no usable instruction text.
func (q Query) Empty() bool {
	return strings.TrimSpace(q.RawText) == ""
}
