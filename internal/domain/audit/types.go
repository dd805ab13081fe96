// Package audit keeps an append-only log of dispatched tool invocations.
// Records are fed through the event bus so recording never sits on the
// dispatch hot path, and nothing in the request path ever reads them back.
package audit

import "time"

// TopicInvocation is the event bus topic the dispatcher publishes to.
const TopicInvocation = "tool.invocation"

// Outcome classifies how an invocation ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeTimeout Outcome = "timeout"
)

// Invocation is a single audit record. Immutable once created.
type Invocation struct {
	ID        string
	Tool      string
	Argv      []string
	Directory string
	Outcome   Outcome
	ExitCode  int
	Duration  time.Duration
	TimedOut  bool
	Detail    string // stderr excerpt or error text for failed invocations
	CreatedAt time.Time
}
