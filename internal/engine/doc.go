// Package engine implements the instantiation lifecycle of the production
// system.
//
// The match network reports token assertions and retractions. For each
// assertion the engine builds an instantiation: it captures the matched
// conditions with their backtrace traces, computes the match goal, runs
// the production's actions through the RHS evaluator, classifies the
// support of every resulting preference and installs the preferences in
// working memory. For each retraction it removes the instantiation's
// i-supported preferences and deallocates whatever is no longer needed.
//
// ARCHITECTURE:
//
// Instantiation states:
//
//	building -> in-match-set -> retracted -> pending-deletion -> deallocated
//
// An instantiation stays alive while it is in the match set or while it
// still owns preferences. A preference stays alive while it is installed in
// working memory or used as the trace of another instantiation's condition.
// Deallocation follows traces with an explicit worklist, so chains of any
// depth are torn down without recursion.
//
// CRITICAL PATTERNS:
//
// Single writer:
// The engine is not safe for concurrent use. One decision-cycle driver
// calls it between phases.
//
// Symbol ownership:
// Every structure that stores a symbol holds a reference on it and releases
// the reference when it is destroyed.
//
// Failures:
// A malformed action aborts only that action's preference. Lifecycle
// corruption panics with *InvariantError.
package engine
