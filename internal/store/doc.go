// Package store is the SQLite trace log of agent runs.
//
// A run records, per instantiation:
//   - Instantiations: production name, token key and match-goal level
//   - Events: fired, retracted and deallocated transitions
//   - Preferences: every preference the firing generated
//   - Backtrace edges: for each matched element, the instantiation whose
//     preference put it in memory
//
// Failed actions are logged alongside. Explain walks backtrace edges
// recursively to list the instantiations that justify a firing.
//
// # Ordering
//
// Events and failures share one logical sequence per run. Every ordered
// query sorts by seq, then by instantiation ID, so reads are identical
// across replays of the same rules and input.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
