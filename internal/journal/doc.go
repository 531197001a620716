// Package journal provides SQLite-backed durable storage for router and
// store activity.
//
// The journal is append-only and holds two logs:
//   - Navigations: one row per finished navigation with its outcome
//   - Mutations: one row per commit with its canonical payload and the
//     fingerprint of the state it produced
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Every
// query orders by seq ASC, id ASC COLLATE BINARY so reads are identical
// across runs.
//
// # Idempotency
//
// Mutation IDs are content-addressed (ir.MutationID) and navigation IDs
// come from the router. Writes use ON CONFLICT(id) DO NOTHING, so
// re-recording a replay does not duplicate rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package journal
