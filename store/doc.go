// Package store defines the composite persistence contract for Herald.
//
// Herald follows a composable store pattern: each subsystem defines its
// own store interface (dlq.Store, event.Journal) and a single backend
// implements all of them. Three backends ship with the engine:
//
//   - store/memory — in-memory maps, for tests and development
//   - store/redis — Redis hashes and sets, for ephemeral workloads
//   - store/postgres — pgx-backed tables, for durable dead letters
//
// The engine only ever sees the subsystem interfaces; pick a backend at
// wiring time and pass it where a dlq.Store or event.Journal is
// expected.
package store
