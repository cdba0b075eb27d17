// Package keyedstore is a conditional CRUD layer over partition (and optionally
// sort) keyed items.
//
// A Table is built from a Schema and a Backend. Every invariant that callers
// need to hold under concurrency is expressed as a single conditional Update:
// replacements, nested-path replacements and numeric increments are applied
// together, guarded by equality and comparison predicates. The Backend makes
// that request atomic; the package itself takes no locks across requests.
//
// Backends:
//   - MemoryBackend keeps items in process memory (tests, local runs).
//   - PostgresBackend stores each logical table as a JSONB document table and
//     serializes conditional updates with a row lock.
package keyedstore
