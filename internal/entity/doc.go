// Package entity implements the paginated entity store: named collections of
// JSON records kept in a types.KV, with an insertion-ordered index per
// collection, opaque resume cursors, idempotent deletes and one-time seeding.
//
// Key layout for a collection named "users":
//
//	users:index       {"version":N,"ids":["u1","u2",...]}
//	users:rec:<id>    the record payload
//
// Cursors are unsigned. Decoding rejects tokens that are malformed, belong to
// another collection or carry a non-positive offset or an empty anchor. A
// well-formed token whose anchor is not in the index cannot be told apart
// from a stale cursor whose anchor was deleted, so it resumes at its offset
// clamped to the end of the index: a forged far offset yields an empty last
// page, never an error and never records outside the collection.
//
// Index and record rewrites are read-modify-write. When the KV implements
// types.CompareAndSwapper the write is conditional and a lost race is
// re-applied to a fresh read; otherwise concurrent writers can lose an
// update (last writer wins on the index).
package entity
