// Package types defines the KV and collection contracts, entity types, and
// standard errors for the ApexDraft backend.
//
// Storage backends implement KV; the entity layer builds paginated
// collections (users, chats) on top of it.
package types
