// Package store implements the in-memory session registry: the "hot path"
// state for active conversations. It exclusively owns ConversationContext and
// Message lifetime; everything else references sessions by id and sees only
// value snapshots.
//
// Insert and delete of session keys are serialized by a single table-wide
// mutex. Mutations of fields inside one session assume a single logical
// writer per session (the coordinator drives one gate transition at a time);
// the registry does not maintain per-session locks. Delete is the only legal
// way a context leaves the registry, invoked after a terminal event.
//
// The registry is volatile by design. Finished conversations are persisted by
// the transcript recorder (write-at-end), not here.
package store
