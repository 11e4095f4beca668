// Package core provides the foundational domain types shared by every
// SupportMesh component. It defines the core abstractions for:
//
//   - Events (immutable, typed records exchanged over the broker)
//   - Messages and ConversationContext (the per-session state owned by the
//     registry)
//   - Typed event payloads with boundary validation
//
// The package intentionally keeps implementation concerns (the broker, the
// registry, concrete agents) out of scope so that higher layers depend on a
// small, stable contract. Components never share mutable pointers; state
// crosses component boundaries only as Snapshot value copies carried in
// event payloads.
package core
