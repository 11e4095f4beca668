// Package coordinator implements the central gate state machine of the
// support workflow. The coordinator does not perform classification itself;
// it consumes workflow events, keeps the session registry current, applies
// the gate decisions, and publishes the follow-up task for the next stage.
//
// Gates per session:
//
//	NEW -> (gate 0) -> AWAITING_SENTIMENT -> (gate 1) -> AWAITING_INTENT
//	    -> (gate 2) -> ROUTED | ESCALATED
//
// The per-session state is not stored as a separate field: it is implied by
// ConversationContext.Status plus which classification result was last
// applied. Gate progression is causally ordered because each gate's publish
// is the direct trigger for the next; concurrent results for the same session
// are not fenced by a sequence number, so a stale result can overwrite a
// newer one. That matches the documented best-effort contract.
//
// Every failure path degrades to either a logged no-op (unknown session) or
// an escalation to a human; nothing in this package is fatal to the process.
package coordinator
