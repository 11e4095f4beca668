package transcript

import (
	"context"
	"sync"

	"github.com/hupe1980/supportmesh/bus"
	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/logging"
	"github.com/hupe1980/supportmesh/store"
)

// Writer persists the final snapshot of a finished conversation. Implemented
// in-memory here and by the postgres subpackage for durable storage.
type Writer interface {
	Write(ctx context.Context, snapshot core.Snapshot, endReason string) error
}

// Entry is one persisted conversation as kept by the MemoryWriter.
type Entry struct {
	Snapshot  core.Snapshot
	EndReason string
}

// MemoryWriter keeps finished conversations in memory. Useful for tests and
// for running without a database.
type MemoryWriter struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryWriter constructs an empty in-memory writer.
func NewMemoryWriter() *MemoryWriter { return &MemoryWriter{} }

// Write implements Writer.
func (w *MemoryWriter) Write(_ context.Context, snapshot core.Snapshot, endReason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, Entry{Snapshot: snapshot, EndReason: endReason})
	return nil
}

// Entries returns a copy of everything written so far.
func (w *MemoryWriter) Entries() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Logger logging.Logger
}

// Recorder finalizes conversations. It records agent replies into the live
// session, turns operator resolutions into conversation ends, and on
// CONVERSATION_END removes the session from the registry and persists its
// snapshot through the Writer.
type Recorder struct {
	bus    *bus.Bus
	store  *store.Store
	writer Writer
	logger logging.Logger
	subs   []*bus.Subscription

	mu    sync.Mutex
	saved int64
}

// NewRecorder constructs the recorder and subscribes it to the broker.
func NewRecorder(b *bus.Bus, s *store.Store, w Writer, optFns ...func(o *RecorderOptions)) *Recorder {
	opts := RecorderOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	r := &Recorder{bus: b, store: s, writer: w, logger: opts.Logger}
	r.subs = []*bus.Subscription{
		b.Subscribe(core.EventAgentResponse, r.handleAgentResponse),
		b.Subscribe(core.EventEscalationResolvedResult, r.handleResolved),
		b.Subscribe(core.EventConversationEnd, r.handleEnd),
	}
	return r
}

// Detach removes the recorder's subscriptions from the broker.
func (r *Recorder) Detach() {
	for _, sub := range r.subs {
		r.bus.Unsubscribe(sub)
	}
}

// Saved reports how many transcripts have been persisted.
func (r *Recorder) Saved() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved
}

// handleAgentResponse appends a downstream handler's reply to the session so
// the transcript contains both sides of the conversation. A reply marked
// final closes the conversation with reason RESOLVED_BY_AGENT.
func (r *Recorder) handleAgentResponse(event core.Event) error {
	payload, ok := event.Payload.(core.AgentResponsePayload)
	if !ok {
		r.logger.Warn("unexpected payload type", "event_type", event.Type)
		return nil
	}
	if err := payload.Validate(); err != nil {
		r.logger.Warn("malformed agent response", "error", err)
		return nil
	}
	agent := payload.Agent
	if agent == "" {
		agent = "UNKNOWN"
	}
	if _, ok := r.store.AddMessage(payload.SessionID, core.SenderAgent, payload.Text,
		core.WithAgentAction(agent, "respond", "success")); !ok {
		r.logger.Warn("agent response for unknown session", "session_id", payload.SessionID)
		return nil
	}
	if payload.Final {
		r.store.SetStatus(payload.SessionID, core.StatusResolved)
		r.bus.Publish(core.EventConversationEnd, core.ConversationEndPayload{
			SessionID: payload.SessionID,
			Reason:    "RESOLVED_BY_AGENT",
		})
	}
	return nil
}

// handleResolved marks the session resolved and ends the conversation. The
// end event then drives the normal finalize path.
func (r *Recorder) handleResolved(event core.Event) error {
	payload, ok := event.Payload.(core.EscalationResolvedResultPayload)
	if !ok {
		r.logger.Warn("unexpected payload type", "event_type", event.Type)
		return nil
	}
	if !r.store.SetStatus(payload.SessionID, core.StatusResolved) {
		r.logger.Warn("resolution for unknown session", "session_id", payload.SessionID)
		return nil
	}
	r.bus.Publish(core.EventConversationEnd, core.ConversationEndPayload{
		SessionID:  payload.SessionID,
		Reason:     "RESOLVED_BY_OPERATOR",
		OperatorID: payload.OperatorID,
	})
	return nil
}

// handleEnd evicts the session and persists its final snapshot.
func (r *Recorder) handleEnd(event core.Event) error {
	payload, ok := event.Payload.(core.ConversationEndPayload)
	if !ok {
		r.logger.Warn("unexpected payload type", "event_type", event.Type)
		return nil
	}
	if err := payload.Validate(); err != nil {
		r.logger.Warn("malformed conversation end", "error", err)
		return nil
	}

	ctx, ok := r.store.Delete(payload.SessionID)
	if !ok {
		r.logger.Warn("conversation end for unknown session", "session_id", payload.SessionID)
		return nil
	}
	snapshot := ctx.Snapshot()

	if err := r.writer.Write(context.Background(), snapshot, payload.Reason); err != nil {
		r.logger.Error("transcript write failed", "session_id", payload.SessionID, "error", err)
		return err
	}

	r.mu.Lock()
	r.saved++
	r.mu.Unlock()

	r.logger.Info("transcript saved", "session_id", payload.SessionID,
		"messages", len(snapshot.Messages), "reason", payload.Reason)

	r.bus.Publish(core.EventTranscriptSaved, core.TranscriptSavedPayload{
		SessionID:    payload.SessionID,
		MessageCount: len(snapshot.Messages),
		FinalStatus:  snapshot.Status,
	})
	return nil
}
