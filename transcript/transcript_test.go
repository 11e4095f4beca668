package transcript

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/supportmesh/bus"
	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/store"
)

func TestRecorder_SavesTranscriptOnConversationEnd(t *testing.T) {
	b := bus.New()
	s := store.New()
	w := NewMemoryWriter()
	r := NewRecorder(b, s, w)
	defer r.Detach()

	var saved []core.TranscriptSavedPayload
	b.Subscribe(core.EventTranscriptSaved, func(event core.Event) error {
		saved = append(saved, event.Payload.(core.TranscriptSavedPayload))
		return nil
	})

	s.GetOrCreate("s-1", store.Attrs{CustomerEmail: "jane@example.com"})
	s.AddMessage("s-1", core.SenderUser, "where is my order?")
	s.SetStatus("s-1", core.StatusResolved)

	b.Publish(core.EventConversationEnd, core.ConversationEndPayload{
		SessionID: "s-1",
		Reason:    "RESOLVED_BY_AGENT",
	})

	entries := w.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "s-1", entries[0].Snapshot.SessionID)
	assert.Equal(t, "RESOLVED_BY_AGENT", entries[0].EndReason)
	assert.Len(t, entries[0].Snapshot.Messages, 1)

	assert.Equal(t, 0, s.Count(), "session evicted from the registry")
	assert.Equal(t, int64(1), r.Saved())

	assert.Len(t, saved, 1)
	assert.Equal(t, 1, saved[0].MessageCount)
	assert.Equal(t, core.StatusResolved, saved[0].FinalStatus)
}

func TestRecorder_AgentResponseJoinsTranscript(t *testing.T) {
	b := bus.New()
	s := store.New()
	r := NewRecorder(b, s, NewMemoryWriter())
	defer r.Detach()

	s.GetOrCreate("s-1", store.Attrs{})
	s.AddMessage("s-1", core.SenderUser, "where is my order?")

	b.Publish(core.EventAgentResponse, core.AgentResponsePayload{
		SessionID: "s-1",
		Text:      "It ships tomorrow.",
		Agent:     "ORDER_TRACKING",
	})

	snap, ok := s.Snapshot("s-1")
	assert.True(t, ok)
	assert.Len(t, snap.Messages, 2)
	assert.Equal(t, core.SenderAgent, snap.Messages[1].Sender)
	assert.Equal(t, "It ships tomorrow.", snap.Messages[1].Text)
	assert.Equal(t, map[string]any{
		"agent":  "ORDER_TRACKING",
		"action": "respond",
		"status": "success",
	}, snap.Messages[1].AgentAction)
}

func TestRecorder_FinalAgentResponseEndsConversation(t *testing.T) {
	b := bus.New()
	s := store.New()
	w := NewMemoryWriter()
	r := NewRecorder(b, s, w)
	defer r.Detach()

	s.GetOrCreate("s-1", store.Attrs{})
	s.AddMessage("s-1", core.SenderUser, "where is my order?")

	b.Publish(core.EventAgentResponse, core.AgentResponsePayload{
		SessionID: "s-1",
		Text:      "It shipped yesterday, arriving tomorrow. Anything else?",
		Agent:     "ORDER_TRACKING",
		Final:     true,
	})

	_, ok := s.Snapshot("s-1")
	assert.False(t, ok, "session evicted after a final agent response")

	entries := w.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "RESOLVED_BY_AGENT", entries[0].EndReason)
	assert.Equal(t, core.StatusResolved, entries[0].Snapshot.Status)
	assert.Len(t, entries[0].Snapshot.Messages, 2)
	assert.Equal(t, int64(1), r.Saved())
}

func TestRecorder_ResolutionEndsConversation(t *testing.T) {
	b := bus.New()
	s := store.New()
	w := NewMemoryWriter()
	r := NewRecorder(b, s, w)
	defer r.Detach()

	s.GetOrCreate("s-1", store.Attrs{})
	s.Escalate("s-1", "NEGATIVE_SENTIMENT_ANGRY")

	b.Publish(core.EventEscalationResolvedResult, core.EscalationResolvedResultPayload{
		SessionID:        "s-1",
		OperatorID:       "op-1",
		TotalTimeSeconds: 120,
	})

	entries := w.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, core.StatusResolved, entries[0].Snapshot.Status)
	assert.Equal(t, "RESOLVED_BY_OPERATOR", entries[0].EndReason)
	assert.Equal(t, 0, s.Count())
}

func TestRecorder_UnknownSessionIsNoOp(t *testing.T) {
	b := bus.New()
	s := store.New()
	w := NewMemoryWriter()
	r := NewRecorder(b, s, w)
	defer r.Detach()

	b.Publish(core.EventConversationEnd, core.ConversationEndPayload{SessionID: "ghost", Reason: "TIMEOUT"})
	b.Publish(core.EventAgentResponse, core.AgentResponsePayload{SessionID: "ghost", Text: "hi", Final: true})
	b.Publish(core.EventEscalationResolvedResult, core.EscalationResolvedResultPayload{SessionID: "ghost", OperatorID: "op-1"})

	assert.Empty(t, w.Entries())
	assert.Equal(t, int64(0), r.Saved())
}

type failingWriter struct{}

func (failingWriter) Write(context.Context, core.Snapshot, string) error {
	return errors.New("disk full")
}

func TestRecorder_WriterFailureIsCounted(t *testing.T) {
	b := bus.New()
	s := store.New()
	r := NewRecorder(b, s, failingWriter{})
	defer r.Detach()

	s.GetOrCreate("s-1", store.Attrs{})

	b.Publish(core.EventConversationEnd, core.ConversationEndPayload{SessionID: "s-1", Reason: "TIMEOUT"})

	assert.Equal(t, int64(0), r.Saved())
	assert.Equal(t, int64(1), b.Stats().Errors, "writer failure surfaces as a handler error")
}
