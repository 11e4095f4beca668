package supportmesh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/supportmesh/core"
)

func TestMesh_HappyPathRoutesToBusinessHandler(t *testing.T) {
	mesh := New()
	defer mesh.Close()

	var routed []core.RouteTaskPayload
	mesh.Bus().Subscribe(core.EventTaskHandleReturns, func(event core.Event) error {
		routed = append(routed, event.Payload.(core.RouteTaskPayload))
		return nil
	})

	mesh.SubmitMessage("s-1", "I want to return my laptop please", "jane@example.com")

	assert.Len(t, routed, 1)
	snap := routed[0].Snapshot
	assert.Equal(t, "s-1", snap.SessionID)
	assert.Equal(t, "process_return", snap.CurrentIntent)
	assert.Equal(t, "laptop", snap.Entities["product"])
	assert.Equal(t, core.StatusActive, snap.Status)

	stats := mesh.Stats()
	assert.Equal(t, int64(1), stats.Coordinator.MessagesProcessed)
	assert.Equal(t, int64(1), stats.Coordinator.SuccessfulRoutes)
	assert.Equal(t, int64(0), stats.Coordinator.Escalations)
}

func TestMesh_AngrySentimentEscalates(t *testing.T) {
	mesh := New()
	defer mesh.Close()

	mesh.SubmitMessage("s-1", "This is absolutely unacceptable, worst support ever!", "")

	snap, ok := mesh.Session("s-1")
	assert.True(t, ok)
	assert.Equal(t, core.StatusEscalated, snap.Status)

	status := mesh.Escalations().Status()
	assert.Equal(t, 1, status.QueueSize)
	assert.Equal(t, "s-1", status.Queue[0].SessionID)
}

func TestMesh_FullEscalationLifecycle(t *testing.T) {
	mesh := New()
	defer mesh.Close()

	mesh.SubmitMessage("s-1", "I hate this, nothing works!", "")
	assert.Equal(t, 1, mesh.Escalations().QueueSize())

	mesh.OperatorAvailable("op-1", "Dana")
	assert.Equal(t, 0, mesh.Escalations().QueueSize())

	mesh.ResolveEscalation("s-1", "op-1", "issued a refund")

	// Resolution ends the conversation and persists the transcript.
	_, ok := mesh.Session("s-1")
	assert.False(t, ok, "session evicted after resolution")

	stats := mesh.Stats()
	assert.Equal(t, int64(1), stats.Escalations.Resolved)
	assert.Equal(t, int64(1), stats.Transcripts)
	assert.Equal(t, int64(1), stats.Store.SessionsEnded)
}

func TestMesh_VagueMessageEscalatesOnLowConfidence(t *testing.T) {
	mesh := New()
	defer mesh.Close()

	mesh.SubmitMessage("s-1", "hmm, things", "")

	snap, ok := mesh.Session("s-1")
	assert.True(t, ok)
	assert.Equal(t, core.StatusEscalated, snap.Status)
	assert.Equal(t, "LOW_INTENT_CONFIDENCE", snap.EscalationReason)
	assert.Equal(t, "general_inquiry", snap.CurrentIntent)
}

func TestMesh_FinalAgentResponseEndsConversation(t *testing.T) {
	mesh := New()
	defer mesh.Close()

	mesh.Bus().Subscribe(core.EventTaskHandleOrderTracking, func(event core.Event) error {
		payload := event.Payload.(core.RouteTaskPayload)
		mesh.Bus().Publish(core.EventAgentResponse, core.AgentResponsePayload{
			SessionID: payload.Snapshot.SessionID,
			Text:      "Your order ships tomorrow.",
			Agent:     "ORDER_TRACKING",
			Final:     true,
		})
		return nil
	})

	mesh.SubmitMessage("s-1", "track my order please", "")

	_, ok := mesh.Session("s-1")
	assert.False(t, ok, "session evicted after a final agent response")
	assert.Equal(t, int64(1), mesh.Stats().Transcripts)
}

func TestMesh_MultiTurnConversation(t *testing.T) {
	mesh := New()
	defer mesh.Close()

	mesh.Bus().Subscribe(core.EventTaskHandleOrderTracking, func(event core.Event) error {
		payload := event.Payload.(core.RouteTaskPayload)
		mesh.Bus().Publish(core.EventAgentResponse, core.AgentResponsePayload{
			SessionID: payload.Snapshot.SessionID,
			Text:      "Your order ships tomorrow.",
			Agent:     "ORDER_TRACKING",
		})
		return nil
	})

	mesh.SubmitMessage("s-1", "track my order please", "")
	mesh.SubmitMessage("s-1", "has it shipped yet?", "")

	snap, ok := mesh.Session("s-1")
	assert.True(t, ok)
	// Two user turns, each answered by the handler.
	assert.Len(t, snap.Messages, 4)
	assert.Equal(t, core.SenderUser, snap.Messages[0].Sender)
	assert.Equal(t, core.SenderAgent, snap.Messages[1].Sender)

	mesh.EndConversation("s-1", "RESOLVED_BY_AGENT")
	_, ok = mesh.Session("s-1")
	assert.False(t, ok)
	assert.Equal(t, int64(1), mesh.Stats().Transcripts)
}
