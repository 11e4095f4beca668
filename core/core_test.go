package core

import (
	"testing"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent(EventNewUserMessage, "payload")
	if e.ID == "" || e.Type != EventNewUserMessage || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}
	if e.Payload.(string) != "payload" {
		t.Fatalf("payload not carried: %+v", e)
	}

	other := NewEvent(EventNewUserMessage, nil)
	if other.ID == e.ID {
		t.Fatal("expected unique event ids")
	}
}

func TestConversationContext_MessageHistory(t *testing.T) {
	c := NewConversationContext("s-1")
	if c.Status != StatusActive {
		t.Fatalf("new context must be ACTIVE, got %s", c.Status)
	}

	c.AddMessage(SenderUser, "first")
	c.AddMessage(SenderAgent, "reply")
	c.AddMessage(SenderUser, "second")

	history := c.UserMessageHistory()
	if len(history) != 2 || history[0] != "first" || history[1] != "second" {
		t.Fatalf("unexpected user history: %v", history)
	}

	if m := c.LastMessageBy(SenderUser); m == nil || m.Text != "second" {
		t.Fatalf("LastMessageBy(USER) = %+v", m)
	}
	if m := c.LastMessageBy(SenderAgent); m == nil || m.Text != "reply" {
		t.Fatalf("LastMessageBy(AGENT) = %+v", m)
	}
}

func TestConversationContext_AgentActionExtra(t *testing.T) {
	c := NewConversationContext("s-1")
	m := c.AddMessage(SenderAgent, "resolved", WithAgentAction("ORDER_TRACKING", "respond", "success"))

	if m.AgentAction["agent"] != "ORDER_TRACKING" || m.AgentAction["action"] != "respond" || m.AgentAction["status"] != "success" {
		t.Fatalf("unexpected agent action: %+v", m.AgentAction)
	}
	if c.Messages[0].AgentAction == nil {
		t.Fatalf("agent action not stored on the message")
	}
}

func TestConversationContext_LabelAttachment(t *testing.T) {
	c := NewConversationContext("s-1")
	c.AddMessage(SenderUser, "hello")
	c.AddMessage(SenderAgent, "hi")

	c.UpdateSentiment(SentimentNegative)
	c.UpdateIntent("track_order", 0.8)

	if c.CurrentSentiment != SentimentNegative || c.CurrentIntent != "track_order" {
		t.Fatalf("context labels not recorded: %+v", c)
	}
	if c.Messages[0].SentimentLabel != SentimentNegative || c.Messages[0].IntentLabel != "track_order" {
		t.Fatalf("labels must attach to the last user message: %+v", c.Messages[0])
	}
	if c.Messages[1].SentimentLabel != "" {
		t.Fatalf("agent message must stay unlabeled: %+v", c.Messages[1])
	}
}

func TestConversationContext_MergeEntities(t *testing.T) {
	c := NewConversationContext("s-1")
	c.AddMessage(SenderUser, "hello")

	c.MergeEntities(map[string]any{"order_id": "ORD-1", "email": "a@b.c"})
	c.MergeEntities(map[string]any{"order_id": "ORD-2"})
	c.MergeEntities(nil)

	if c.Entities["order_id"] != "ORD-2" {
		t.Fatalf("expected last write to win: %v", c.Entities)
	}
	if c.Entities["email"] != "a@b.c" {
		t.Fatalf("unrelated keys must survive: %v", c.Entities)
	}
	if c.Messages[0].Entities["order_id"] != "ORD-2" {
		t.Fatalf("entities must attach to the last user message: %v", c.Messages[0].Entities)
	}
}

func TestConversationContext_SnapshotIsDeepCopy(t *testing.T) {
	c := NewConversationContext("s-1")
	c.AddMessage(SenderUser, "hello")
	c.MergeEntities(map[string]any{"order_id": "ORD-1"})

	snap := c.Snapshot()
	snap.Messages[0].Text = "tampered"
	snap.Messages[0].Entities["order_id"] = "tampered"
	snap.Entities["order_id"] = "tampered"

	if c.Messages[0].Text != "hello" {
		t.Fatal("snapshot mutation leaked into message text")
	}
	if c.Messages[0].Entities["order_id"] != "ORD-1" {
		t.Fatal("snapshot mutation leaked into message entities")
	}
	if c.Entities["order_id"] != "ORD-1" {
		t.Fatal("snapshot mutation leaked into context entities")
	}
}

func TestConversationContext_Lifecycle(t *testing.T) {
	c := NewConversationContext("s-1")

	c.Escalate("NEGATIVE_SENTIMENT_ANGRY")
	if c.Status != StatusEscalated || c.EscalationReason != "NEGATIVE_SENTIMENT_ANGRY" {
		t.Fatalf("escalation not recorded: %+v", c)
	}

	c.Resolve()
	if c.Status != StatusResolved {
		t.Fatalf("resolve not recorded: %+v", c)
	}
}

func TestPayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload interface{ Validate() error }
		wantErr bool
	}{
		{"valid new message", NewMessagePayload{SessionID: "s", Text: "hi"}, false},
		{"new message missing text", NewMessagePayload{SessionID: "s"}, true},
		{"new message missing session", NewMessagePayload{Text: "hi"}, true},
		{"valid sentiment task", SentimentTaskPayload{SessionID: "s"}, false},
		{"sentiment task missing session", SentimentTaskPayload{}, true},
		{"valid sentiment result", SentimentResultPayload{SessionID: "s", Sentiment: SentimentNeutral}, false},
		{"sentiment result missing label", SentimentResultPayload{SessionID: "s"}, true},
		{"valid intent result", IntentResultPayload{SessionID: "s", Intent: "track_order"}, false},
		{"intent result missing intent", IntentResultPayload{SessionID: "s"}, true},
		{"valid escalate task", EscalateTaskPayload{SessionID: "s", Reason: "r"}, false},
		{"escalate task missing reason", EscalateTaskPayload{SessionID: "s"}, true},
		{"valid route task", RouteTaskPayload{Snapshot: Snapshot{SessionID: "s"}}, false},
		{"route task empty snapshot", RouteTaskPayload{}, true},
		{"valid operator available", OperatorAvailablePayload{OperatorID: "op"}, false},
		{"operator available missing id", OperatorAvailablePayload{}, true},
		{"valid resolution", EscalationResolvedPayload{SessionID: "s", OperatorID: "op"}, false},
		{"resolution missing operator", EscalationResolvedPayload{SessionID: "s"}, true},
		{"valid agent error", AgentErrorPayload{AgentName: "A", Error: "boom"}, false},
		{"agent error missing error", AgentErrorPayload{AgentName: "A"}, true},
		{"valid conversation end", ConversationEndPayload{SessionID: "s"}, false},
		{"conversation end missing session", ConversationEndPayload{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
