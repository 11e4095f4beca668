package core

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser  Sender = "USER"
	SenderAgent Sender = "AGENT"
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusEscalated Status = "ESCALATED"
	StatusResolved  Status = "RESOLVED"
	StatusAbandoned Status = "ABANDONED"
)

// Sentiment labels produced by the sentiment collaborator.
const (
	SentimentPositive = "POSITIVE"
	SentimentNeutral  = "NEUTRAL"
	SentimentNegative = "NEGATIVE"
	SentimentAngry    = "ANGRY"
	SentimentUrgent   = "URGENT"
)

// Message is a single turn in a conversation. Messages are append-only within
// a session; the only legal mutation is attaching a label discovered after
// the message was recorded, and that always targets the most recent message
// of the matching sender.
type Message struct {
	Sender         Sender         `json:"sender"`
	Text           string         `json:"text"`
	Timestamp      time.Time      `json:"timestamp"`
	IntentLabel    string         `json:"intent_label,omitempty"`
	SentimentLabel string         `json:"sentiment_label,omitempty"`
	Entities       map[string]any `json:"entities,omitempty"`
	AgentAction    map[string]any `json:"agent_action,omitempty"`
}

// ConversationContext is the complete state of one active conversation. The
// registry exclusively owns instances of this type; other components see only
// Snapshot copies carried in event payloads.
//
// Field mutations assume a single logical writer per session (the coordinator
// drives one gate transition at a time); the registry serializes table-level
// insert/delete, not per-field writes.
type ConversationContext struct {
	SessionID     string    `json:"session_id"`
	StartTime     time.Time `json:"start_time"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CustomerID    string    `json:"customer_id,omitempty"`

	Status           Status  `json:"status"`
	CurrentSentiment string  `json:"current_sentiment,omitempty"`
	CurrentIntent    string  `json:"current_intent,omitempty"`
	IntentConfidence float64 `json:"intent_confidence,omitempty"`

	Messages []Message      `json:"messages"`
	Entities map[string]any `json:"entities"`
	Metadata map[string]any `json:"metadata,omitempty"`

	EscalationReason string `json:"escalation_reason,omitempty"`
	OperatorID       string `json:"operator_id,omitempty"`
}

// NewConversationContext creates an ACTIVE context for the given session id.
func NewConversationContext(sessionID string) *ConversationContext {
	return &ConversationContext{
		SessionID: sessionID,
		StartTime: time.Now().UTC(),
		Status:    StatusActive,
		Messages:  []Message{},
		Entities:  map[string]any{},
	}
}

// MessageExtra attaches optional metadata to a message at append time.
type MessageExtra func(m *Message)

// WithAgentAction records which agent authored the message and the outcome
// of the action that produced it.
func WithAgentAction(agent, action, status string) MessageExtra {
	return func(m *Message) {
		m.AgentAction = map[string]any{
			"agent":  agent,
			"action": action,
			"status": status,
		}
	}
}

// AddMessage appends a message and returns a pointer to the stored copy so
// the caller can attach labels discovered later in the same gate transition.
func (c *ConversationContext) AddMessage(sender Sender, text string, extras ...MessageExtra) *Message {
	c.Messages = append(c.Messages, Message{
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	m := &c.Messages[len(c.Messages)-1]
	for _, fn := range extras {
		fn(m)
	}
	return m
}

// LastMessageBy returns the most recent message authored by sender, or nil.
func (c *ConversationContext) LastMessageBy(sender Sender) *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Sender == sender {
			return &c.Messages[i]
		}
	}
	return nil
}

// UserMessageHistory returns the text of every user message in order.
func (c *ConversationContext) UserMessageHistory() []string {
	history := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Sender == SenderUser {
			history = append(history, m.Text)
		}
	}
	return history
}

// UpdateSentiment records the current sentiment and attaches the label to the
// most recent user message.
func (c *ConversationContext) UpdateSentiment(sentiment string) {
	c.CurrentSentiment = sentiment
	if m := c.LastMessageBy(SenderUser); m != nil {
		m.SentimentLabel = sentiment
	}
}

// UpdateIntent records the current intent and confidence and attaches the
// label to the most recent user message.
func (c *ConversationContext) UpdateIntent(intent string, confidence float64) {
	c.CurrentIntent = intent
	c.IntentConfidence = confidence
	if m := c.LastMessageBy(SenderUser); m != nil {
		m.IntentLabel = intent
	}
}

// MergeEntities merges entities last-write-wins into the context and attaches
// them to the most recent user message.
func (c *ConversationContext) MergeEntities(entities map[string]any) {
	if len(entities) == 0 {
		return
	}
	for k, v := range entities {
		c.Entities[k] = v
	}
	if m := c.LastMessageBy(SenderUser); m != nil {
		if m.Entities == nil {
			m.Entities = map[string]any{}
		}
		for k, v := range entities {
			m.Entities[k] = v
		}
	}
}

// Escalate marks the conversation escalated and records why.
func (c *ConversationContext) Escalate(reason string) {
	c.Status = StatusEscalated
	c.EscalationReason = reason
}

// Resolve marks the conversation resolved.
func (c *ConversationContext) Resolve() { c.Status = StatusResolved }

// Snapshot is an immutable value copy of a ConversationContext, safe to carry
// in event payloads and to hand to downstream handlers and persistence.
type Snapshot struct {
	SessionID        string         `json:"session_id"`
	StartTime        time.Time      `json:"start_time"`
	CustomerEmail    string         `json:"customer_email,omitempty"`
	CustomerID       string         `json:"customer_id,omitempty"`
	Status           Status         `json:"status"`
	CurrentSentiment string         `json:"current_sentiment,omitempty"`
	CurrentIntent    string         `json:"current_intent,omitempty"`
	IntentConfidence float64        `json:"intent_confidence,omitempty"`
	Messages         []Message      `json:"messages"`
	Entities         map[string]any `json:"entities"`
	EscalationReason string         `json:"escalation_reason,omitempty"`
	OperatorID       string         `json:"operator_id,omitempty"`
}

// Snapshot produces a deep value copy of the context.
func (c *ConversationContext) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:        c.SessionID,
		StartTime:        c.StartTime,
		CustomerEmail:    c.CustomerEmail,
		CustomerID:       c.CustomerID,
		Status:           c.Status,
		CurrentSentiment: c.CurrentSentiment,
		CurrentIntent:    c.CurrentIntent,
		IntentConfidence: c.IntentConfidence,
		Messages:         make([]Message, len(c.Messages)),
		Entities:         make(map[string]any, len(c.Entities)),
		EscalationReason: c.EscalationReason,
		OperatorID:       c.OperatorID,
	}
	copy(snap.Messages, c.Messages)
	for i := range snap.Messages {
		snap.Messages[i].Entities = copyMap(c.Messages[i].Entities)
		snap.Messages[i].AgentAction = copyMap(c.Messages[i].AgentAction)
	}
	for k, v := range c.Entities {
		snap.Entities[k] = v
	}
	return snap
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
