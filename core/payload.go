package core

import "fmt"

// Each event type carries exactly one payload struct. Handlers assert the
// concrete type at their boundary and validate required fields there; the
// broker never looks inside. A missing required field is a malformed payload
// and is reported as an AGENT_ERROR event, never a crash.

// ErrMissingField reports a required payload field that was absent or empty.
func errMissingField(event EventType, field string) error {
	return fmt.Errorf("%s payload: missing required field %q", event, field)
}

// NewMessagePayload enters the workflow from the gateway.
type NewMessagePayload struct {
	SessionID     string `json:"session_id"`
	Text          string `json:"text"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

func (p NewMessagePayload) Validate() error {
	if p.SessionID == "" {
		return errMissingField(EventNewUserMessage, "session_id")
	}
	if p.Text == "" {
		return errMissingField(EventNewUserMessage, "text")
	}
	return nil
}

// SentimentTaskPayload asks the sentiment collaborator for a label.
type SentimentTaskPayload struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (p SentimentTaskPayload) Validate() error {
	if p.SessionID == "" {
		return errMissingField(EventTaskRecognizeSentiment, "session_id")
	}
	return nil
}

// SentimentResultPayload is the gate 1 input.
type SentimentResultPayload struct {
	SessionID  string         `json:"session_id"`
	Sentiment  string         `json:"sentiment"`
	Confidence float64        `json:"confidence,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

func (p SentimentResultPayload) Validate() error {
	if p.SessionID == "" {
		return errMissingField(EventSentimentRecognized, "session_id")
	}
	if p.Sentiment == "" {
		return errMissingField(EventSentimentRecognized, "sentiment")
	}
	return nil
}

// IntentTaskPayload asks the intent collaborator for a classification. It
// carries the last user message plus the prior user-message history so the
// collaborator can use conversational context.
type IntentTaskPayload struct {
	SessionID string   `json:"session_id"`
	Text      string   `json:"text"`
	History   []string `json:"conversation_history,omitempty"`
}

func (p IntentTaskPayload) Validate() error {
	if p.SessionID == "" {
		return errMissingField(EventTaskRecognizeIntent, "session_id")
	}
	return nil
}

// IntentResultPayload is the gate 2 input.
type IntentResultPayload struct {
	SessionID  string         `json:"session_id"`
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities,omitempty"`
}

func (p IntentResultPayload) Validate() error {
	if p.SessionID == "" {
		return errMissingField(EventIntentRecognized, "session_id")
	}
	if p.Intent == "" {
		return errMissingField(EventIntentRecognized, "intent")
	}
	return nil
}

// RouteTaskPayload carries the entire session snapshot to a downstream
// business handler. The handler answers the user directly; the coordinator
// never sees a reply.
type RouteTaskPayload struct {
	Snapshot Snapshot `json:"snapshot"`
}

func (p RouteTaskPayload) Validate() error {
	if p.Snapshot.SessionID == "" {
		return fmt.Errorf("route payload: missing session snapshot")
	}
	return nil
}

// Priority orders escalations into the two-level queue.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// EscalationRequestPayload is a generic escalation ask from any component.
type EscalationRequestPayload struct {
	SessionID       string         `json:"session_id"`
	Reason          string         `json:"reason"`
	Details         map[string]any `json:"details,omitempty"`
	Priority        Priority       `json:"priority,omitempty"`
	RequestingAgent string         `json:"requesting_agent,omitempty"`
}

func (p EscalationRequestPayload) Validate() error {
	if p.SessionID == "" {
		return errMissingField(EventRequestEscalation, "session_id")
	}
	if p.Reason == "" {
		return errMissingField(EventRequestEscalation, "reason")
	}
	return nil
}

// EscalateTaskPayload is the canonical escalation event the coordinator
// publishes for the escalation queue, whatever the original trigger was.
type EscalateTaskPayload struct {
	SessionID string         `json:"session_id"`
	Reason    string         `json:"reason"`
	Details   map[string]any `json:"details,omitempty"`
	Priority  Priority       `json:"priority,omitempty"`
	Snapshot  *Snapshot      `json:"snapshot,omitempty"`
}

func (p EscalateTaskPayload) Validate() error {
	if p.SessionID == "" {
		return errMissingField(EventTaskEscalate, "session_id")
	}
	if p.Reason == "" {
		return errMissingField(EventTaskEscalate, "reason")
	}
	return nil
}

// EscalationQueuedPayload confirms an escalation entered the queue.
type EscalationQueuedPayload struct {
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	EstWaitSecs   int    `json:"estimated_wait_time"`
}

// OperatorAvailablePayload signals a free operator.
type OperatorAvailablePayload struct {
	OperatorID   string `json:"operator_id"`
	OperatorName string `json:"operator_name,omitempty"`
}

func (p OperatorAvailablePayload) Validate() error {
	if p.OperatorID == "" {
		return errMissingField(EventOperatorAvailable, "operator_id")
	}
	return nil
}

// OperatorAssignedPayload confirms an assignment, or reports Assigned=false
// with Reason "QUEUE_EMPTY" when there was nothing to hand out.
type OperatorAssignedPayload struct {
	OperatorID   string    `json:"operator_id"`
	OperatorName string    `json:"operator_name,omitempty"`
	Assigned     bool      `json:"assigned"`
	SessionID    string    `json:"session_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Snapshot     *Snapshot `json:"snapshot,omitempty"`
	WaitSeconds  int       `json:"wait_time_seconds,omitempty"`
}

// EscalationResolvedPayload reports an operator closing a session.
type EscalationResolvedPayload struct {
	SessionID       string `json:"session_id"`
	OperatorID      string `json:"operator_id"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}

func (p EscalationResolvedPayload) Validate() error {
	if p.SessionID == "" {
		return errMissingField(EventEscalationResolved, "session_id")
	}
	if p.OperatorID == "" {
		return errMissingField(EventEscalationResolved, "operator_id")
	}
	return nil
}

// EscalationResolvedResultPayload confirms the resolution with timings.
type EscalationResolvedResultPayload struct {
	SessionID        string `json:"session_id"`
	OperatorID       string `json:"operator_id"`
	TotalTimeSeconds int    `json:"total_time_seconds"`
	ResolutionNotes  string `json:"resolution_notes,omitempty"`
}

// OperatorNotificationPayload feeds operator dashboards.
type OperatorNotificationPayload struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	Reason    string   `json:"reason,omitempty"`
	Priority  Priority `json:"priority,omitempty"`
	QueueSize int      `json:"queue_size"`
}

// AgentErrorPayload reports a component failure.
type AgentErrorPayload struct {
	SessionID string `json:"session_id,omitempty"`
	AgentName string `json:"agent_name"`
	Error     string `json:"error"`
	Task      string `json:"task,omitempty"`
}

func (p AgentErrorPayload) Validate() error {
	if p.AgentName == "" {
		return errMissingField(EventAgentError, "agent_name")
	}
	if p.Error == "" {
		return errMissingField(EventAgentError, "error")
	}
	return nil
}

// AgentResponsePayload is a downstream handler answering the user.
type AgentResponsePayload struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Agent     string `json:"agent,omitempty"`
	Final     bool   `json:"final,omitempty"`
}

func (p AgentResponsePayload) Validate() error {
	if p.SessionID == "" {
		return errMissingField(EventAgentResponse, "session_id")
	}
	return nil
}

// ConversationEndPayload terminates a conversation. Reason is free-form
// ("RESOLVED_BY_AGENT", "TIMEOUT", "ABANDONED", ...).
type ConversationEndPayload struct {
	SessionID  string `json:"session_id"`
	Reason     string `json:"reason,omitempty"`
	OperatorID string `json:"operator_id,omitempty"`
}

func (p ConversationEndPayload) Validate() error {
	if p.SessionID == "" {
		return errMissingField(EventConversationEnd, "session_id")
	}
	return nil
}

// TranscriptSavedPayload confirms the write-at-end persistence completed.
type TranscriptSavedPayload struct {
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
	FinalStatus  Status `json:"final_status"`
}
