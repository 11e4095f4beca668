package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a class of event on the broker. The payload schema is
// per-type (see payload.go) and validated by the receiving handler, never by
// the broker itself.
type EventType string

// Workflow event types. Task/result pairs connect the coordinator to the
// classifier collaborators; everything else is control or notification
// traffic.
const (
	// EventNewUserMessage enters the workflow from the gateway (gate 0 input).
	EventNewUserMessage EventType = "NEW_USER_MESSAGE"

	// EventTaskRecognizeSentiment asks the sentiment collaborator for a label.
	EventTaskRecognizeSentiment EventType = "TASK_RECOGNIZE_SENTIMENT"
	// EventSentimentRecognized carries the sentiment result (gate 1 input).
	EventSentimentRecognized EventType = "RESULT_SENTIMENT_RECOGNIZED"

	// EventTaskRecognizeIntent asks the intent collaborator for a label.
	EventTaskRecognizeIntent EventType = "TASK_RECOGNIZE_INTENT"
	// EventIntentRecognized carries the intent result (gate 2 input).
	EventIntentRecognized EventType = "RESULT_INTENT_RECOGNIZED"

	// EventTaskEscalate is the single canonical escalation entry point. The
	// coordinator republishes every escalation trigger as one of these so the
	// escalation queue has a uniform input regardless of source.
	EventTaskEscalate EventType = "TASK_ESCALATE"
	// EventRequestEscalation lets any component ask for an escalation.
	EventRequestEscalation EventType = "REQUEST_ESCALATION"
	// EventAgentError reports a component failure; the coordinator escalates.
	EventAgentError EventType = "AGENT_ERROR"

	// EventOperatorAvailable signals a free human operator.
	EventOperatorAvailable EventType = "OPERATOR_AVAILABLE"
	// EventOperatorAssigned confirms (or soft-fails) an assignment.
	EventOperatorAssigned EventType = "RESULT_OPERATOR_ASSIGNED"
	// EventEscalationResolved reports an operator closing out a session.
	EventEscalationResolved EventType = "ESCALATION_RESOLVED"
	// EventEscalationResolvedResult confirms the resolution with timings.
	EventEscalationResolvedResult EventType = "RESULT_ESCALATION_RESOLVED"
	// EventEscalationComplete confirms an escalation was queued.
	EventEscalationComplete EventType = "RESULT_ESCALATION_COMPLETE"
	// EventOperatorNotification feeds dashboards about queue changes.
	EventOperatorNotification EventType = "NOTIFICATION_OPERATOR"

	// EventAgentResponse is a downstream handler answering the user directly.
	EventAgentResponse EventType = "RESULT_SEND_RESPONSE_TO_USER"
	// EventConversationEnd terminates a conversation.
	EventConversationEnd EventType = "CONVERSATION_END"
	// EventConversationTimeout is published by an external watchdog; the core
	// treats it like any other terminal trigger.
	EventConversationTimeout EventType = "CONVERSATION_TIMEOUT"
	// EventTranscriptSaved confirms the transcript write-at-end completed.
	EventTranscriptSaved EventType = "TRANSCRIPT_SAVED"
)

// Routing targets for recognized intents. Each receives the full session
// snapshot and is expected to respond to the end user directly.
const (
	EventTaskHandleOrderTracking  EventType = "TASK_HANDLE_ORDER_TRACKING"
	EventTaskHandleReturns        EventType = "TASK_HANDLE_RETURNS"
	EventTaskHandleGeneralInquiry EventType = "TASK_HANDLE_GENERAL_INQUIRY"
	EventTaskHandleAccount        EventType = "TASK_HANDLE_ACCOUNT"
)

// Event is the unit of communication between components. After publication it
// must be treated as immutable: the broker hands the same value to every
// subscriber and never inspects the payload.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID and UTC timestamp. Prefer letting
// the broker construct events inside Publish; this exists for handlers that
// need to synthesize one (tests, replays).
func NewEvent(eventType EventType, payload any) Event {
	return Event{
		ID:        NewID(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewID generates a unique identifier for events and records.
func NewID() string { return uuid.NewString() }
