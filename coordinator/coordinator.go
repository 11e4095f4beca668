package coordinator

import (
	"fmt"
	"sync"

	"github.com/hupe1980/supportmesh/bus"
	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/logging"
	"github.com/hupe1980/supportmesh/store"
)

// Config holds the gate decision parameters.
type Config struct {
	// SentimentEscalationLabels are the sentiment labels that trigger an
	// immediate escalation at gate 1.
	SentimentEscalationLabels []string

	// IntentConfidenceThreshold is the minimum confidence accepted at gate 2.
	// A confidence exactly at the threshold is high enough; only strictly
	// lower values escalate.
	IntentConfidenceThreshold float64

	// IntentRouting maps a recognized intent to the downstream task event
	// that receives the full session snapshot. Unknown intents escalate.
	IntentRouting map[string]core.EventType
}

// DefaultConfig returns the routing and threshold configuration used by the
// stock customer-support workflow.
func DefaultConfig() Config {
	return Config{
		SentimentEscalationLabels: []string{core.SentimentNegative, core.SentimentAngry},
		IntentConfidenceThreshold: 0.7,
		IntentRouting: map[string]core.EventType{
			"track_order":     core.EventTaskHandleOrderTracking,
			"process_return":  core.EventTaskHandleReturns,
			"general_inquiry": core.EventTaskHandleGeneralInquiry,
			"account_issues":  core.EventTaskHandleAccount,
			"update_account":  core.EventTaskHandleAccount,
		},
	}
}

// Stats are the coordinator's lifetime counters.
type Stats struct {
	MessagesProcessed int64 `json:"messages_processed"`
	Escalations       int64 `json:"escalations"`
	SuccessfulRoutes  int64 `json:"successful_routes"`
	Errors            int64 `json:"errors"`
}

// Options configures a Coordinator.
type Options struct {
	Config Config
	Logger logging.Logger
}

// Coordinator subscribes to the workflow events and drives the gates. It
// owns field mutations on session contexts (single logical writer), always
// through the registry's methods.
type Coordinator struct {
	bus    *bus.Bus
	store  *store.Store
	cfg    Config
	logger logging.Logger

	escalationLabels map[string]bool
	subs             []*bus.Subscription

	mu    sync.Mutex
	stats Stats
}

// New constructs a Coordinator and subscribes it to the workflow events.
func New(b *bus.Bus, s *store.Store, optFns ...func(o *Options)) *Coordinator {
	opts := Options{Config: DefaultConfig(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Coordinator{
		bus:              b,
		store:            s,
		cfg:              opts.Config,
		logger:           opts.Logger,
		escalationLabels: make(map[string]bool, len(opts.Config.SentimentEscalationLabels)),
	}
	for _, label := range opts.Config.SentimentEscalationLabels {
		c.escalationLabels[label] = true
	}

	c.subs = []*bus.Subscription{
		b.Subscribe(core.EventNewUserMessage, c.handleNewMessage),
		b.Subscribe(core.EventSentimentRecognized, c.handleSentimentResult),
		b.Subscribe(core.EventIntentRecognized, c.handleIntentResult),
		b.Subscribe(core.EventRequestEscalation, c.handleEscalationRequest),
		b.Subscribe(core.EventAgentError, c.handleAgentError),
		b.Subscribe(core.EventConversationTimeout, c.handleTimeout),
	}

	c.logger.Info("coordinator subscribed to workflow events")
	return c
}

// Detach removes every subscription from the broker.
func (c *Coordinator) Detach() {
	for _, sub := range c.subs {
		c.bus.Unsubscribe(sub)
	}
	c.subs = nil
}

// Stats returns a copy of the coordinator counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// handleNewMessage is gate 0: register the message and start the pipeline by
// requesting a sentiment classification. Any failure here triggers an
// emergency escalation tagged SYSTEM_ERROR so a human is the fallback path.
func (c *Coordinator) handleNewMessage(event core.Event) error {
	payload, ok := event.Payload.(core.NewMessagePayload)
	if !ok {
		return c.malformed(event, "")
	}
	if err := payload.Validate(); err != nil {
		c.countError()
		c.emergencyEscalate(payload.SessionID, err)
		return err
	}

	c.mu.Lock()
	c.stats.MessagesProcessed++
	c.mu.Unlock()

	ctx := c.store.GetOrCreate(payload.SessionID, store.Attrs{CustomerEmail: payload.CustomerEmail})
	c.store.AddMessage(payload.SessionID, core.SenderUser, payload.Text)

	c.logger.Info("gate 0: new message", "session_id", payload.SessionID, "messages", len(ctx.Messages))

	c.bus.Publish(core.EventTaskRecognizeSentiment, core.SentimentTaskPayload{
		SessionID: payload.SessionID,
		Text:      payload.Text,
	})
	return nil
}

// handleSentimentResult is gate 1: record the sentiment, then either escalate
// on a configured label or hand the pipeline to intent recognition.
func (c *Coordinator) handleSentimentResult(event core.Event) error {
	payload, ok := event.Payload.(core.SentimentResultPayload)
	if !ok {
		return c.malformed(event, "")
	}
	if err := payload.Validate(); err != nil {
		c.countError()
		c.emergencyEscalate(payload.SessionID, err)
		return err
	}

	ctx, ok := c.store.Get(payload.SessionID)
	if !ok {
		// The session can legitimately vanish when a late result races a
		// terminal event; recoverable no-op.
		c.logger.Warn("gate 1: unknown session", "session_id", payload.SessionID)
		return nil
	}

	c.store.UpdateSentiment(payload.SessionID, payload.Sentiment)

	if c.escalationLabels[payload.Sentiment] {
		c.logger.Warn("gate 1: negative sentiment", "session_id", payload.SessionID, "sentiment", payload.Sentiment)
		c.escalate(payload.SessionID, "NEGATIVE_SENTIMENT_"+payload.Sentiment, map[string]any{
			"sentiment":  payload.Sentiment,
			"confidence": payload.Confidence,
		}, "")
		return nil
	}

	c.logger.Info("gate 1: sentiment acceptable", "session_id", payload.SessionID, "sentiment", payload.Sentiment)

	var lastText string
	if m := ctx.LastMessageBy(core.SenderUser); m != nil {
		lastText = m.Text
	}
	c.bus.Publish(core.EventTaskRecognizeIntent, core.IntentTaskPayload{
		SessionID: payload.SessionID,
		Text:      lastText,
		History:   ctx.UserMessageHistory(),
	})
	return nil
}

// handleIntentResult is gate 2: record intent and entities, then escalate on
// low confidence or unknown intent, or route the full session snapshot to the
// downstream business handler.
func (c *Coordinator) handleIntentResult(event core.Event) error {
	payload, ok := event.Payload.(core.IntentResultPayload)
	if !ok {
		return c.malformed(event, "")
	}
	if err := payload.Validate(); err != nil {
		c.countError()
		c.emergencyEscalate(payload.SessionID, err)
		return err
	}

	if _, ok := c.store.Get(payload.SessionID); !ok {
		c.logger.Warn("gate 2: unknown session", "session_id", payload.SessionID)
		return nil
	}

	c.store.UpdateIntent(payload.SessionID, payload.Intent, payload.Confidence)
	if len(payload.Entities) > 0 {
		c.store.MergeEntities(payload.SessionID, payload.Entities)
	}

	if payload.Confidence < c.cfg.IntentConfidenceThreshold {
		c.logger.Warn("gate 2: low confidence", "session_id", payload.SessionID,
			"confidence", payload.Confidence, "threshold", c.cfg.IntentConfidenceThreshold)
		c.escalate(payload.SessionID, "LOW_INTENT_CONFIDENCE", map[string]any{
			"intent":     payload.Intent,
			"confidence": payload.Confidence,
		}, "")
		return nil
	}

	c.route(payload.SessionID, payload.Intent)
	return nil
}

// route publishes the downstream task carrying the entire session snapshot.
// The business handler answers the user directly; the coordinator does not
// see a reply.
func (c *Coordinator) route(sessionID, intent string) {
	taskType, ok := c.cfg.IntentRouting[intent]
	if !ok {
		c.logger.Warn("routing: unknown intent", "session_id", sessionID, "intent", intent)
		c.escalate(sessionID, "UNKNOWN_INTENT", map[string]any{"intent": intent}, "")
		return
	}

	snapshot, ok := c.store.Snapshot(sessionID)
	if !ok {
		c.logger.Warn("routing: unknown session", "session_id", sessionID)
		return
	}

	c.mu.Lock()
	c.stats.SuccessfulRoutes++
	c.mu.Unlock()

	c.logger.Info("routing session", "session_id", sessionID, "intent", intent, "task", string(taskType))
	c.bus.Publish(taskType, core.RouteTaskPayload{Snapshot: snapshot})
}

// handleEscalationRequest republishes an explicit ask from any component as
// the canonical escalation event.
func (c *Coordinator) handleEscalationRequest(event core.Event) error {
	payload, ok := event.Payload.(core.EscalationRequestPayload)
	if !ok {
		return c.malformed(event, "")
	}
	if err := payload.Validate(); err != nil {
		c.countError()
		return err
	}
	c.logger.Info("escalation requested", "session_id", payload.SessionID, "reason", payload.Reason,
		"requesting_agent", payload.RequestingAgent)
	c.escalate(payload.SessionID, payload.Reason, payload.Details, payload.Priority)
	return nil
}

// handleAgentError escalates on behalf of a failed component.
func (c *Coordinator) handleAgentError(event core.Event) error {
	payload, ok := event.Payload.(core.AgentErrorPayload)
	if !ok {
		return c.malformed(event, "")
	}
	if err := payload.Validate(); err != nil {
		c.countError()
		return err
	}

	c.countError()
	c.logger.Error("agent reported error", "agent", payload.AgentName, "session_id", payload.SessionID,
		"error", payload.Error, "task", payload.Task)

	if payload.SessionID == "" {
		return nil
	}
	c.escalate(payload.SessionID, "AGENT_ERROR_"+payload.AgentName, map[string]any{
		"agent": payload.AgentName,
		"error": payload.Error,
	}, "")
	return nil
}

// handleTimeout treats a watchdog timeout like any other terminal trigger:
// the session is marked abandoned and the conversation ended.
func (c *Coordinator) handleTimeout(event core.Event) error {
	payload, ok := event.Payload.(core.ConversationEndPayload)
	if !ok {
		return c.malformed(event, "")
	}
	if err := payload.Validate(); err != nil {
		c.countError()
		return err
	}
	if !c.store.SetStatus(payload.SessionID, core.StatusAbandoned) {
		c.logger.Warn("timeout: unknown session", "session_id", payload.SessionID)
		return nil
	}
	c.logger.Warn("conversation timed out", "session_id", payload.SessionID)
	c.bus.Publish(core.EventConversationEnd, core.ConversationEndPayload{
		SessionID: payload.SessionID,
		Reason:    "TIMEOUT",
	})
	return nil
}

// escalate marks the context escalated, records the reason and republishes
// the single canonical escalation event consumed by the escalation queue.
func (c *Coordinator) escalate(sessionID, reason string, details map[string]any, priority core.Priority) {
	c.mu.Lock()
	c.stats.Escalations++
	c.mu.Unlock()

	var snapshot *core.Snapshot
	if c.store.Escalate(sessionID, reason) {
		if snap, ok := c.store.Snapshot(sessionID); ok {
			snapshot = &snap
		}
	} else {
		c.logger.Warn("escalate: unknown session, queuing without snapshot", "session_id", sessionID)
	}

	c.logger.Warn("escalating session", "session_id", sessionID, "reason", reason)
	c.bus.Publish(core.EventTaskEscalate, core.EscalateTaskPayload{
		SessionID: sessionID,
		Reason:    reason,
		Details:   details,
		Priority:  priority,
		Snapshot:  snapshot,
	})
}

// emergencyEscalate is the fallback for failures during gate processing: a
// human always beats a silently dropped conversation.
func (c *Coordinator) emergencyEscalate(sessionID string, cause error) {
	if sessionID == "" {
		c.logger.Error("emergency escalation without session id", "error", cause)
		return
	}
	c.escalate(sessionID, "SYSTEM_ERROR", map[string]any{"error": cause.Error()}, "")
}

// malformed reports a payload whose concrete type did not match the event
// contract. It is reported as an agent error, never propagated to crash the
// broker. Type-mismatched AGENT_ERROR payloads are only logged to avoid the
// coordinator feeding its own error handler.
func (c *Coordinator) malformed(event core.Event, sessionID string) error {
	c.countError()
	err := fmt.Errorf("%s: unexpected payload type %T", event.Type, event.Payload)
	c.logger.Error("malformed payload", "event_type", string(event.Type), "event_id", event.ID, "error", err)
	if event.Type != core.EventAgentError {
		c.bus.Publish(core.EventAgentError, core.AgentErrorPayload{
			SessionID: sessionID,
			AgentName: "COORDINATOR",
			Error:     err.Error(),
			Task:      string(event.Type),
		})
	}
	return err
}

func (c *Coordinator) countError() {
	c.mu.Lock()
	c.stats.Errors++
	c.mu.Unlock()
}

// SessionInfo returns a snapshot of one session for inspection surfaces.
func (c *Coordinator) SessionInfo(sessionID string) (core.Snapshot, bool) {
	return c.store.Snapshot(sessionID)
}
