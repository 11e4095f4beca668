// Package supportmesh provides a high-level façade over the event broker,
// session registry and workflow agents, enabling rapid construction of a
// customer-support triage pipeline. Most applications interact with this
// package by:
//  1. Creating a Mesh via New() (optionally overriding classifiers, writer and logger)
//  2. Feeding it user messages (SubmitMessage) and operator signals
//  3. Observing results on the broker (Bus) or via the HTTP gateway
//
// The façade wires the coordinator, the classifier collaborators, the
// escalation queue and the transcript recorder onto one in-process broker.
// All defaults are safe for local development and testing; production
// deployments typically supply LLM-backed classifiers, a durable transcript
// writer and a structured logger.
package supportmesh

import (
	"github.com/hupe1980/supportmesh/bus"
	"github.com/hupe1980/supportmesh/classify"
	"github.com/hupe1980/supportmesh/coordinator"
	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/escalation"
	"github.com/hupe1980/supportmesh/logging"
	"github.com/hupe1980/supportmesh/store"
	"github.com/hupe1980/supportmesh/transcript"
)

// Options configures the Mesh instance.
type Options struct {
	// CoordinatorConfig tunes the workflow gates (escalation labels,
	// confidence threshold, intent routing).
	CoordinatorConfig coordinator.Config

	// SentimentClassifier and IntentClassifier default to the rule-based
	// implementations. Supply classify/openai or classify/anthropic
	// adapters for LLM-backed classification.
	SentimentClassifier classify.Classifier
	IntentClassifier    classify.Classifier

	// TranscriptWriter defaults to an in-memory writer.
	TranscriptWriter transcript.Writer

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Mesh is the high-level façade aggregating the broker and workflow agents.
type Mesh struct {
	opts        Options
	bus         *bus.Bus
	store       *store.Store
	coordinator *coordinator.Coordinator
	escalations *escalation.Agent
	sentiment   *classify.SentimentAgent
	intent      *classify.IntentAgent
	recorder    *transcript.Recorder
}

// New creates a new Mesh instance with optional overrides. Any unset
// collaborator is initialized with its in-process default.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		CoordinatorConfig:   coordinator.DefaultConfig(),
		SentimentClassifier: classify.NewRuleSentimentClassifier(),
		IntentClassifier:    classify.NewRuleIntentClassifier(),
		TranscriptWriter:    transcript.NewMemoryWriter(),
		Logger:              logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	b := bus.New(func(o *bus.Options) { o.Logger = opts.Logger })
	s := store.New(func(o *store.Options) { o.Logger = opts.Logger })

	m := &Mesh{
		opts:  opts,
		bus:   b,
		store: s,
	}

	m.coordinator = coordinator.New(b, s, func(o *coordinator.Options) {
		o.Config = opts.CoordinatorConfig
		o.Logger = opts.Logger
	})
	m.escalations = escalation.New(b, func(o *escalation.Options) {
		o.Logger = opts.Logger
	})
	m.sentiment = classify.NewSentimentAgent(b, func(o *classify.SentimentAgentOptions) {
		o.Classifier = opts.SentimentClassifier
		o.Logger = opts.Logger
	})
	m.intent = classify.NewIntentAgent(b, func(o *classify.IntentAgentOptions) {
		o.Classifier = opts.IntentClassifier
		o.Logger = opts.Logger
	})
	m.recorder = transcript.NewRecorder(b, s, opts.TranscriptWriter, func(o *transcript.RecorderOptions) {
		o.Logger = opts.Logger
	})

	return m
}

// Bus exposes the broker for custom subscribers (business handlers,
// dashboards, the gateway's event stream).
func (m *Mesh) Bus() *bus.Bus { return m.bus }

// Store exposes the session registry.
func (m *Mesh) Store() *store.Store { return m.store }

// Escalations exposes the escalation queue.
func (m *Mesh) Escalations() *escalation.Agent { return m.escalations }

// SubmitMessage feeds a user message into the workflow (gate 0).
func (m *Mesh) SubmitMessage(sessionID, text, customerEmail string) {
	m.bus.Publish(core.EventNewUserMessage, core.NewMessagePayload{
		SessionID:     sessionID,
		Text:          text,
		CustomerEmail: customerEmail,
	})
}

// OperatorAvailable announces a free operator; the escalation queue assigns
// the next waiting session, if any.
func (m *Mesh) OperatorAvailable(operatorID, operatorName string) {
	m.bus.Publish(core.EventOperatorAvailable, core.OperatorAvailablePayload{
		OperatorID:   operatorID,
		OperatorName: operatorName,
	})
}

// ResolveEscalation reports an operator closing out a session.
func (m *Mesh) ResolveEscalation(sessionID, operatorID, notes string) {
	m.bus.Publish(core.EventEscalationResolved, core.EscalationResolvedPayload{
		SessionID:       sessionID,
		OperatorID:      operatorID,
		ResolutionNotes: notes,
	})
}

// EndConversation terminates a conversation with the given reason, triggering
// transcript persistence.
func (m *Mesh) EndConversation(sessionID, reason string) {
	m.bus.Publish(core.EventConversationEnd, core.ConversationEndPayload{
		SessionID: sessionID,
		Reason:    reason,
	})
}

// Session returns a snapshot of an active session.
func (m *Mesh) Session(sessionID string) (core.Snapshot, bool) {
	return m.store.Snapshot(sessionID)
}

// Stats aggregates counters from every component.
type Stats struct {
	Bus         bus.Stats         `json:"bus"`
	Store       store.Stats       `json:"store"`
	Coordinator coordinator.Stats `json:"coordinator"`
	Escalations escalation.Stats  `json:"escalations"`
	Transcripts int64             `json:"transcripts_saved"`
}

// Stats returns a point-in-time view of the whole mesh.
func (m *Mesh) Stats() Stats {
	return Stats{
		Bus:         m.bus.Stats(),
		Store:       m.store.Stats(),
		Coordinator: m.coordinator.Stats(),
		Escalations: m.escalations.Stats(),
		Transcripts: m.recorder.Saved(),
	}
}

// Close detaches every component from the broker. The mesh must not be used
// afterwards.
func (m *Mesh) Close() {
	m.recorder.Detach()
	m.intent.Detach()
	m.sentiment.Detach()
	m.escalations.Detach()
	m.coordinator.Detach()
}
