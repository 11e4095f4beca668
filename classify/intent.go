package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/hupe1980/supportmesh/bus"
	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/logging"
)

// Supported intents. general_inquiry is the catch-all for unclear requests.
const (
	IntentTrackOrder     = "track_order"
	IntentProcessReturn  = "process_return"
	IntentAccountIssues  = "account_issues"
	IntentGeneralInquiry = "general_inquiry"
)

// intentKeywords weights keyword matches per intent: primary keywords count
// double, secondary single, entity mentions half.
type intentKeywords struct {
	primary   []string
	secondary []string
	entities  []string
}

var keywordsByIntent = map[string]intentKeywords{
	IntentTrackOrder: {
		primary:   []string{"track", "tracking", "shipped", "shipping", "delivery", "deliver"},
		secondary: []string{"where is", "status", "arrive", "arriving", "eta", "when will"},
		entities:  []string{"order", "package", "shipment"},
	},
	IntentProcessReturn: {
		primary:   []string{"return", "refund", "exchange", "replace", "send back", "take back"},
		secondary: []string{"give back", "money back"},
		entities:  []string{"item", "product", "purchase"},
	},
	IntentAccountIssues: {
		primary:   []string{"account", "login", "password", "sign in", "log in"},
		secondary: []string{"email", "profile", "username", "change", "update", "reset"},
		entities:  []string{"credentials", "access", "settings"},
	},
}

// phrasesByIntent are exact phrases carrying the highest confidence.
var phrasesByIntent = map[string][]string{
	IntentTrackOrder: {
		"where is my order", "track my order", "order status", "shipping status",
		"when will it arrive", "has it shipped", "tracking number", "delivery date",
	},
	IntentProcessReturn: {
		"want to return", "need to return", "return this", "get a refund",
		"send it back", "not satisfied", "wrong item", "defective",
	},
	IntentAccountIssues: {
		"can't log in", "cannot log in", "forgot password", "reset password",
		"update email", "change password", "account locked", "can't access",
	},
}

// patternsByIntent are question-shaped regexes, checked after phrases.
var patternsByIntent = map[string][]*regexp.Regexp{
	IntentTrackOrder: compilePatterns(
		`\bwhere\s+(is|are)\s+(my|the)?\s*(order|package|shipment)`,
		`\bwhen\s+will\s+(it|my\s+order|the\s+package)\s+(arrive|come|ship)`,
		`\b(has|did)\s+(it|my\s+order)\s+ship`,
	),
	IntentProcessReturn: compilePatterns(
		`\b(want|need|would\s+like)\s+to\s+return`,
		`\bhow\s+(do\s+i|can\s+i|to)\s+return`,
		`\bcan\s+i\s+(get|have)\s+a\s+refund`,
	),
	IntentAccountIssues: compilePatterns(
		`\bcan'?t\s+(log\s+in|access|sign\s+in)`,
		`\b(forgot|lost|reset)\s+(my\s+)?password`,
		`\bhow\s+(do\s+i|can\s+i|to)\s+(change|update|reset)\s+(my\s+)?(password|email)`,
	),
}

var (
	orderIDPattern = regexp.MustCompile(`(?i)\b(order|#)\s*[:#]?\s*([A-Z0-9-]{5,})\b`)
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	returnProducts = []string{"laptop", "phone", "tablet", "watch", "shirt", "shoes", "dress"}
)

func compilePatterns(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// RuleIntentClassifier classifies user messages into actionable intents using
// a three-step cascade: exact phrase matches, question patterns, then
// weighted keyword scoring. It never fails; an unclear message falls through
// to general_inquiry with low confidence so gate 2 escalates it.
type RuleIntentClassifier struct{}

// NewRuleIntentClassifier constructs the rule-based intent classifier.
func NewRuleIntentClassifier() *RuleIntentClassifier { return &RuleIntentClassifier{} }

// Classify implements Classifier.
func (c *RuleIntentClassifier) Classify(_ context.Context, text string, _ []string) (Result, error) {
	lower := strings.ToLower(text)

	// Step 1: exact phrase matches.
	if intent, hits := bestMatch(func(intent string) int {
		count := 0
		for _, phrase := range phrasesByIntent[intent] {
			if strings.Contains(lower, phrase) {
				count++
			}
		}
		return count
	}); hits > 0 {
		return Result{
			Label:      intent,
			Confidence: clamp(0.85+float64(hits)*0.05, 0.98),
			Entities:   extractEntities(lower, intent),
		}, nil
	}

	// Step 2: question patterns.
	if intent, hits := bestMatch(func(intent string) int {
		count := 0
		for _, pattern := range patternsByIntent[intent] {
			if pattern.MatchString(lower) {
				count++
			}
		}
		return count
	}); hits > 0 {
		return Result{
			Label:      intent,
			Confidence: clamp(0.80+float64(hits)*0.05, 0.95),
			Entities:   extractEntities(lower, intent),
		}, nil
	}

	// Step 3: weighted keyword scoring.
	bestIntent, bestScore := "", 0.0
	for intent, kws := range keywordsByIntent {
		score := 0.0
		for _, kw := range kws.primary {
			if strings.Contains(lower, kw) {
				score += 2
			}
		}
		for _, kw := range kws.secondary {
			if strings.Contains(lower, kw) {
				score += 1
			}
		}
		for _, kw := range kws.entities {
			if strings.Contains(lower, kw) {
				score += 0.5
			}
		}
		if score > bestScore {
			bestIntent, bestScore = intent, score
		}
	}

	if bestScore > 0 {
		var confidence float64
		switch {
		case bestScore >= 3:
			confidence = clamp(0.75+(bestScore-3)*0.05, 0.92)
		case bestScore >= 2:
			confidence = 0.70
		default:
			confidence = 0.65
		}
		return Result{
			Label:      bestIntent,
			Confidence: confidence,
			Entities:   extractEntities(lower, bestIntent),
		}, nil
	}

	return Result{Label: IntentGeneralInquiry, Confidence: 0.60, Entities: map[string]any{}}, nil
}

// bestMatch scores every known intent with score and returns the best, or
// ("", 0) when nothing matched.
func bestMatch(score func(intent string) int) (string, int) {
	bestIntent, bestHits := "", 0
	for _, intent := range []string{IntentTrackOrder, IntentProcessReturn, IntentAccountIssues} {
		if hits := score(intent); hits > bestHits {
			bestIntent, bestHits = intent, hits
		}
	}
	return bestIntent, bestHits
}

// extractEntities pulls intent-relevant entities out of the lowercased text.
func extractEntities(lower, intent string) map[string]any {
	entities := map[string]any{"action": intent}

	if m := orderIDPattern.FindStringSubmatch(lower); m != nil {
		entities["order_id"] = m[2]
	}
	if m := emailPattern.FindString(lower); m != "" {
		entities["email"] = m
	}

	switch intent {
	case IntentProcessReturn:
		for _, product := range returnProducts {
			if strings.Contains(lower, product) {
				entities["product"] = product
				break
			}
		}
	case IntentAccountIssues:
		switch {
		case strings.Contains(lower, "password"):
			entities["issue_type"] = "password"
		case strings.Contains(lower, "email"):
			entities["issue_type"] = "email"
		case strings.Contains(lower, "login"), strings.Contains(lower, "log in"), strings.Contains(lower, "sign in"):
			entities["issue_type"] = "login"
		}
	}
	return entities
}

// IntentAgent connects an intent Classifier to the broker.
type IntentAgent struct {
	bus        *bus.Bus
	classifier Classifier
	logger     logging.Logger
	sub        *bus.Subscription
}

// IntentAgentOptions configures an IntentAgent.
type IntentAgentOptions struct {
	// Classifier defaults to the rule-based implementation.
	Classifier Classifier
	Logger     logging.Logger
}

// NewIntentAgent constructs the agent and subscribes it to the broker.
func NewIntentAgent(b *bus.Bus, optFns ...func(o *IntentAgentOptions)) *IntentAgent {
	opts := IntentAgentOptions{Classifier: NewRuleIntentClassifier(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	a := &IntentAgent{bus: b, classifier: opts.Classifier, logger: opts.Logger}
	a.sub = b.Subscribe(core.EventTaskRecognizeIntent, a.handleTask)
	return a
}

// Detach removes the agent's subscription from the broker.
func (a *IntentAgent) Detach() { a.bus.Unsubscribe(a.sub) }

func (a *IntentAgent) handleTask(event core.Event) error {
	payload, ok := event.Payload.(core.IntentTaskPayload)
	if !ok {
		return a.reportError("", "unexpected payload type")
	}
	if err := payload.Validate(); err != nil {
		return a.reportError(payload.SessionID, err.Error())
	}

	result, err := a.classifier.Classify(context.Background(), payload.Text, payload.History)
	if err != nil {
		return a.reportError(payload.SessionID, err.Error())
	}

	a.logger.Info("intent recognized", "session_id", payload.SessionID,
		"intent", result.Label, "confidence", result.Confidence)

	a.bus.Publish(core.EventIntentRecognized, core.IntentResultPayload{
		SessionID:  payload.SessionID,
		Intent:     result.Label,
		Confidence: result.Confidence,
		Entities:   result.Entities,
	})
	return nil
}

func (a *IntentAgent) reportError(sessionID, msg string) error {
	a.logger.Error("intent agent error", "session_id", sessionID, "error", msg)
	a.bus.Publish(core.EventAgentError, core.AgentErrorPayload{
		SessionID: sessionID,
		AgentName: "INTENT_AGENT",
		Error:     msg,
		Task:      string(core.EventTaskRecognizeIntent),
	})
	return nil
}
