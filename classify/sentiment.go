package classify

import (
	"context"
	"strings"
	"unicode"

	"github.com/hupe1980/supportmesh/bus"
	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/logging"
)

// Keyword dictionaries for rule-based sentiment classification.
var (
	angryKeywords = []string{
		"angry", "furious", "outraged", "livid", "enraged",
		"hate", "terrible", "worst", "awful", "horrible",
		"disgusting", "unacceptable", "ridiculous", "pathetic",
		"scam", "fraud", "steal", "rip off", "ripped off",
	}

	negativeKeywords = []string{
		"bad", "poor", "disappointed", "unhappy", "frustrated",
		"upset", "annoyed", "dissatisfied", "unsatisfied",
		"problem", "issue", "complaint", "wrong", "broken",
		"not working", "doesn't work", "failed",
	}

	urgentKeywords = []string{
		"urgent", "asap", "immediately", "right now", "now",
		"emergency", "critical", "urgent matter", "time sensitive",
		"deadline", "expiring", "expire",
	}

	positiveKeywords = []string{
		"great", "excellent", "amazing", "wonderful", "fantastic",
		"love", "perfect", "awesome", "brilliant", "thank",
		"appreciate", "helpful", "satisfied", "happy",
	}

	// Intensifiers boost confidence; negations flip positive/negative.
	intensifiers = []string{"very", "extremely", "really", "so", "absolutely", "totally"}
	negations    = []string{"not", "no", "never", "neither", "nobody", "nothing", "don't", "doesn't", "didn't"}
)

// RuleSentimentClassifier assigns one of POSITIVE, NEUTRAL, NEGATIVE, ANGRY
// or URGENT using keyword matching with intensity scoring. It never fails.
type RuleSentimentClassifier struct{}

// NewRuleSentimentClassifier constructs the rule-based sentiment classifier.
func NewRuleSentimentClassifier() *RuleSentimentClassifier { return &RuleSentimentClassifier{} }

// Classify implements Classifier. History is ignored: sentiment is judged on
// the current message only.
func (c *RuleSentimentClassifier) Classify(_ context.Context, text string, _ []string) (Result, error) {
	lower := strings.ToLower(text)
	words := tokenize(lower)

	angry := countMatches(lower, angryKeywords)
	negative := countMatches(lower, negativeKeywords)
	urgent := countMatches(lower, urgentKeywords)
	positive := countMatches(lower, positiveKeywords)

	hasIntensifier := containsAnyWord(words, intensifiers)
	intensifierBoost := 0.0
	if hasIntensifier {
		intensifierBoost = 0.05
	}

	// A simple negation flips the positive/negative counts.
	hasNegation := containsAnyWord(words, negations)
	if hasNegation {
		positive, negative = negative, positive
	}

	// Repeated exclamation marks or shouting indicate strong emotion.
	exclamations := strings.Count(text, "!")
	capsRatio := upperRatio(text)
	emotionBoost := float64(exclamations)*0.02 + capsRatio*0.1
	if emotionBoost > 0.15 {
		emotionBoost = 0.15
	}

	var label string
	var confidence float64
	switch {
	case angry >= 1:
		label = core.SentimentAngry
		confidence = clamp(0.85+float64(angry-1)*0.05+emotionBoost+intensifierBoost, 0.98)
	case urgent >= 1:
		label = core.SentimentUrgent
		confidence = clamp(0.80+float64(urgent-1)*0.05+emotionBoost, 0.95)
	case negative >= 2:
		label = core.SentimentNegative
		confidence = clamp(0.75+float64(negative-2)*0.05+intensifierBoost, 0.92)
	case positive >= 2:
		label = core.SentimentPositive
		confidence = clamp(0.80+float64(positive-2)*0.05, 0.95)
	case negative == 1:
		label = core.SentimentNegative
		confidence = 0.65 // single keyword, low conviction
	case positive == 1:
		label = core.SentimentPositive
		confidence = 0.70
	default:
		label = core.SentimentNeutral
		confidence = 0.88 // no signal at all is a strong neutral
	}

	return Result{
		Label:      label,
		Confidence: confidence,
		Details: map[string]any{
			"angry_keywords":    angry,
			"negative_keywords": negative,
			"positive_keywords": positive,
			"urgent_keywords":   urgent,
			"has_intensifier":   hasIntensifier,
			"has_negation":      hasNegation,
			"emotion_boost":     emotionBoost,
		},
	}, nil
}

func countMatches(text string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			count++
		}
	}
	return count
}

func containsAnyWord(words map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if words[c] {
			return true
		}
	}
	return false
}

// tokenize splits on non-word runes, keeping apostrophes so contractions like
// "don't" survive as single tokens.
func tokenize(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	}) {
		words[w] = true
	}
	return words
}

func upperRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	upper := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(len(text))
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}

// SentimentAgent connects a sentiment Classifier to the broker: it consumes
// classification tasks and publishes results, reporting failures as agent
// errors so the coordinator can escalate.
type SentimentAgent struct {
	bus        *bus.Bus
	classifier Classifier
	logger     logging.Logger
	sub        *bus.Subscription
}

// SentimentAgentOptions configures a SentimentAgent.
type SentimentAgentOptions struct {
	// Classifier defaults to the rule-based implementation.
	Classifier Classifier
	Logger     logging.Logger
}

// NewSentimentAgent constructs the agent and subscribes it to the broker.
func NewSentimentAgent(b *bus.Bus, optFns ...func(o *SentimentAgentOptions)) *SentimentAgent {
	opts := SentimentAgentOptions{Classifier: NewRuleSentimentClassifier(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	a := &SentimentAgent{bus: b, classifier: opts.Classifier, logger: opts.Logger}
	a.sub = b.Subscribe(core.EventTaskRecognizeSentiment, a.handleTask)
	return a
}

// Detach removes the agent's subscription from the broker.
func (a *SentimentAgent) Detach() { a.bus.Unsubscribe(a.sub) }

func (a *SentimentAgent) handleTask(event core.Event) error {
	payload, ok := event.Payload.(core.SentimentTaskPayload)
	if !ok {
		return a.reportError("", "unexpected payload type")
	}
	if err := payload.Validate(); err != nil {
		return a.reportError(payload.SessionID, err.Error())
	}

	result, err := a.classifier.Classify(context.Background(), payload.Text, nil)
	if err != nil {
		return a.reportError(payload.SessionID, err.Error())
	}

	a.logger.Info("sentiment recognized", "session_id", payload.SessionID,
		"sentiment", result.Label, "confidence", result.Confidence)

	a.bus.Publish(core.EventSentimentRecognized, core.SentimentResultPayload{
		SessionID:  payload.SessionID,
		Sentiment:  result.Label,
		Confidence: result.Confidence,
		Details:    result.Details,
	})
	return nil
}

func (a *SentimentAgent) reportError(sessionID, msg string) error {
	a.logger.Error("sentiment agent error", "session_id", sessionID, "error", msg)
	a.bus.Publish(core.EventAgentError, core.AgentErrorPayload{
		SessionID: sessionID,
		AgentName: "SENTIMENT_AGENT",
		Error:     msg,
		Task:      string(core.EventTaskRecognizeSentiment),
	})
	return nil
}
