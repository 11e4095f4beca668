package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/supportmesh/bus"
	"github.com/hupe1980/supportmesh/core"
)

func TestRuleSentimentClassifier_Labels(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"angry keywords", "This is absolutely unacceptable, your service is terrible!", core.SentimentAngry},
		{"single angry keyword wins", "I hate waiting", core.SentimentAngry},
		{"urgent keywords", "I need this fixed immediately, it's urgent", core.SentimentUrgent},
		{"multiple negative keywords", "I'm disappointed and frustrated with this broken product", core.SentimentNegative},
		{"single negative keyword", "There is a problem with my invoice", core.SentimentNegative},
		{"multiple positive keywords", "Great service, I really appreciate the help", core.SentimentPositive},
		{"single positive keyword", "Thank you", core.SentimentPositive},
		{"neutral", "What are your opening hours?", core.SentimentNeutral},
	}

	c := NewRuleSentimentClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.Classify(context.Background(), tt.text, nil)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, result.Label)
			assert.Greater(t, result.Confidence, 0.0)
			assert.LessOrEqual(t, result.Confidence, 1.0)
		})
	}
}

func TestRuleSentimentClassifier_NegationFlipsPolarity(t *testing.T) {
	c := NewRuleSentimentClassifier()

	// Two positive keywords negated read as negative.
	result, err := c.Classify(context.Background(), "This is not great and not helpful", nil)
	assert.NoError(t, err)
	assert.Equal(t, core.SentimentNegative, result.Label)
}

func TestRuleSentimentClassifier_EmotionBoost(t *testing.T) {
	c := NewRuleSentimentClassifier()

	calm, err := c.Classify(context.Background(), "this is terrible", nil)
	assert.NoError(t, err)
	shouting, err := c.Classify(context.Background(), "THIS IS TERRIBLE!!!", nil)
	assert.NoError(t, err)

	assert.Equal(t, core.SentimentAngry, calm.Label)
	assert.Equal(t, core.SentimentAngry, shouting.Label)
	assert.Greater(t, shouting.Confidence, calm.Confidence)
	assert.LessOrEqual(t, shouting.Confidence, 0.98)
}

func TestRuleSentimentClassifier_IntensifierBoost(t *testing.T) {
	c := NewRuleSentimentClassifier()

	plain, err := c.Classify(context.Background(), "disappointed and frustrated", nil)
	assert.NoError(t, err)
	intensified, err := c.Classify(context.Background(), "extremely disappointed and frustrated", nil)
	assert.NoError(t, err)

	assert.Equal(t, core.SentimentNegative, plain.Label)
	assert.Greater(t, intensified.Confidence, plain.Confidence)
}

func TestRuleSentimentClassifier_Details(t *testing.T) {
	c := NewRuleSentimentClassifier()

	result, err := c.Classify(context.Background(), "I'm very unhappy, this is broken", nil)
	assert.NoError(t, err)
	assert.Equal(t, core.SentimentNegative, result.Label)
	assert.Equal(t, 2, result.Details["negative_keywords"])
	assert.Equal(t, true, result.Details["has_intensifier"])
}

func TestSentimentAgent_PublishesResult(t *testing.T) {
	b := bus.New()
	agent := NewSentimentAgent(b)
	defer agent.Detach()

	var results []core.SentimentResultPayload
	b.Subscribe(core.EventSentimentRecognized, func(event core.Event) error {
		results = append(results, event.Payload.(core.SentimentResultPayload))
		return nil
	})

	b.Publish(core.EventTaskRecognizeSentiment, core.SentimentTaskPayload{
		SessionID: "s-1",
		Text:      "this is awful and broken",
	})

	assert.Len(t, results, 1)
	assert.Equal(t, "s-1", results[0].SessionID)
	assert.Equal(t, core.SentimentAngry, results[0].Sentiment)
}

func TestSentimentAgent_MalformedTaskReportsAgentError(t *testing.T) {
	b := bus.New()
	agent := NewSentimentAgent(b)
	defer agent.Detach()

	var errs []core.AgentErrorPayload
	b.Subscribe(core.EventAgentError, func(event core.Event) error {
		errs = append(errs, event.Payload.(core.AgentErrorPayload))
		return nil
	})

	b.Publish(core.EventTaskRecognizeSentiment, "not a payload struct")
	b.Publish(core.EventTaskRecognizeSentiment, core.SentimentTaskPayload{Text: "no session id"})

	assert.Len(t, errs, 2)
	assert.Equal(t, "SENTIMENT_AGENT", errs[0].AgentName)
}
