package classify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Task selects the prompt an LLM-backed classifier uses. The rule-based
// classifiers ignore it; the openai and anthropic subpackages require it.
type Task string

const (
	TaskSentiment Task = "sentiment"
	TaskIntent    Task = "intent"
)

const sentimentSystemPrompt = `You are a sentiment classifier for customer support messages.
Classify the message into exactly one label: POSITIVE, NEUTRAL, NEGATIVE, ANGRY or URGENT.
Respond with a single JSON object and nothing else:
{"label": "<LABEL>", "confidence": <0..1>}`

const intentSystemPrompt = `You are an intent classifier for customer support messages.
Classify the message into exactly one intent: track_order, process_return, account_issues or general_inquiry.
Extract entities when present (order_id, email, product, issue_type).
Respond with a single JSON object and nothing else:
{"label": "<intent>", "confidence": <0..1>, "entities": {...}}`

// SystemPrompt returns the instruction block for the given task.
func SystemPrompt(task Task) (string, error) {
	switch task {
	case TaskSentiment:
		return sentimentSystemPrompt, nil
	case TaskIntent:
		return intentSystemPrompt, nil
	default:
		return "", fmt.Errorf("unknown classification task %q", task)
	}
}

// UserPrompt renders the message (and, for intent classification, the prior
// user messages) into the prompt the model sees.
func UserPrompt(task Task, text string, history []string) string {
	if task != TaskIntent || len(history) == 0 {
		return "Message: " + text
	}
	var b strings.Builder
	b.WriteString("Previous messages:\n")
	for _, h := range history {
		b.WriteString("- ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	b.WriteString("Message: ")
	b.WriteString(text)
	return b.String()
}

type resultJSON struct {
	Label      string         `json:"label"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
}

// ParseResult decodes a model reply into a Result. It tolerates replies that
// wrap the JSON object in prose or markdown fences by extracting the first
// balanced object.
func ParseResult(raw string) (Result, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return Result{}, fmt.Errorf("no JSON object in model reply: %q", raw)
	}

	var decoded resultJSON
	if err := json.Unmarshal([]byte(raw[start:end+1]), &decoded); err != nil {
		return Result{}, fmt.Errorf("decode model reply: %w", err)
	}
	if decoded.Label == "" {
		return Result{}, fmt.Errorf("model reply missing label: %q", raw)
	}
	if decoded.Confidence < 0 || decoded.Confidence > 1 {
		return Result{}, fmt.Errorf("model reply confidence out of range: %v", decoded.Confidence)
	}

	return Result{
		Label:      decoded.Label,
		Confidence: decoded.Confidence,
		Entities:   decoded.Entities,
		Details:    map[string]any{"raw_reply": raw},
	}, nil
}
