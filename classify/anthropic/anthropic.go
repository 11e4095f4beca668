// Package anthropic provides a classify.Classifier backed by the Anthropic
// Claude Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/supportmesh/classify"
)

// Compile time check to ensure Classifier satisfies the classify.Classifier interface.
var _ classify.Classifier = (*Classifier)(nil)

// Options configures the Anthropic classifier adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Classifier wraps the Anthropic Messages API behind the generic
// classify.Classifier interface.
type Classifier struct {
	client *anthropic.Client
	task   classify.Task
	opts   Options
}

// NewClassifier creates a new Anthropic classifier using the official client
func NewClassifier(task classify.Task, optFns ...func(o *Options)) *Classifier {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.0,
		MaxTokens:   256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Classifier{client: &client, task: task, opts: opts}
}

// NewClassifierFromClient creates a new Anthropic classifier from an existing client
func NewClassifierFromClient(client *anthropic.Client, task classify.Task, optFns ...func(o *Options)) *Classifier {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.0,
		MaxTokens:   256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Classifier{client: client, task: task, opts: opts}
}

// Classify implements classify.Classifier.
func (c *Classifier) Classify(ctx context.Context, text string, history []string) (classify.Result, error) {
	system, err := classify.SystemPrompt(c.task)
	if err != nil {
		return classify.Result{}, err
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(classify.UserPrompt(c.task, text, history))),
		},
	})
	if err != nil {
		return classify.Result{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	return classify.ParseResult(sb.String())
}
