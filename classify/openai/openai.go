// Package openai provides a classify.Classifier backed by the OpenAI Chat
// Completions API. It swaps in for the rule-based classifiers when keyword
// matching is not enough; the workflow around it is unchanged.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/supportmesh/classify"
)

// Compile time check to ensure Classifier satisfies the classify.Classifier interface.
var _ classify.Classifier = (*Classifier)(nil)

// Options configure the OpenAI classifier adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Classifier wraps the OpenAI Chat Completions API behind the generic
// classify.Classifier interface.
type Classifier struct {
	client *openai.Client
	task   classify.Task
	opts   Options
}

// NewClassifier creates a new OpenAI classifier using the official client
func NewClassifier(task classify.Task, optFns ...func(o *Options)) *Classifier {
	client := openai.NewClient()
	return NewClassifierFromClient(&client, task, optFns...)
}

// NewClassifierFromClient creates a new OpenAI classifier from an existing client
func NewClassifierFromClient(client *openai.Client, task classify.Task, optFns ...func(o *Options)) *Classifier {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.0,
		MaxCompletionTokens: 256,
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

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(classify.UserPrompt(c.task, text, history)),
		},
		Model:               c.opts.Model,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	})
	if err != nil {
		return classify.Result{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return classify.Result{}, fmt.Errorf("no choices returned")
	}

	return classify.ParseResult(resp.Choices[0].Message.Content)
}
