// Package generate produces rewritten file content through a chat completion
// API.
package generate

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/safeedit/safeedit/pkg/config"
	"github.com/safeedit/safeedit/pkg/errclass"
	"github.com/safeedit/safeedit/pkg/logging"
)

// Request is one rewrite request.
type Request struct {
	Path    string
	Kind    string
	Content []byte
}

// Generator returns improved content for a request. Implementations return
// the raw model text; fence stripping is the caller's job.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// OpenAIGenerator calls an OpenAI-compatible chat completion endpoint.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAI creates a generator from the generation config and an API key.
func NewOpenAI(cfg config.GenerationConfig, apiKey string) *OpenAIGenerator {
	oc := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Model returns the model identifier recorded in the operation log.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

// Generate sends the safety prompt for req and returns the first choice.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", errclass.ErrGeneration.WithMessagef("build prompt: %v", err)
	}

	logging.Debug("requesting completion", map[string]any{"model": g.model, "path": req.Path, "kind": req.Kind})
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:         g.temperature,
		MaxCompletionTokens: g.maxTokens,
	})
	if err != nil {
		return "", errclass.ErrGeneration.WithMessagef("generation failed: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", errclass.ErrGeneration.WithMessage("generation failed: no choices returned")
	}
	logging.Debug("completion received", map[string]any{"finish_reason": string(resp.Choices[0].FinishReason)})
	return resp.Choices[0].Message.Content, nil
}
