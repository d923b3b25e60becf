package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"

	"danesh/internal/rag/schema"
)

// frameFunc combines a user prompt and retrieval context into the full
// prompt a model family expects.
type frameFunc func(prompt, context string) string

func frameGeneral(prompt, context string) string {
	return fmt.Sprintf("Context:\n%s\nUser: %s\nAssistant:", context, prompt)
}

func frameCode(prompt, context string) string {
	return fmt.Sprintf("# Context:\n%s\n# Code request:\n%s\n# Solution:", context, prompt)
}

func frameVision(prompt, context string) string {
	return fmt.Sprintf("[Image Context]\n%s\nUser: %s\nAssistant:", context, prompt)
}

// frameRaw passes the prompt through untouched; translation models take the
// text to translate as the whole prompt.
func frameRaw(prompt, _ string) string {
	return prompt
}

// Ollama is a generation client for one model served by an Ollama daemon.
type Ollama struct {
	client *ollama.Client
	model  string
	frame  frameFunc
}

// NewOllama creates a generation client. An empty baseURL defaults to the
// local daemon.
func NewOllama(model, baseURL string, frame frameFunc) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	hc := &http.Client{
		Timeout: 120 * time.Second,
	}

	return &Ollama{
		client: ollama.NewClient(parsedURL, hc),
		model:  model,
		frame:  frame,
	}, nil
}

// Generate frames the prompt with the retrieval context and runs a single
// non-streaming completion.
func (o *Ollama) Generate(ctx context.Context, prompt, context_ string, params schema.GenParams) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:   o.model,
		Prompt:  o.frame(prompt, context_),
		Stream:  &stream,
		Options: optionsFrom(params),
	}

	var sb strings.Builder
	err := o.client.Generate(ctx, req, func(resp ollama.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}
	return sb.String(), nil
}

// optionsFrom maps GenParams onto Ollama sampling options.
func optionsFrom(p schema.GenParams) map[string]any {
	opts := map[string]any{
		"temperature":       p.Temperature,
		"top_p":             p.TopP,
		"frequency_penalty": p.FrequencyPenalty,
		"presence_penalty":  p.PresencePenalty,
	}
	if p.MaxTokens > 0 {
		opts["num_predict"] = p.MaxTokens
	}
	if len(p.Stop) > 0 {
		opts["stop"] = p.Stop
	}
	return opts
}

// compile-time check to ensure Ollama implements the LLM interface
var _ LLM = (*Ollama)(nil)
