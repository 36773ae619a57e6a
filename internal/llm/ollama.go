package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ollama/ollama/api"
)

// OllamaProvider implements Provider against a local Ollama server.
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllamaProvider creates a provider using OLLAMA_HOST (or the default
// local address) to reach the server.
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("create Ollama client: %w", err)
	}

	return &OllamaProvider{client: client, model: cfg.Model}, nil
}

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:    p.model,
		Messages: buildOllamaMessages(req),
		Stream:   &stream,
		Options:  map[string]any{},
	}

	if req.Temperature > 0 {
		chatReq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}

	if req.Schema != nil {
		schemaBytes, err := json.Marshal(req.Schema.Definition)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		chatReq.Format = json.RawMessage(schemaBytes)
	}

	var final api.ChatResponse
	var text []byte
	err := p.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		text = append(text, r.Message.Content...)
		if r.Done {
			final = r
		}
		return nil
	})
	if err != nil {
		return nil, mapOllamaError(err)
	}

	content := json.RawMessage(text)
	stop := "end"
	if final.DoneReason == "length" {
		stop = "max_tokens"
	}

	if req.Schema != nil {
		if stop == "max_tokens" {
			return nil, &Error{Kind: KindTruncated, Content: content}
		}
		if err := ValidateResponse(req.Schema, content); err != nil {
			return nil, err
		}
	}

	model := final.Model
	if model == "" {
		model = p.model
	}

	return &Response{
		Content: content,
		Usage: Usage{
			InputTokens:  final.PromptEvalCount,
			OutputTokens: final.EvalCount,
			TotalTokens:  final.PromptEvalCount + final.EvalCount,
		},
		Model:      model,
		StopReason: stop,
	}, nil
}

func (p *OllamaProvider) ModelID() string {
	return p.model
}

func buildOllamaMessages(req Request) []api.Message {
	msgs := make([]api.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, api.Message{Role: role, Content: m.Content})
	}
	return msgs
}

func mapOllamaError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusError(statusErr.StatusCode, nil, err)
	}
	return statusError(0, nil, err)
}
