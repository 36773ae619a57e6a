package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiModels maps friendly names to Gemini model IDs.
var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.5-flash",
	"gemini-lite":  "gemini-2.5-flash-lite",
	"gemini-pro":   "gemini-2.5-pro",
}

// GeminiProvider implements Provider using the Google Gemini SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  resolveModel(cfg.Model, geminiModels),
	}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	result, err := p.client.Models.GenerateContent(ctx, p.model, geminiContents(req.Messages), p.config(req))
	if err != nil {
		return nil, mapGeminiError(err)
	}
	if err := geminiBlocked(result); err != nil {
		return nil, err
	}

	content := json.RawMessage(result.Text())
	truncated := len(result.Candidates) > 0 && result.Candidates[0].FinishReason == genai.FinishReasonMaxTokens
	if truncated && req.Schema != nil {
		return nil, &Error{Kind: KindTruncated, Content: content}
	}
	if len(content) == 0 {
		return nil, Invalid(nil, errors.New("empty Gemini response"))
	}
	if err := ValidateResponse(req.Schema, content); err != nil {
		return nil, err
	}

	resp := &Response{Content: content, Model: p.model, StopReason: "end"}
	if truncated {
		resp.StopReason = "max_tokens"
	}
	if u := result.UsageMetadata; u != nil {
		// Thinking tokens are billed as output.
		out := int(u.CandidatesTokenCount + u.ThoughtsTokenCount)
		resp.Usage = Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: out,
			TotalTokens:  int(u.PromptTokenCount) + out,
		}
	}
	return resp, nil
}

func (p *GeminiProvider) ModelID() string {
	return p.model
}

func (p *GeminiProvider) config(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = buildGeminiSchema(req.Schema.Definition)
	}
	// 2.5 flash models think by default and spend MaxOutputTokens on it,
	// which starves short interviewer turns. Pro cannot turn it off.
	if !strings.Contains(p.model, "pro") {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)}
	}
	return cfg
}

// geminiContents maps messages onto Gemini turns, folding consecutive
// messages of one role into a single turn. Interview history often ends
// with the participant's answer followed by the instruction.
func geminiContents(msgs []Message) []*genai.Content {
	var out []*genai.Content
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		if n := len(out); n > 0 && out[n-1].Role == string(role) {
			out[n-1].Parts = append(out[n-1].Parts, genai.NewPartFromText(m.Content))
			continue
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

// geminiBlocked reports a prompt or reply withheld by safety filters.
// Participant answers can touch sensitive topics, so this is an expected
// outcome and is not retried.
func geminiBlocked(result *genai.GenerateContentResponse) error {
	if fb := result.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return &Error{Kind: KindBlocked, Err: fmt.Errorf("prompt blocked: %s", fb.BlockReason)}
	}
	if len(result.Candidates) == 0 {
		return nil
	}
	switch reason := result.Candidates[0].FinishReason; reason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent,
		genai.FinishReasonBlocklist, genai.FinishReasonSPII, genai.FinishReasonRecitation:
		return &Error{Kind: KindBlocked, Err: fmt.Errorf("reply blocked: %s", reason)}
	}
	return nil
}

// buildGeminiSchema converts a JSON Schema definition map to a genai.Schema.
// Keywords genai does not model (additionalProperties, $schema) are dropped.
func buildGeminiSchema(def map[string]any) *genai.Schema {
	schema := &genai.Schema{
		Type: mapGeminiType(def["type"]),
	}
	schema.Description, _ = def["description"].(string)

	if props, ok := def["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for k, v := range props {
			if propDef, ok := v.(map[string]any); ok {
				schema.Properties[k] = buildGeminiSchema(propDef)
			}
		}
	}
	schema.Required = stringList(def["required"])
	schema.Enum = stringList(def["enum"])
	// Gemini emits keys alphabetically unless told otherwise. Required
	// follows struct field order when every property is required, which
	// keeps "thinking" ahead of the question it justifies.
	if len(schema.Properties) > 0 && len(schema.Required) == len(schema.Properties) {
		schema.PropertyOrdering = schema.Required
	}
	if items, ok := def["items"].(map[string]any); ok {
		schema.Items = buildGeminiSchema(items)
	}
	return schema
}

func stringList(v any) []string {
	list, _ := v.([]any)
	var out []string
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

var geminiTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

func mapGeminiType(v any) genai.Type {
	name, _ := v.(string)
	if t, ok := geminiTypes[name]; ok {
		return t
	}
	return genai.TypeString
}

// mapGeminiError classifies SDK errors. genai returns APIError by value
// and puts rate-limit hints in a google.rpc.RetryInfo detail.
func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return statusError(0, nil, err)
	}
	classified := statusError(apiErr.Code, nil, err)
	if e, ok := classified.(*Error); ok && e.Kind == KindRateLimited {
		e.RetryAfter = geminiRetryDelay(apiErr.Details)
	}
	return classified
}

func geminiRetryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		if t, _ := d["@type"].(string); !strings.HasSuffix(t, "google.rpc.RetryInfo") {
			continue
		}
		delay, _ := d["retryDelay"].(string)
		if wait, err := time.ParseDuration(delay); err == nil && wait > 0 {
			return wait
		}
	}
	return 0
}
