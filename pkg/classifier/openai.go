package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/slopscope/slopscope/pkg/config"
	"github.com/slopscope/slopscope/pkg/domain"
)

// OpenAIBackend loads text-classification models served behind an
// OpenAI-compatible API
type OpenAIBackend struct {
	client *openai.Client
	config config.ClassifierConfig
}

// NewOpenAIBackend creates a backend for the configured endpoint
func NewOpenAIBackend(cfg config.ClassifierConfig) *OpenAIBackend {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Load verifies the model is served and returns a handle bound to it
func (b *OpenAIBackend) Load(ctx context.Context, modelID string) (Model, error) {
	if modelID == "" {
		return nil, fmt.Errorf("empty model id")
	}
	if _, err := b.client.GetModel(ctx, modelID); err != nil {
		return nil, fmt.Errorf("get model %s: %w", modelID, err)
	}
	return &openAIModel{client: b.client, modelID: modelID, config: b.config}, nil
}

// openAIModel is a model handle bound to a single model identifier
type openAIModel struct {
	client  *openai.Client
	modelID string
	config  config.ClassifierConfig
}

const classifySystemPrompt = `You are a text classifier that detects AI-generated text.
Given a text, respond with a single JSON object:
{"label": "ai" or "human", "score": confidence between 0.0 and 1.0}
Respond with the JSON object only, no other text.`

// Classify runs the model on the given text and parses the verdict
func (m *openAIModel) Classify(ctx context.Context, text string) (domain.Verdict, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.modelID,
		Temperature: float32(m.config.Temperature),
		MaxTokens:   m.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: classifySystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("classifier request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Verdict{}, fmt.Errorf("no response from classifier")
	}

	return parseVerdict(resp.Choices[0].Message.Content)
}

// parseVerdict extracts the verdict object from the model output, tolerating
// surrounding prose around the JSON
func parseVerdict(content string) (domain.Verdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start >= end {
		return domain.Verdict{}, fmt.Errorf("no json object found in response")
	}

	var verdict domain.Verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &verdict); err != nil {
		return domain.Verdict{}, fmt.Errorf("failed to parse json response: %w", err)
	}

	switch verdict.Label {
	case domain.LabelAI, domain.LabelHuman:
	case "llm": // some detector models report the positive class as "llm"
		verdict.Label = domain.LabelAI
	default:
		return domain.Verdict{}, fmt.Errorf("unexpected label %q in response", verdict.Label)
	}

	// clamp confidence to valid range
	if verdict.Score < 0 {
		verdict.Score = 0
	} else if verdict.Score > 1 {
		verdict.Score = 1
	}

	return verdict, nil
}
