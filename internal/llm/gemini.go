package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

const (
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiEmbeddingModel = "text-embedding-004"

	// GeminiEmbeddingBatchSize is the input limit of one batchEmbedContents call.
	GeminiEmbeddingBatchSize = 100
)

// GeminiClient serves both capabilities from the Gemini API.
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	expectedSize   int
	batchSize      int
}

// NewGeminiClient creates a Gemini-backed Completer and Embedder.
// expectedSize of 0 disables vector size validation.
func NewGeminiClient(ctx context.Context, apiKey, model, embeddingModel string, expectedSize int) (*GeminiClient, error) {
	return newGeminiClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model, embeddingModel, expectedSize)
}

func newGeminiClient(ctx context.Context, cc *genai.ClientConfig, model, embeddingModel string, expectedSize int) (*GeminiClient, error) {
	if cc.APIKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	if embeddingModel == "" {
		embeddingModel = defaultGeminiEmbeddingModel
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{
		client:         c,
		model:          model,
		embeddingModel: embeddingModel,
		expectedSize:   expectedSize,
		batchSize:      GeminiEmbeddingBatchSize,
	}, nil
}

// ChatWithMessages maps system messages onto the system instruction and the
// rest onto user/model turns.
func (g *GeminiClient) ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	model := params.Model
	if model == "" {
		model = g.model
	}
	temperature := params.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if params.MaxTokens > 0 {
		config.MaxOutputTokens = int32(params.MaxTokens)
	}
	if params.JSON {
		config.ResponseMIMEType = "application/json"
	}

	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	res, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("no content returned")
	}
	return text, nil
}

// EmbedTexts embeds the texts with the configured embedding model, at most
// batchSize texts per request. Vectors are returned in input order.
func (g *GeminiClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	batchSize := g.batchSize
	if batchSize <= 0 || batchSize > GeminiEmbeddingBatchSize {
		batchSize = GeminiEmbeddingBatchSize
	}

	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		vectors, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		result = append(result, vectors...)
	}
	return result, nil
}

func (g *GeminiClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	res, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(res.Embeddings))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range res.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("embedding %d missing", i)
		}
		if g.expectedSize > 0 && len(e.Values) != g.expectedSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(e.Values), g.expectedSize)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}
