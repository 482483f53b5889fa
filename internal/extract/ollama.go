package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/boothworks/leadcore/internal/config"
)

type ollamaExtractor struct {
	endpoint    string
	textModel   string
	visionModel string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewOllamaExtractor builds an extractor backed by an Ollama-compatible
// /api/generate endpoint. The vision model handles image calls.
func NewOllamaExtractor(cfg config.ExtractorConfig) Extractor {
	return &ollamaExtractor{
		endpoint:    cfg.Endpoint,
		textModel:   cfg.TextModel,
		visionModel: cfg.VisionModel,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      http.DefaultClient,
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Images  []string      `json:"images,omitempty"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (e *ollamaExtractor) FromTranscript(ctx context.Context, transcript string) (Result, error) {
	content, err := e.generate(ctx, e.textModel, transcriptSystemPrompt, transcript, nil)
	if err != nil {
		return Result{}, err
	}
	res, err := decodeResult([]byte(content), transcriptKeys)
	if err != nil {
		return Result{}, err
	}
	return defaultNotes(res, transcript), nil
}

func (e *ollamaExtractor) FromImage(ctx context.Context, image []byte) (Result, error) {
	encoded := base64.StdEncoding.EncodeToString(image)
	content, err := e.generate(ctx, e.visionModel, imageSystemPrompt, imageUserPrompt, []string{encoded})
	if err != nil {
		return Result{}, err
	}
	return decodeResult([]byte(content), imageKeys)
}

func (e *ollamaExtractor) generate(ctx context.Context, model, system, prompt string, images []string) (string, error) {
	payload := ollamaRequest{
		Model:  model,
		Prompt: prompt,
		System: system,
		Images: images,
		Stream: false,
		Format: "json",
		Options: ollamaOptions{
			Temperature: e.temperature,
			NumPredict:  e.maxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("extraction request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("extraction backend returned status %s: %s", resp.Status, bytes.TrimSpace(data))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return out.Response, nil
}
