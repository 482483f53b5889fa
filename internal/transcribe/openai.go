package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/boothworks/leadcore/internal/config"
)

type openaiTranscriber struct {
	endpoint string
	apiKey   string
	model    string
	language string
	client   *http.Client
}

// NewOpenAITranscriber builds a transcriber for an OpenAI-compatible
// /v1/audio/transcriptions endpoint.
func NewOpenAITranscriber(cfg config.TranscriberConfig) Transcriber {
	return &openaiTranscriber{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		client:   http.DefaultClient,
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (t *openaiTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open staged audio: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy staged audio: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", err
	}
	if t.language != "" {
		if err := writer.WriteField("language", t.language); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcription backend returned status %s: %s", resp.Status, bytes.TrimSpace(data))
	}

	var out transcriptionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return out.Text, nil
}
