package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/boothworks/leadcore/internal/config"
)

func TestDecodeResultAllKeysPresent(t *testing.T) {
	raw := `{"name":"Jane Doe","email":"jane@co.com","phone":null,"company":"Acme","notes":"wants pricing"}`
	res, err := decodeResult([]byte(raw), transcriptKeys)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Name == nil || *res.Name != "Jane Doe" {
		t.Fatalf("unexpected name: %v", res.Name)
	}
	if res.Phone != nil {
		t.Fatalf("null must decode to nil pointer, got %v", *res.Phone)
	}
}

func TestDecodeResultMissingKey(t *testing.T) {
	raw := `{"name":"Jane","email":null,"phone":null,"company":null}`
	_, err := decodeResult([]byte(raw), transcriptKeys)
	if !errors.Is(err, ErrIncompleteExtraction) {
		t.Fatalf("expected ErrIncompleteExtraction, got %v", err)
	}
	if !strings.Contains(err.Error(), `"notes"`) {
		t.Fatalf("error should name the missing key, got %v", err)
	}
}

func TestDecodeResultMalformedJSON(t *testing.T) {
	if _, err := decodeResult([]byte(`not json at all`), transcriptKeys); err == nil {
		t.Fatal("expected decode error for malformed response")
	}
	if _, err := decodeResult([]byte(`{"name": 42}`), []string{"name"}); err == nil {
		t.Fatal("expected decode error for mistyped field")
	}
}

func TestDefaultNotes(t *testing.T) {
	transcript := "Hi, Jane from Acme here"

	res := defaultNotes(Result{}, transcript)
	if res.Notes == nil || *res.Notes != transcript {
		t.Fatalf("expected transcript fallback, got %v", res.Notes)
	}

	blank := "   "
	res = defaultNotes(Result{Notes: &blank}, transcript)
	if *res.Notes != transcript {
		t.Fatalf("blank notes must fall back to transcript, got %q", *res.Notes)
	}

	kept := "call back tuesday"
	res = defaultNotes(Result{Notes: &kept}, transcript)
	if *res.Notes != kept {
		t.Fatalf("existing notes must be kept, got %q", *res.Notes)
	}
}

func TestMockExtractor(t *testing.T) {
	m := NewMockExtractor()

	res, err := m.FromTranscript(context.Background(), "hello booth")
	if err != nil {
		t.Fatalf("mock transcript: %v", err)
	}
	if res.Notes == nil || *res.Notes != "hello booth" {
		t.Fatalf("unexpected mock notes: %v", res.Notes)
	}

	res, err = m.FromImage(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("mock image: %v", err)
	}
	if res.OCRText == nil || *res.OCRText != "[mock ocr length=3]" {
		t.Fatalf("unexpected mock ocr: %v", res.OCRText)
	}
}

func TestOllamaExtractorFromTranscript(t *testing.T) {
	var got ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Response: `{"name":"Jane","email":"jane@co.com","phone":null,"company":"Acme","notes":null}`,
			Done:     true,
		})
	}))
	defer server.Close()

	e := NewOllamaExtractor(config.ExtractorConfig{
		Endpoint:  server.URL,
		TextModel: "llama3.2:latest",
		MaxTokens: 500,
	})

	res, err := e.FromTranscript(context.Background(), "Jane from Acme stopped by")
	if err != nil {
		t.Fatalf("from transcript: %v", err)
	}
	if got.Model != "llama3.2:latest" || got.Format != "json" || got.Stream {
		t.Fatalf("unexpected request shape: %+v", got)
	}
	if got.Prompt != "Jane from Acme stopped by" {
		t.Fatalf("transcript must be the prompt, got %q", got.Prompt)
	}
	if len(got.Images) != 0 {
		t.Fatal("transcript calls must not attach images")
	}
	if *res.Name != "Jane" {
		t.Fatalf("unexpected name: %v", res.Name)
	}
	if res.Notes == nil || *res.Notes != "Jane from Acme stopped by" {
		t.Fatalf("null notes must fall back to transcript, got %v", res.Notes)
	}
}

func TestOllamaExtractorFromImage(t *testing.T) {
	var got ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Response: `{"name":null,"email":null,"phone":null,"company":null,"interest":null,"ocrText":"ACME JANE"}`,
			Done:     true,
		})
	}))
	defer server.Close()

	e := NewOllamaExtractor(config.ExtractorConfig{
		Endpoint:    server.URL,
		VisionModel: "llama3.2-vision:latest",
	})

	res, err := e.FromImage(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("from image: %v", err)
	}
	if got.Model != "llama3.2-vision:latest" {
		t.Fatalf("expected vision model, got %q", got.Model)
	}
	if len(got.Images) != 1 || got.Images[0] == "" {
		t.Fatalf("expected one base64 image, got %v", got.Images)
	}
	if res.OCRText == nil || *res.OCRText != "ACME JANE" {
		t.Fatalf("unexpected ocr text: %v", res.OCRText)
	}
}

func TestOllamaExtractorBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	e := NewOllamaExtractor(config.ExtractorConfig{Endpoint: server.URL, TextModel: "missing"})
	if _, err := e.FromTranscript(context.Background(), "hi"); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}
