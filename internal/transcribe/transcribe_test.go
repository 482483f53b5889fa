package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/boothworks/leadcore/internal/config"
)

func TestMockTranscriber(t *testing.T) {
	m := NewMockTranscriber()
	got, err := m.Transcribe(context.Background(), "/tmp/staging/lead_1_voice.m4a")
	if err != nil {
		t.Fatalf("mock transcribe: %v", err)
	}
	if got != "[mock transcript of lead_1_voice.m4a]" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestExecTranscriber(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	tr, err := NewExecTranscriber(config.TranscriberConfig{
		Command: `sh -c 'echo "{\"text\": \"hello from exec\"}"'`,
		Model:   "base.en",
	})
	if err != nil {
		t.Fatalf("new exec transcriber: %v", err)
	}

	got, err := tr.Transcribe(context.Background(), "/tmp/does-not-matter.wav")
	if err != nil {
		t.Fatalf("exec transcribe: %v", err)
	}
	if got != "hello from exec" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestExecTranscriberSurfacesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	tr, err := NewExecTranscriber(config.TranscriberConfig{
		Command: `sh -c 'echo "model file missing" >&2; exit 1'`,
	})
	if err != nil {
		t.Fatalf("new exec transcriber: %v", err)
	}

	_, err = tr.Transcribe(context.Background(), "/tmp/x.wav")
	if err == nil || !strings.Contains(err.Error(), "model file missing") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestExecTranscriberRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecTranscriber(config.TranscriberConfig{Command: "   "}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestOpenAITranscriber(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "voice.m4a")
	if err := os.WriteFile(audioPath, []byte("fake audio bytes"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var gotAuth, gotModel, gotLanguage, gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFilename = header.Filename
		} else {
			t.Errorf("form file: %v", err)
		}
		json.NewEncoder(w).Encode(transcriptionResponse{Text: "hi, Jane from Acme"})
	}))
	defer server.Close()

	tr := NewOpenAITranscriber(config.TranscriberConfig{
		Endpoint: server.URL,
		APIKey:   "sk-test",
		Model:    "whisper-1",
		Language: "en",
	})

	got, err := tr.Transcribe(context.Background(), audioPath)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got != "hi, Jane from Acme" {
		t.Fatalf("unexpected transcript: %q", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotModel != "whisper-1" || gotLanguage != "en" {
		t.Fatalf("unexpected form fields: model=%q language=%q", gotModel, gotLanguage)
	}
	if gotFilename != "voice.m4a" {
		t.Fatalf("unexpected upload filename: %q", gotFilename)
	}
}

func TestOpenAITranscriberBackendError(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "voice.m4a")
	if err := os.WriteFile(audioPath, []byte("x"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	tr := NewOpenAITranscriber(config.TranscriberConfig{Endpoint: server.URL, Model: "whisper-1"})
	if _, err := tr.Transcribe(context.Background(), audioPath); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}
