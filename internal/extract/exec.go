package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execExtractor struct {
	cmd []string
	mu  sync.Mutex
}

// NewExecExtractor builds an extractor that shells out to an external
// command. The command receives a JSON task on stdin and must print the
// extraction object on stdout.
func NewExecExtractor(command string) (Extractor, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse extractor command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("extractor command is empty")
	}
	return &execExtractor{cmd: args}, nil
}

func (e *execExtractor) FromTranscript(ctx context.Context, transcript string) (Result, error) {
	out, err := e.run(ctx, map[string]any{
		"task":   "transcript",
		"system": transcriptSystemPrompt,
		"prompt": transcript,
	})
	if err != nil {
		return Result{}, err
	}
	res, err := decodeResult(out, transcriptKeys)
	if err != nil {
		return Result{}, err
	}
	return defaultNotes(res, transcript), nil
}

func (e *execExtractor) FromImage(ctx context.Context, image []byte) (Result, error) {
	out, err := e.run(ctx, map[string]any{
		"task":      "image",
		"system":    imageSystemPrompt,
		"prompt":    imageUserPrompt,
		"image_b64": base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return Result{}, err
	}
	return decodeResult(out, imageKeys)
}

func (e *execExtractor) run(ctx context.Context, payload map[string]any) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	input, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("extractor command failed: %w", err)
	}
	return output, nil
}
