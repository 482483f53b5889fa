package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/boothworks/leadcore/internal/config"
	"github.com/mattn/go-shellwords"
)

type execTranscriber struct {
	cmd []string
	cfg config.TranscriberConfig
	mu  sync.Mutex
}

type execResult struct {
	Text string `json:"text"`
}

// NewExecTranscriber builds a transcriber that invokes a whisper-style CLI.
// The command must print {"text": "..."} on stdout.
func NewExecTranscriber(cfg config.TranscriberConfig) (Transcriber, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse transcriber command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("transcriber command is empty")
	}
	return &execTranscriber{cmd: args, cfg: cfg}, nil
}

func (t *execTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	args := append([]string{}, t.cmd...)
	base := args[0]
	cmdArgs := args[1:]
	cmdArgs = append(cmdArgs, "--audio", audioPath)
	if t.cfg.Model != "" {
		cmdArgs = append(cmdArgs, "--model", t.cfg.Model)
	}
	if t.cfg.Language != "" {
		cmdArgs = append(cmdArgs, "--language", t.cfg.Language)
	}

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("transcriber command failed: %w: %s", err, stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("decode transcriber response: %w", err)
	}
	return resp.Text, nil
}
