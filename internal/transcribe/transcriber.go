package transcribe

import (
	"context"
)

// Transcriber abstracts speech-to-text backends. Input is the path of a
// staged audio file; output is the plain-text transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
