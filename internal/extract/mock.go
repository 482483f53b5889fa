package extract

import (
	"context"
	"fmt"
)

type mockExtractor struct{}

// NewMockExtractor returns a deterministic extractor for tests and offline
// runs.
func NewMockExtractor() Extractor { return &mockExtractor{} }

func (m *mockExtractor) FromTranscript(_ context.Context, transcript string) (Result, error) {
	notes := transcript
	return Result{Notes: &notes}, nil
}

func (m *mockExtractor) FromImage(_ context.Context, image []byte) (Result, error) {
	ocr := fmt.Sprintf("[mock ocr length=%d]", len(image))
	return Result{OCRText: &ocr}, nil
}
