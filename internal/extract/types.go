package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Result is the normalized shape produced by every extraction backend.
// A nil field means the capability reported the value as unknown; the key
// itself was still present in the response.
type Result struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Company  *string `json:"company"`
	Interest *string `json:"interest"`
	Notes    *string `json:"notes"`
	OCRText  *string `json:"ocrText"`
}

// Extractor abstracts structured-extraction backends.
type Extractor interface {
	// FromTranscript extracts lead fields from a speech transcript.
	FromTranscript(ctx context.Context, transcript string) (Result, error)
	// FromImage extracts lead fields and raw OCR text from an image.
	FromImage(ctx context.Context, image []byte) (Result, error)
}

// ErrIncompleteExtraction indicates the capability returned valid JSON but
// omitted one of the required keys outright, instead of sending null.
var ErrIncompleteExtraction = errors.New("extraction response missing required key")

var (
	transcriptKeys = []string{"name", "email", "phone", "company", "notes"}
	imageKeys      = []string{"name", "email", "phone", "company", "interest", "ocrText"}
)

const transcriptSystemPrompt = `You are a professional assistant. Extract lead information from the provided transcription.
Return ONLY a JSON object with the following keys: name, email, phone, company, notes.
If a field is unknown, use null.`

const imageSystemPrompt = `You are a business card information extractor.
Extract all contact information from the business card image.
Extract as much information as possible, even if partial or unclear.
If you detect any text, names, or contact details, include them.
Return ONLY valid JSON with these exact keys:
name, email, phone, company, interest, ocrText

- name: Full name of the person
- email: Email address
- phone: Phone number
- company: Company name
- interest: Job title or role (if available)
- ocrText: All text extracted from the card

If any field is not found, use null.`

const imageUserPrompt = "Extract all contact information from this business card."

// decodeResult parses a capability response and enforces the key contract:
// every required key must be present, null standing in for unknown.
func decodeResult(raw []byte, required []string) (Result, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return Result{}, fmt.Errorf("decode extraction response: %w", err)
	}
	for _, key := range required {
		if _, ok := keys[key]; !ok {
			return Result{}, fmt.Errorf("%w: %q", ErrIncompleteExtraction, key)
		}
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, fmt.Errorf("decode extraction fields: %w", err)
	}
	return res, nil
}

// defaultNotes substitutes the raw transcript when the capability supplied
// no usable notes.
func defaultNotes(res Result, transcript string) Result {
	if res.Notes == nil || strings.TrimSpace(*res.Notes) == "" {
		res.Notes = &transcript
	}
	return res
}
