package score

import (
	"regexp"
	"strings"

	"github.com/boothworks/leadcore/internal/extract"
)

// Func computes a confidence value in [0,1] for an extraction result.
// Implementations must be pure; the assembler branches on the output.
type Func func(extract.Result) float64

// identityFieldCount is the number of identity fields the heuristic
// inspects: name, email, phone, company, interest.
const identityFieldCount = 5

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Heuristic is the default scorer: one point per non-blank identity field,
// half a point for a structurally valid email, minus one when OCR text is
// present but shorter than 10 characters, normalized by 5.5 and clamped.
func Heuristic(res extract.Result) float64 {
	var s float64
	for _, field := range []*string{res.Name, res.Email, res.Phone, res.Company, res.Interest} {
		if present(field) {
			s++
		}
	}

	if res.Email != nil && emailShape.MatchString(*res.Email) {
		s += 0.5
	}

	if res.OCRText != nil && *res.OCRText != "" && len(*res.OCRText) < 10 {
		s--
	}

	confidence := s / (identityFieldCount + 0.5)
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

func present(field *string) bool {
	return field != nil && strings.TrimSpace(*field) != ""
}
