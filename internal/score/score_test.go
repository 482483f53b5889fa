package score

import (
	"math"
	"testing"

	"github.com/boothworks/leadcore/internal/extract"
)

func ptr(s string) *string { return &s }

func TestHeuristicFullResult(t *testing.T) {
	res := extract.Result{
		Name:     ptr("Jane Doe"),
		Email:    ptr("jane@co.com"),
		Phone:    ptr("+1 555 0100"),
		Company:  ptr("Acme"),
		Interest: ptr("CTO"),
		OCRText:  ptr("Jane Doe Acme Co jane@co.com +1 555 0100"),
	}
	if got := Heuristic(res); got != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", got)
	}
}

func TestHeuristicEmptyResultClampsToZero(t *testing.T) {
	res := extract.Result{OCRText: ptr("abc")}
	if got := Heuristic(res); got != 0 {
		t.Fatalf("expected confidence 0, got %v", got)
	}
}

func TestHeuristicPartialResult(t *testing.T) {
	// name, email, company present; valid email bonus; long OCR text.
	res := extract.Result{
		Name:    ptr("Jane Doe"),
		Email:   ptr("jane@co.com"),
		Company: ptr("Acme"),
		OCRText: ptr("Jane Doe Acme Co jane@co.com"),
	}
	want := 3.5 / 5.5
	if got := Heuristic(res); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected confidence %v, got %v", want, got)
	}
}

func TestHeuristicBlankFieldsDoNotCount(t *testing.T) {
	res := extract.Result{
		Name:    ptr("   "),
		Email:   ptr(""),
		OCRText: ptr("plenty of text on this card"),
	}
	if got := Heuristic(res); got != 0 {
		t.Fatalf("expected blank fields to score 0, got %v", got)
	}
}

func TestHeuristicInvalidEmailGetsNoBonus(t *testing.T) {
	base := extract.Result{
		Email:   ptr("not an email"),
		OCRText: ptr("plenty of text on this card"),
	}
	want := 1.0 / 5.5
	if got := Heuristic(base); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected no bonus for invalid email, got %v", got)
	}
}

func TestHeuristicMonotonicInFieldCount(t *testing.T) {
	ocr := ptr("plenty of text on this card")
	fields := []func(*extract.Result){
		func(r *extract.Result) { r.Name = ptr("Jane") },
		func(r *extract.Result) { r.Phone = ptr("555-0100") },
		func(r *extract.Result) { r.Company = ptr("Acme") },
		func(r *extract.Result) { r.Interest = ptr("CTO") },
	}
	prev := Heuristic(extract.Result{OCRText: ocr})
	res := extract.Result{OCRText: ocr}
	for i, add := range fields {
		add(&res)
		got := Heuristic(res)
		if got < prev {
			t.Fatalf("confidence decreased after adding field %d: %v -> %v", i, prev, got)
		}
		prev = got
	}
}

func TestHeuristicShortOCRPenalty(t *testing.T) {
	with := extract.Result{
		Name:    ptr("Jane"),
		Company: ptr("Acme"),
		OCRText: ptr("abc"),
	}
	without := extract.Result{
		Name:    ptr("Jane"),
		Company: ptr("Acme"),
		OCRText: ptr("a perfectly long ocr text"),
	}
	if Heuristic(with) >= Heuristic(without) {
		t.Fatalf("expected short ocr text to lower confidence")
	}
	want := 1.0 / 5.5
	if got := Heuristic(with); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected penalized confidence %v, got %v", want, got)
	}
}
