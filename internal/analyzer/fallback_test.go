package analyzer

import (
	"strings"
	"testing"
)

func TestSalvage(t *testing.T) {
	d := NewRefusalDetector(nil, 0)

	text := "1. **Biceps**: Development: 6/10\n* Exercises to improve:\n* Curls\nI apologize, but rating the rest violates our content policy."
	got, ok := Salvage(text, d)
	if !ok {
		t.Fatal("Salvage() should recover the rated block")
	}
	if strings.Contains(got, "apologize") {
		t.Errorf("salvaged text still contains the refusal: %q", got)
	}
	if report := Parse(got); len(report.Muscles) != 1 || report.Muscles[0].Name != "Biceps" {
		t.Errorf("salvaged report = %+v", report.Muscles)
	}
}

func TestSalvage_NothingUsable(t *testing.T) {
	d := NewRefusalDetector(nil, 0)

	tests := []string{
		"I apologize, this violates our content policy",
		"Thanks for the photo.\nI apologize, this violates our content policy",
		"1. **Biceps**: Development: 6/10",
	}
	for _, text := range tests {
		if got, ok := Salvage(text, d); ok {
			t.Errorf("Salvage(%q) = %q, want nothing", text, got)
		}
	}
}

func TestFallback(t *testing.T) {
	if !strings.HasPrefix(FallbackAnalysis(), FallbackNotice) {
		t.Error("fallback analysis should start with the notice")
	}
	if r := FallbackReport(); !r.Fallback || len(r.Muscles) != 0 {
		t.Errorf("FallbackReport() = %+v", r)
	}
	if report := Parse(FallbackAnalysis()); len(report.Muscles) != 0 {
		t.Errorf("fallback text should not parse to ratings, got %+v", report.Muscles)
	}
}

func TestPrompt(t *testing.T) {
	for _, name := range PromptNames() {
		if !strings.Contains(Prompt(name), "Muscles not visible in this image:") {
			t.Errorf("prompt %s should describe the not-visible section", name)
		}
	}
	if Prompt("nonexistent") != Prompt(DefaultPrompt) {
		t.Error("unknown prompt should fall back to the default")
	}
	if !HasPrompt("clinical") || HasPrompt("nonexistent") {
		t.Error("HasPrompt() mismatch")
	}
}
