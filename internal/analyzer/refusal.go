// Package analyzer turns free-text vision model answers into muscle reports.
// Everything here is pure: no I/O, no clocks, safe for concurrent use.
package analyzer

import "strings"

// DefaultRefusalWindow is how many bytes on each side of a trigger are
// searched for corroborating context
const DefaultRefusalWindow = 80

// RefusalRule pairs a trigger phrase with the context that must appear near it.
// A rule with no context phrases fires on the trigger alone.
type RefusalRule struct {
	Trigger string
	Context []string
}

var policyContext = []string{
	"policy",
	"policies",
	"guidelines",
	"terms of service",
	"terms of use",
	"violate",
	"inappropriate",
	"not appropriate",
	"explicit",
	"nudity",
	"sexual",
	"safety reasons",
	"not comfortable",
	"must decline",
}

// DefaultRefusalRules is the phrase table used by the analysis pipeline
var DefaultRefusalRules = []RefusalRule{
	{Trigger: "i cannot", Context: policyContext},
	{Trigger: "i can't", Context: policyContext},
	{Trigger: "i can’t", Context: policyContext},
	{Trigger: "i am unable", Context: policyContext},
	{Trigger: "i'm unable", Context: policyContext},
	{Trigger: "i’m unable", Context: policyContext},
	{Trigger: "i won't", Context: policyContext},
	{Trigger: "i apologize", Context: policyContext},
	{Trigger: "sorry", Context: policyContext},
	{Trigger: "unfortunately", Context: policyContext},
	{Trigger: "i can't assist with", Context: nil},
	{Trigger: "i cannot assist with", Context: nil},
	{Trigger: "i'm not able to help with", Context: nil},
	{Trigger: "i must decline", Context: nil},
}

// RefusalDetector classifies model answers that decline the task
type RefusalDetector struct {
	rules  []RefusalRule
	window int
}

// NewRefusalDetector builds a detector. Nil rules select DefaultRefusalRules and a
// non-positive window selects DefaultRefusalWindow.
func NewRefusalDetector(rules []RefusalRule, window int) *RefusalDetector {
	if rules == nil {
		rules = DefaultRefusalRules
	}
	if window <= 0 {
		window = DefaultRefusalWindow
	}
	normalized := make([]RefusalRule, len(rules))
	for i, r := range rules {
		ctx := make([]string, len(r.Context))
		for j, c := range r.Context {
			ctx[j] = asciiLower(c)
		}
		normalized[i] = RefusalRule{Trigger: asciiLower(r.Trigger), Context: ctx}
	}
	return &RefusalDetector{rules: normalized, window: window}
}

// IsRefusal reports whether text contains a corroborated refusal
func (d *RefusalDetector) IsRefusal(text string) bool {
	return d.Index(text) >= 0
}

// Index returns the byte offset of the earliest corroborated trigger, or -1
func (d *RefusalDetector) Index(text string) int {
	lower := asciiLower(text)
	best := -1
	for _, rule := range d.rules {
		if rule.Trigger == "" {
			continue
		}
		from := 0
		for {
			i := strings.Index(lower[from:], rule.Trigger)
			if i < 0 {
				break
			}
			pos := from + i
			if best >= 0 && pos >= best {
				break
			}
			if d.corroborated(lower, pos, len(rule.Trigger), rule.Context) {
				best = pos
				break
			}
			from = pos + len(rule.Trigger)
		}
	}
	return best
}

func (d *RefusalDetector) corroborated(lower string, pos, n int, context []string) bool {
	if len(context) == 0 {
		return true
	}
	start := pos - d.window
	if start < 0 {
		start = 0
	}
	end := pos + n + d.window
	if end > len(lower) {
		end = len(lower)
	}
	around := lower[start:end]
	for _, c := range context {
		if c != "" && strings.Contains(around, c) {
			return true
		}
	}
	return false
}

// asciiLower lowercases ASCII letters only so byte offsets match the input
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
