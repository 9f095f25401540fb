package analyzer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MuscleRating is one rated muscle group
type MuscleRating struct {
	Name      string   `json:"name"`
	Rating    int      `json:"rating"`
	Exercises []string `json:"exercises"`
}

// Report is the structured form of an analysis
type Report struct {
	Muscles    []MuscleRating `json:"muscles"`
	NotVisible []string       `json:"notVisible"`
	Strategy   string         `json:"strategy,omitempty"`
	Fallback   bool           `json:"fallback"`
}

// Strategy is one parser in the cascade
type Strategy struct {
	Name  string
	Parse func(text string) []MuscleRating
}

// Strategies are tried in order; the first yielding a muscle wins
var Strategies = []Strategy{
	{Name: "numbered-bold", Parse: ParseNumberedBold},
	{Name: "heading", Parse: ParseHeading},
	{Name: "inline", Parse: ParseInline},
	{Name: "loose", Parse: ParseLoose},
}

var (
	ratingRe       = regexp.MustCompile(`(?i)(\d{1,2}(?:\.\d+)?)\s*(?:/|out of)\s*10\b`)
	numberedBoldRe = regexp.MustCompile(`^\s*\d+[.)]\s*\*\*([^*\n]+?)\*\*\s*:?\s*(.*)$`)
	markdownHeadRe = regexp.MustCompile(`^#{1,6}\s*(?:\d+[.)]\s*)?(?:\*\*)?([^*#:\n]+?)(?:\*\*)?\s*:?\s*$`)
	boldLineRe     = regexp.MustCompile(`^(?:\d+[.)]\s*)?\*\*([^*\n]+?)\*\*\s*:?\s*$`)
	inlineRe       = regexp.MustCompile(`(?i)^\s*(?:\*\s+|\d+[.)]\s*)?(?:\*\*)?([a-z][a-z '’/()-]{1,40}?)(?:\*\*)?\s*(?::|-|–)\s*(\d{1,2}(?:\.\d+)?\s*(?:/|out of)\s*10\b.*)$`)
	looseNameRe    = regexp.MustCompile(`(?i)^[\s*#\d.)-]*(?:\*\*)?([a-z][a-z '’/()-]{1,40}?)(?:\*\*)?\s*[:\-–(]`)
	listMarkerRe   = regexp.MustCompile(`^\s*(?:\*|\d+[.)])\s+`)
	bareBulletRe   = regexp.MustCompile(`^\*\s+[^*\s]`)
	parentheticRe  = regexp.MustCompile(`\s*\([^)]*\)`)
	listSplitRe    = regexp.MustCompile(`\s*(?:,|;|\band\b)\s*`)
)

const maxNameWords = 4

// Answers that say every muscle is visible
var placeholderNames = map[string]bool{
	"-":                       true,
	"all visible":             true,
	"all muscles visible":     true,
	"all muscles are visible": true,
	"n/a":                     true,
	"na":                      true,
	"none":                    true,
	"nothing":                 true,
}

// Words that label a value or a section rather than name a muscle
var labelWords = map[string]bool{
	"analysis":        true,
	"assessment":      true,
	"definition":      true,
	"development":     true,
	"overall":         true,
	"overall rating":  true,
	"overall score":   true,
	"overview":        true,
	"rating":          true,
	"recommendations": true,
	"score":           true,
	"size":            true,
	"summary":         true,
	"symmetry":        true,
	"total":           true,
}

// Parse runs the strategy cascade. It never fails: text with no recognizable
// ratings yields an empty report.
func Parse(text string) *Report {
	notVisible, body := splitNotVisible(text)
	report := &Report{Muscles: []MuscleRating{}, NotVisible: notVisible}

	hidden := make(map[string]bool, len(notVisible))
	for _, n := range notVisible {
		hidden[muscleKey(n)] = true
	}

	for _, s := range Strategies {
		var kept []MuscleRating
		for _, m := range s.Parse(body) {
			if !hidden[muscleKey(m.Name)] {
				kept = append(kept, m)
			}
		}
		if len(kept) > 0 {
			report.Muscles = kept
			report.Strategy = s.Name
			break
		}
	}
	return report
}

// ParseNumberedBold handles "1. **Biceps**: Development: 6/10" blocks
func ParseNumberedBold(text string) []MuscleRating {
	return parseBlocks(text, func(line string) (string, string, bool) {
		m := numberedBoldRe.FindStringSubmatch(line)
		if m == nil {
			return "", "", false
		}
		return m[1], m[2], true
	})
}

// ParseHeading handles "### Biceps" or "**Biceps**" lines followed by a rating line
func ParseHeading(text string) []MuscleRating {
	return parseBlocks(text, func(line string) (string, string, bool) {
		if m := markdownHeadRe.FindStringSubmatch(line); m != nil {
			return m[1], "", true
		}
		if m := boldLineRe.FindStringSubmatch(line); m != nil {
			return m[1], "", true
		}
		return "", "", false
	})
}

// ParseInline handles "Biceps: 6/10" and "Biceps - 6 out of 10" lines
func ParseInline(text string) []MuscleRating {
	return parseBlocks(text, func(line string) (string, string, bool) {
		m := inlineRe.FindStringSubmatch(line)
		if m == nil || labelWords[muscleKey(m[1])] {
			return "", "", false
		}
		return m[1], m[2], true
	})
}

// ParseLoose takes any line with a leading name and an n/10 somewhere after it
func ParseLoose(text string) []MuscleRating {
	var out []MuscleRating
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		rating, ok := findRating(line)
		if !ok {
			continue
		}
		m := looseNameRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := cleanName(m[1])
		key := muscleKey(name)
		if name == "" || labelWords[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, MuscleRating{Name: name, Rating: rating, Exercises: []string{}})
	}
	return out
}

type headerFunc func(line string) (name, rest string, ok bool)

// parseBlocks splits text at header lines and reads each block's rating and exercises.
// Blocks that never state a rating are dropped.
func parseBlocks(text string, header headerFunc) []MuscleRating {
	var (
		out        []MuscleRating
		cur        *MuscleRating
		hasRating  bool
		inExercise bool
	)
	seen := make(map[string]bool)

	flush := func() {
		if cur != nil && hasRating {
			key := muscleKey(cur.Name)
			if !seen[key] && !labelWords[key] {
				seen[key] = true
				out = append(out, *cur)
			}
		}
		cur, hasRating, inExercise = nil, false, false
	}

	for _, line := range strings.Split(text, "\n") {
		if name, rest, ok := header(line); ok {
			flush()
			name = cleanName(name)
			if name == "" {
				continue
			}
			cur = &MuscleRating{Name: name, Exercises: []string{}}
			if r, ok := findRating(rest); ok {
				cur.Rating, hasRating = r, true
			}
			continue
		}
		if cur == nil {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, exercisesHeader) {
			inExercise = true
			cur.Exercises = append(cur.Exercises, splitItems(strings.TrimPrefix(trimmed, exercisesHeader))...)
			continue
		}

		if r, ok := findRating(trimmed); ok {
			if !hasRating {
				cur.Rating, hasRating = r, true
			}
			inExercise = false
			continue
		}

		if inExercise {
			if listMarkerRe.MatchString(trimmed) {
				if item := cleanItem(trimmed); item != "" {
					cur.Exercises = append(cur.Exercises, item)
				}
				continue
			}
			inExercise = false
		}
	}
	flush()
	return out
}

// splitNotVisible pulls the "Muscles not visible in this image:" section out of
// text and returns the listed names and the remaining text. The section is an
// inline list, bare "* name" bullets, or one comma list on the next line. It
// ends at the first line that rates a muscle or opens a muscle block.
func splitNotVisible(text string) ([]string, string) {
	lines := strings.Split(text, "\n")
	var (
		names   []string
		body    []string
		inList  bool
		inlined bool
	)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if idx := strings.Index(asciiLower(trimmed), asciiLower(notVisibleHeader)); idx >= 0 {
			inList = true
			rest := strings.TrimSpace(trimmed[idx+len(notVisibleHeader):])
			inlined = rest != ""
			names = append(names, splitItems(rest)...)
			continue
		}
		if inList {
			switch {
			case endsNotVisible(trimmed):
			case bareBulletRe.MatchString(trimmed):
				names = append(names, splitItems(cleanItem(trimmed))...)
				continue
			case trimmed == "" && !inlined && len(names) == 0:
				continue
			case !inlined && len(names) == 0:
				if items, ok := nameList(trimmed); ok {
					names = append(names, items...)
					inlined = true
					continue
				}
			}
			inList = false
		}
		body = append(body, line)
	}

	return dedupe(names), strings.Join(body, "\n")
}

// endsNotVisible reports whether line belongs to the rated part of the answer
func endsNotVisible(line string) bool {
	if strings.HasPrefix(line, exercisesHeader) {
		return true
	}
	if _, ok := findRating(line); ok {
		return true
	}
	return numberedBoldRe.MatchString(line) || markdownHeadRe.MatchString(line) || boldLineRe.MatchString(line)
}

// nameList accepts an unbulleted line of short, separated names
func nameList(line string) ([]string, bool) {
	items := splitItems(line)
	if len(items) == 0 {
		return nil, false
	}
	for _, item := range items {
		if len(strings.Fields(item)) > maxNameWords {
			return nil, false
		}
	}
	return items, true
}

func findRating(s string) (int, bool) {
	m := ratingRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return clampRating(f), true
}

func clampRating(f float64) int {
	r := int(math.Round(f))
	if r < 0 {
		return 0
	}
	if r > 10 {
		return 10
	}
	return r
}

func splitItems(s string) []string {
	var out []string
	for _, part := range listSplitRe.Split(s, -1) {
		if item := cleanItem(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func cleanItem(s string) string {
	s = listMarkerRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(strings.TrimRight(s, ".;, "))
}

func cleanName(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.Trim(s, " \t*#:-")
	return strings.Join(strings.Fields(s), " ")
}

// muscleKey compares names ignoring case and parenthetical notes
func muscleKey(name string) string {
	name = parentheticRe.ReplaceAllString(name, "")
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		k := muscleKey(n)
		if k == "" || seen[k] || placeholderNames[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	return out
}
