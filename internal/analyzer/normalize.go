package analyzer

import (
	"regexp"
	"strings"
)

var (
	thinkBlockRe   = regexp.MustCompile(`(?is)<think>.*?</think>`)
	markupTagRe    = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(?:\s[^<>]*)?/?>`)
	bulletRe       = regexp.MustCompile(`(?m)^[ \t]*(?:[-•–+]|\*)[ \t]+`)
	boldColonRe    = regexp.MustCompile(`\*\*([^*\n]+?):\*\*`)
	exerciseHeadRe = regexp.MustCompile(`(?im)^(?:\* )?(?:\*\*)?(?:recommended exercises|suggested exercises|exercises to improve|exercises)(?:\*\*)?[ \t]*:(?:\*\*)?[ \t]*`)
	notVisibleRe   = regexp.MustCompile(`(?im)^(?:\* )?(?:#+[ \t]*)?(?:\*\*)?(?:muscles not visible(?: in (?:this|the) image)?|not visible(?: in (?:this|the) image)?|non-visible muscles)(?:\*\*)?[ \t]*:(?:\*\*)?[ \t]*`)
	trailingWSRe   = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRunRe     = regexp.MustCompile(`\n{3,}`)
)

const (
	exercisesHeader  = "* Exercises to improve:"
	notVisibleHeader = "Muscles not visible in this image:"
)

// Normalize cleans a raw model answer into the shape the parsers expect
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = thinkBlockRe.ReplaceAllString(text, "")
	text = markupTagRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "* ")
	text = boldColonRe.ReplaceAllString(text, "**$1**:")
	text = exerciseHeadRe.ReplaceAllStringFunc(text, func(m string) string {
		return exercisesHeader + " "
	})
	text = notVisibleRe.ReplaceAllStringFunc(text, func(m string) string {
		return notVisibleHeader + " "
	})
	text = trailingWSRe.ReplaceAllString(text, "")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
