package analyzer

import "strings"

// LowQualityPhrases mark answers where the model could not see the image well enough
var LowQualityPhrases = []string{
	"too pixelated",
	"too blurry",
	"image quality is too low",
	"image quality is too poor",
	"resolution is too low",
	"image is too dark",
	"image is too small",
}

// IsLowQuality reports whether the answer says the photo itself is unusable
func IsLowQuality(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range LowQualityPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
