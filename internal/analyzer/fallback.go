package analyzer

import "strings"

// FallbackNotice starts every generic fallback answer so clients can label it
const FallbackNotice = "Automated muscle analysis was not available for this image."

// FallbackAnalysis is returned when every model attempt declined the image
// and nothing usable could be recovered
func FallbackAnalysis() string {
	return FallbackNotice + `

We could not produce individual ratings, so here is general guidance instead.

* Train each major muscle group two times per week with progressive overload.
* Balance pushing and pulling work to keep shoulders healthy.
* Include compound lifts such as squats, deadlifts, presses and rows.
* Prioritize sleep and adequate protein for recovery.

For a detailed assessment, upload a well-lit photo that shows the muscles you want rated.`
}

// FallbackReport is the report that accompanies FallbackAnalysis
func FallbackReport() *Report {
	return &Report{Muscles: []MuscleRating{}, NotVisible: []string{}, Fallback: true}
}

// Salvage recovers the usable part of an answer that ends in a refusal.
// It keeps whole lines before the refusal and accepts them only if they parse
// to at least one rated muscle.
func Salvage(text string, detector *RefusalDetector) (string, bool) {
	idx := detector.Index(text)
	if idx <= 0 {
		return "", false
	}

	head := text[:idx]
	if nl := strings.LastIndexByte(head, '\n'); nl >= 0 {
		head = head[:nl]
	} else {
		return "", false
	}

	cleaned := Normalize(head)
	if cleaned == "" || len(Parse(cleaned).Muscles) == 0 {
		return "", false
	}
	return cleaned, true
}
