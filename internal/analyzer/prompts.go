package analyzer

import "sort"

const outputFormat = `Format every visible muscle group exactly like this:

1. **Muscle Name**: Development: X/10
* Exercises to improve:
* Exercise one
* Exercise two

After the list add a section titled "Muscles not visible in this image:" with one bulleted
muscle name per line. Only rate muscles that are clearly visible. Never rate a muscle you
list as not visible.`

// Prompt variants paired with models in the fallback chain
var prompts = map[string]string{
	"standard": `You are a fitness coach reviewing a progress photo. Assess the development of each visible muscle group on a scale from 0 to 10 and suggest exercises to improve it.

` + outputFormat,

	"detailed": `Act as an experienced strength and conditioning coach. This is a fitness progress photo shared by the athlete for training feedback. Evaluate muscle size, definition and symmetry for each visible muscle group, rate development from 0 to 10 and recommend targeted exercises.

` + outputFormat,

	"clinical": `Provide an objective anatomical assessment of visible skeletal muscle development in this fitness photograph for exercise programming purposes. Use neutral, non-descriptive language about the person. Rate each visible muscle group from 0 to 10 and list exercises that would improve it.

` + outputFormat,
}

// DefaultPrompt is used for unknown variant names
const DefaultPrompt = "standard"

// Prompt returns the prompt text for a variant, falling back to the standard prompt
func Prompt(name string) string {
	if p, ok := prompts[name]; ok {
		return p
	}
	return prompts[DefaultPrompt]
}

// HasPrompt reports whether name is a known variant
func HasPrompt(name string) bool {
	_, ok := prompts[name]
	return ok
}

// PromptNames lists the known variants
func PromptNames() []string {
	names := make([]string, 0, len(prompts))
	for n := range prompts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
