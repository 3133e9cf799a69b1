package plan

import (
	"strings"

	"github.com/jstevewhite/rsrch/internal/domain"
)

// requiredSections are appended to every outline if neither the LLM nor
// the intent's default outline supplies them, so every report carries a
// place for dissenting evidence and a references list.
var requiredSections = []string{
	"Alternatives & conflicting evidence",
	"Risks and limitations",
	"References",
}

// defaultOutline returns the section skeleton for one intent, used as the
// base an LLM-produced outline is merged into. It is not a fallback: a
// failed or empty planning call ends with ErrPlanningFailed.
func defaultOutline(intent domain.IntentKind) []string {
	switch intent {
	case domain.IntentResearch:
		return []string{
			"Executive summary", "Introduction", "Methods", "Results", "Discussion",
		}
	case domain.IntentComparative:
		return []string{
			"Executive summary", "Problem statement", "Decision criteria", "Options evaluated", "Recommendation", "Implementation considerations",
		}
	case domain.IntentCode, domain.IntentTutorial:
		return []string{
			"Executive summary", "Background", "Core concepts", "Implementation guidance", "Examples",
		}
	case domain.IntentNews:
		return []string{
			"Executive summary", "Background and scope", "Thematic analysis", "Key findings synthesis",
		}
	default:
		return []string{
			"Executive summary", "Background", "Core concepts", "Implementation guidance", "Examples",
		}
	}
}

// mergeOutline folds an LLM-produced outline onto the intent's default
// outline: the default's sections come first, then any unique LLM section
// is inserted before the first of the required trailing sections it finds,
// and every required section is guaranteed present at the end.
func mergeOutline(intent domain.IntentKind, llmOutline []string) []string {
	base := defaultOutline(intent)
	result := append([]string{}, base...)

	have := make(map[string]bool, len(result))
	for _, s := range result {
		have[normalize(s)] = true
	}

	for _, s := range llmOutline {
		s = strings.Trim(strings.TrimSpace(s), "# ")
		if s == "" || have[normalize(s)] {
			continue
		}
		have[normalize(s)] = true
		result = insertBeforeFirstOf(result, s, requiredSections)
	}

	for _, req := range requiredSections {
		if !have[normalize(req)] {
			result = append(result, req)
			have[normalize(req)] = true
		}
	}
	return result
}

func insertBeforeFirstOf(sections []string, insert string, anchors []string) []string {
	for _, anchor := range anchors {
		for i, s := range sections {
			if normalize(s) == normalize(anchor) {
				out := make([]string, 0, len(sections)+1)
				out = append(out, sections[:i]...)
				out = append(out, insert)
				out = append(out, sections[i:]...)
				return out
			}
		}
	}
	return append(sections, insert)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
