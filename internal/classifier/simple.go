package classifier

import (
	"strings"

	"github.com/nad-devs/Recall-sub000/internal/models"
)

// DefaultCategory is assigned when nothing better is known.
const DefaultCategory = "General"

const maxTitleLength = 120

// ParseDraft builds a draft without any model: the first line becomes the
// title, bullet lines become key points and everything else the summary.
func ParseDraft(content string) models.ConceptDraft {
	draft := models.ConceptDraft{Category: DefaultCategory}

	var summary []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if draft.Title == "" {
			draft.Title = truncateTitle(strings.TrimSpace(strings.TrimLeft(line, "#")))
			continue
		}
		if point, ok := bullet(line); ok {
			draft.KeyPoints = append(draft.KeyPoints, point)
			continue
		}
		summary = append(summary, line)
	}

	draft.Summary = strings.Join(summary, " ")
	if draft.Summary == "" {
		draft.Summary = draft.Title
	}
	return draft
}

func bullet(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}

func truncateTitle(s string) string {
	r := []rune(s)
	if len(r) <= maxTitleLength {
		return s
	}
	return string(r[:maxTitleLength])
}
