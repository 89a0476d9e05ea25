package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nad-devs/Recall-sub000/internal/models"
	"github.com/nad-devs/Recall-sub000/internal/relations"
	"github.com/nad-devs/Recall-sub000/internal/storage"
)

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func formatConcept(c *models.Concept) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n", escapeMarkdown(c.Title))
	fmt.Fprintf(&sb, "*Category:* %s\n", escapeMarkdown(c.CategoryLabel()))
	fmt.Fprintf(&sb, "*ID:* `%s`\n", escapeMarkdown(c.ID))
	if len(c.KeyPoints) > 0 {
		sb.WriteString("\n")
		for _, p := range c.KeyPoints {
			fmt.Fprintf(&sb, "• %s\n", escapeMarkdown(p))
		}
	}
	if c.Summary != "" && c.Summary != c.Title {
		fmt.Fprintf(&sb, "\n_%s_", escapeMarkdown(c.Summary))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCategories(labels []string) string {
	var sb strings.Builder
	sb.WriteString("*Categories:*\n")
	for _, label := range labels {
		depth := strings.Count(label, models.PathSeparator)
		leaf := label
		if i := strings.LastIndex(label, models.PathSeparator); i >= 0 {
			leaf = label[i+len(models.PathSeparator):]
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(escapeMarkdown("- " + leaf))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatEdges(edges []relations.Edge) string {
	var sb strings.Builder
	if edges[0].Kind == relations.Manual {
		sb.WriteString("*Related concepts:*\n")
	} else {
		sb.WriteString("*Similar concepts:*\n")
	}
	for _, e := range edges {
		line := e.Title
		if line == "" {
			line = e.ID
		}
		if e.Kind == relations.Auto {
			line = fmt.Sprintf("%s (%.2f)", line, e.Score)
		}
		sb.WriteString(escapeMarkdown("- " + line))
		if e.ID != "" {
			fmt.Fprintf(&sb, " `%s`", escapeMarkdown(e.ID))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func describeRelationError(err error) string {
	if errors.Is(err, relations.ErrSelfRelation) {
		return "A concept can't be related to itself."
	}

	var sideErr *relations.SideError
	if !errors.As(err, &sideErr) {
		return "Sorry, something went wrong. Please try again."
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Sprintf("The %s concept %s doesn't exist.", sideErr.Side, sideErr.ConceptID)
	case errors.Is(err, storage.ErrConflict):
		return "The concepts changed while I was updating them. Please try again."
	case sideErr.Side == relations.SideBoth:
		return "Sorry, I couldn't save the relation. Please try again."
	default:
		return fmt.Sprintf("Sorry, I couldn't update the %s concept %s.", sideErr.Side, sideErr.ConceptID)
	}
}
