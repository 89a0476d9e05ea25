package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PathSeparator joins category names into a canonical path label.
const PathSeparator = " > "

// Category is a node of the user-grown taxonomy. A nil ParentID marks a root.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Concept represents a technical note extracted from a conversation
type Concept struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Category        string      `json:"category"`
	CategoryPath    []string    `json:"categoryPath,omitempty"`
	Summary         string      `json:"summary"`
	KeyPoints       []string    `json:"keyPoints"`
	Details         Details     `json:"details,omitempty"`
	RelatedConcepts RelatedList `json:"relatedConcepts"`
	ConfidenceScore float64     `json:"confidenceScore"`
	LastUpdated     time.Time   `json:"lastUpdated"`
	ConversationID  string      `json:"conversationId,omitempty"`
	Version         int64       `json:"version"`
}

// SetCategory writes the flat label and the path together so that the label
// always names the leaf of the path when a path is present.
func (c *Concept) SetCategory(label string, path []string) {
	if len(path) > 0 {
		c.CategoryPath = append([]string(nil), path...)
		c.Category = path[len(path)-1]
		return
	}
	c.CategoryPath = nil
	c.Category = label
}

// CategoryLabel returns the most specific label known for the concept.
func (c *Concept) CategoryLabel() string {
	if len(c.CategoryPath) > 0 {
		return strings.Join(c.CategoryPath, PathSeparator)
	}
	return c.Category
}

// Text returns the concept fields used for categorization.
func (c *Concept) Text() ConceptText {
	return ConceptText{
		Title:        c.Title,
		Category:     c.Category,
		CategoryPath: c.CategoryPath,
		Summary:      c.Summary,
		KeyPoints:    c.KeyPoints,
	}
}

// ConceptText is the slice of a concept that the keyword learner and the
// resolver read.
type ConceptText struct {
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	CategoryPath []string `json:"categoryPath,omitempty"`
	Summary      string   `json:"summary"`
	KeyPoints    []string `json:"keyPoints"`
}

// Label is the category label the concept is filed under.
func (t ConceptText) Label() string {
	if len(t.CategoryPath) > 0 {
		return strings.Join(t.CategoryPath, PathSeparator)
	}
	return strings.TrimSpace(t.Category)
}

// Body concatenates title, summary and key points.
func (t ConceptText) Body() string {
	parts := make([]string, 0, len(t.KeyPoints)+2)
	parts = append(parts, t.Title, t.Summary)
	parts = append(parts, t.KeyPoints...)
	return strings.Join(parts, " ")
}

// SimilarConcept is an auto-computed relationship returned by the similarity
// ranking. It is never stored as an edge.
type SimilarConcept struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"similarityScore"`
}

// Details holds the structured extraction record stored as JSONB
type Details map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface for database retrieval
func (d *Details) Scan(value interface{}) error {
	if value == nil {
		*d = Details{}
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("scan details: %w", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, d)
}

// ConceptDraft is what the upstream extraction produces before the concept
// is categorized and stored.
type ConceptDraft struct {
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"keyPoints"`
	Details         Details  `json:"details,omitempty"`
	ConfidenceScore float64  `json:"confidenceScore"`
	ConversationID  string   `json:"conversationId,omitempty"`
}
