package classifier

import (
	"context"

	"github.com/nad-devs/Recall-sub000/internal/keywords"
	"github.com/nad-devs/Recall-sub000/internal/models"
	"github.com/nad-devs/Recall-sub000/internal/taxonomy"
)

// CreateNew is the delegate's answer when no existing label fits.
const CreateNew = "CREATE_NEW"

// Delegate is a best-effort text classifier, typically an LLM.
type Delegate interface {
	// Classify picks one of labels verbatim or returns CreateNew.
	Classify(ctx context.Context, text string, labels []string) (string, error)
	// ProposeLabel suggests a new category name, optionally a " > " path.
	ProposeLabel(ctx context.Context, text string, labels []string) (string, error)
}

// CategoryWriter persists categories proposed by the delegate.
type CategoryWriter interface {
	CreateCategory(ctx context.Context, name string, parentPath []string) (*models.Category, error)
}

// Snapshot is the taxonomy context one resolution runs against.
type Snapshot struct {
	Paths   *taxonomy.Index
	Mapping keywords.Mapping
}

// Strategy names the cascade step that produced a resolution.
type Strategy string

const (
	StrategyDomainOverride Strategy = "domain_override"
	StrategyDelegate       Strategy = "delegate"
	StrategyDelegateNew    Strategy = "delegate_new"
	StrategyScoring        Strategy = "scoring"
	StrategyUpgrade        Strategy = "upgrade"
	StrategyFallback       Strategy = "fallback"
)

// Resolution is the category chosen for a concept.
type Resolution struct {
	Label    string
	Path     taxonomy.Path
	Strategy Strategy
	Score    int
}

// FullLabel is the path label when a path is known, the flat label otherwise.
func (r Resolution) FullLabel() string {
	if len(r.Path) > 0 {
		return r.Path.String()
	}
	return r.Label
}

// Apply writes the resolution onto c when it differs from the current
// category and reports whether c changed.
func (r Resolution) Apply(c *models.Concept) bool {
	if r.Strategy == StrategyFallback || r.FullLabel() == "" {
		return false
	}
	if r.FullLabel() == c.CategoryLabel() {
		return false
	}

	path := r.Path
	if len(path) == 0 {
		if p := taxonomy.ParsePath(r.Label); p.Hierarchical() {
			path = p
		}
	}
	c.SetCategory(r.Label, path)
	return true
}
