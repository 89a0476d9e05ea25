package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nad-devs/Recall-sub000/internal/models"
)

var (
	// ErrNotFound is returned when a concept or category does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a row changed since it was read.
	ErrConflict = errors.New("version conflict")
)

// ConceptError ties a storage failure to the concept row it concerns.
type ConceptError struct {
	ID  string
	Err error
}

func (e *ConceptError) Error() string {
	return fmt.Sprintf("concept %s: %v", e.ID, e.Err)
}

func (e *ConceptError) Unwrap() error {
	return e.Err
}

// RelatedUpdate replaces one concept's manual relationship list, provided
// the concept still carries Version.
type RelatedUpdate struct {
	ID      string
	Related models.RelatedList
	Version int64
}

type ConceptStorage interface {
	GetConcept(ctx context.Context, id string) (*models.Concept, error)
	// CreateConcept inserts c and sets its Version.
	CreateConcept(ctx context.Context, c *models.Concept) error
	// UpdateConcept writes c if the stored version still equals c.Version,
	// then increments c.Version.
	UpdateConcept(ctx context.Context, c *models.Concept) error
	// UpdateRelatedPair applies both updates atomically or neither.
	UpdateRelatedPair(ctx context.Context, a, b RelatedUpdate) error
	ListConceptTexts(ctx context.Context, limit int) ([]models.ConceptText, error)
	CorpusUpdatedAt(ctx context.Context) (time.Time, error)
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
	// Rank returns the concepts most similar to id, best first.
	Rank(ctx context.Context, id string) ([]models.SimilarConcept, error)
}

type CategoryStorage interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	// CreateCategory creates name under parentPath, creating missing
	// ancestors root first. Existing nodes are reused.
	CreateCategory(ctx context.Context, name string, parentPath []string) (*models.Category, error)
}

type Storage interface {
	ConceptStorage
	CategoryStorage
	Close() error
}

// SimilarityOptions bound the auto-computed relationship ranking.
type SimilarityOptions struct {
	Limit     int
	Threshold float64
}

const defaultSimilarityLimit = 10

func (o SimilarityOptions) limit() int {
	if o.Limit <= 0 {
		return defaultSimilarityLimit
	}
	return o.Limit
}
