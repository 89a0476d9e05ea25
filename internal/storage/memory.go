package storage

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nad-devs/Recall-sub000/internal/models"
)

type MemoryStorage struct {
	mu         sync.RWMutex
	concepts   map[string]*models.Concept
	embeddings map[string][]float32
	categories map[string]*models.Category
	order      []string
	similarity SimilarityOptions
	now        func() time.Time
}

func NewMemoryStorage(similarity SimilarityOptions) *MemoryStorage {
	return &MemoryStorage{
		concepts:   make(map[string]*models.Concept),
		embeddings: make(map[string][]float32),
		categories: make(map[string]*models.Category),
		similarity: similarity,
		now:        time.Now,
	}
}

// Concept methods
func (s *MemoryStorage) GetConcept(ctx context.Context, id string) (*models.Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.concepts[id]
	if !exists {
		return nil, fmt.Errorf("concept %s: %w", id, ErrNotFound)
	}
	return cloneConcept(c), nil
}

func (s *MemoryStorage) CreateConcept(ctx context.Context, c *models.Concept) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if _, exists := s.concepts[c.ID]; exists {
		return fmt.Errorf("concept %s already exists", c.ID)
	}
	if c.LastUpdated.IsZero() {
		c.LastUpdated = s.now()
	}
	if c.RelatedConcepts == nil {
		c.RelatedConcepts = models.RelatedList{}
	}
	c.Version = 1
	s.concepts[c.ID] = cloneConcept(c)
	return nil
}

func (s *MemoryStorage) UpdateConcept(ctx context.Context, c *models.Concept) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.concepts[c.ID]
	if !exists {
		return fmt.Errorf("concept %s: %w", c.ID, ErrNotFound)
	}
	if cur.Version != c.Version {
		return fmt.Errorf("concept %s: %w", c.ID, ErrConflict)
	}

	c.Version++
	c.LastUpdated = s.now()
	s.concepts[c.ID] = cloneConcept(c)
	return nil
}

func (s *MemoryStorage) UpdateRelatedPair(ctx context.Context, a, b RelatedUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updates := []RelatedUpdate{a, b}
	for _, u := range updates {
		cur, exists := s.concepts[u.ID]
		if !exists {
			return &ConceptError{ID: u.ID, Err: ErrNotFound}
		}
		if cur.Version != u.Version {
			return &ConceptError{ID: u.ID, Err: ErrConflict}
		}
	}

	for _, u := range updates {
		cur := s.concepts[u.ID]
		cur.RelatedConcepts = slices.Clone(u.Related)
		if cur.RelatedConcepts == nil {
			cur.RelatedConcepts = models.RelatedList{}
		}
		cur.Version++
	}
	return nil
}

func (s *MemoryStorage) ListConceptTexts(ctx context.Context, limit int) ([]models.ConceptText, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Concept, 0, len(s.concepts))
	for _, c := range s.concepts {
		all = append(all, c)
	}
	slices.SortFunc(all, func(a, b *models.Concept) int {
		if n := b.LastUpdated.Compare(a.LastUpdated); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]models.ConceptText, 0, len(all))
	for _, c := range all {
		out = append(out, cloneConcept(c).Text())
	}
	return out, nil
}

func (s *MemoryStorage) CorpusUpdatedAt(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, c := range s.concepts {
		if c.LastUpdated.After(latest) {
			latest = c.LastUpdated
		}
	}
	return latest, nil
}

func (s *MemoryStorage) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.concepts[id]; !exists {
		return fmt.Errorf("concept %s: %w", id, ErrNotFound)
	}
	s.embeddings[id] = slices.Clone(embedding)
	return nil
}

func (s *MemoryStorage) Rank(ctx context.Context, id string) ([]models.SimilarConcept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.concepts[id]; !exists {
		return nil, fmt.Errorf("concept %s: %w", id, ErrNotFound)
	}
	source, ok := s.embeddings[id]
	if !ok {
		return []models.SimilarConcept{}, nil
	}

	out := make([]models.SimilarConcept, 0)
	for otherID, vec := range s.embeddings {
		if otherID == id {
			continue
		}
		score := cosine(source, vec)
		if score < s.similarity.Threshold {
			continue
		}
		out = append(out, models.SimilarConcept{
			ID:    otherID,
			Title: s.concepts[otherID].Title,
			Score: score,
		})
	}

	slices.SortFunc(out, func(a, b models.SimilarConcept) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
	if len(out) > s.similarity.limit() {
		out = out[:s.similarity.limit()]
	}
	return out, nil
}

// Category methods
func (s *MemoryStorage) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Category, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.categories[id])
	}
	return out, nil
}

func (s *MemoryStorage) CreateCategory(ctx context.Context, name string, parentPath []string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create category: empty name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var parentID *string
	for _, segment := range parentPath {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		parent := s.findOrCreateLocked(segment, parentID)
		parentID = &parent.ID
	}

	c := s.findOrCreateLocked(name, parentID)
	out := *c
	return &out, nil
}

func (s *MemoryStorage) findOrCreateLocked(name string, parentID *string) *models.Category {
	for _, id := range s.order {
		c := s.categories[id]
		if strings.EqualFold(c.Name, name) && sameParent(c.ParentID, parentID) {
			return c
		}
	}

	now := s.now()
	c := &models.Category{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if parentID != nil {
		p := *parentID
		c.ParentID = &p
	}
	s.categories[c.ID] = c
	s.order = append(s.order, c.ID)
	return c
}

// AddCategory stores c as is. It exists for seeding and tests; parent
// pointers are not validated.
func (s *MemoryStorage) AddCategory(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.categories[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.categories[c.ID] = &c
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneConcept(c *models.Concept) *models.Concept {
	out := *c
	out.CategoryPath = slices.Clone(c.CategoryPath)
	out.KeyPoints = slices.Clone(c.KeyPoints)
	out.RelatedConcepts = slices.Clone(c.RelatedConcepts)
	if c.Details != nil {
		out.Details = make(models.Details, len(c.Details))
		for k, v := range c.Details {
			out.Details[k] = v
		}
	}
	return &out
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
