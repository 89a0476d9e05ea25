package concepts

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nad-devs/Recall-sub000/internal/classifier"
	"github.com/nad-devs/Recall-sub000/internal/keywords"
	"github.com/nad-devs/Recall-sub000/internal/models"
	"github.com/nad-devs/Recall-sub000/internal/taxonomy"
	"go.uber.org/zap"
)

var ErrEmptyTitle = errors.New("concept title is empty")

type Store interface {
	GetConcept(ctx context.Context, id string) (*models.Concept, error)
	CreateConcept(ctx context.Context, c *models.Concept) error
	UpdateConcept(ctx context.Context, c *models.Concept) error
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// Service files new concepts into the taxonomy and stores them.
type Service struct {
	store    Store
	keywords keywords.Source
	resolver *classifier.Resolver
	embedder classifier.Embedder
	logger   *zap.Logger
}

// NewService wires the concept lifecycle. embedder may be nil, in which case
// concepts are stored without an embedding and only show manual relations.
func NewService(store Store, source keywords.Source, resolver *classifier.Resolver, embedder classifier.Embedder, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		keywords: source,
		resolver: resolver,
		embedder: embedder,
		logger:   logger,
	}
}

// Create categorizes and persists a draft. Categorization and embedding are
// best effort; only the store write can fail the call.
func (s *Service) Create(ctx context.Context, draft models.ConceptDraft) (*models.Concept, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	c := &models.Concept{
		Title:           title,
		Summary:         strings.TrimSpace(draft.Summary),
		KeyPoints:       draft.KeyPoints,
		Details:         draft.Details,
		ConfidenceScore: draft.ConfidenceScore,
		ConversationID:  draft.ConversationID,
		RelatedConcepts: models.RelatedList{},
	}
	category := strings.TrimSpace(draft.Category)
	if category == "" {
		category = classifier.DefaultCategory
	}
	if p := taxonomy.ParsePath(category); p.Hierarchical() {
		c.SetCategory(p.Leaf(), p)
	} else {
		c.SetCategory(category, nil)
	}

	res := s.resolver.Resolve(ctx, c.Text(), s.Snapshot(ctx))
	res.Apply(c)

	if err := s.store.CreateConcept(ctx, c); err != nil {
		return nil, fmt.Errorf("save concept: %w", err)
	}

	s.logger.Info("Concept created",
		zap.String("id", c.ID),
		zap.String("category", c.CategoryLabel()),
		zap.String("strategy", string(res.Strategy)))

	s.embed(ctx, c)
	return c, nil
}

// Recategorize re-runs resolution on a stored concept and saves it only when
// the category changed.
func (s *Service) Recategorize(ctx context.Context, id string) (*models.Concept, bool, error) {
	c, err := s.store.GetConcept(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("load concept: %w", err)
	}

	before := c.CategoryLabel()
	res := s.resolver.Resolve(ctx, c.Text(), s.Snapshot(ctx))
	if !res.Apply(c) {
		return c, false, nil
	}

	if err := s.store.UpdateConcept(ctx, c); err != nil {
		return nil, false, fmt.Errorf("save concept: %w", err)
	}

	s.logger.Info("Concept recategorized",
		zap.String("id", c.ID),
		zap.String("from", before),
		zap.String("to", c.CategoryLabel()),
		zap.String("strategy", string(res.Strategy)))
	return c, true, nil
}

// Snapshot gathers the learned keywords and the known category paths. A
// failing category read leaves only the paths implied by learned labels.
func (s *Service) Snapshot(ctx context.Context) classifier.Snapshot {
	mapping := s.keywords.Mapping(ctx)

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		s.logger.Warn("Continuing without category table", zap.Error(err))
	}

	paths, err := taxonomy.BuildPaths(categories, mapping.Labels())
	if err != nil {
		s.logger.Warn("Skipped broken category rows", zap.Error(err))
	}

	return classifier.Snapshot{
		Paths:   taxonomy.NewIndex(paths),
		Mapping: mapping,
	}
}

// CategoryTree lists every known category path, sorted.
func (s *Service) CategoryTree(ctx context.Context) []string {
	labels := s.Snapshot(ctx).Paths.Strings()
	slices.Sort(labels)
	return labels
}

func (s *Service) embed(ctx context.Context, c *models.Concept) {
	if s.embedder == nil {
		return
	}

	vec, err := s.embedder.Embed(ctx, c.Text().Body())
	if err != nil {
		s.logger.Warn("Failed to embed concept", zap.String("id", c.ID), zap.Error(err))
		return
	}
	if err := s.store.SetEmbedding(ctx, c.ID, vec); err != nil {
		s.logger.Warn("Failed to store embedding", zap.String("id", c.ID), zap.Error(err))
	}
}
