package relations

import (
	"context"
	"errors"

	"github.com/nad-devs/Recall-sub000/internal/models"
	"github.com/nad-devs/Recall-sub000/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxRetries = 3

type ConceptStore interface {
	GetConcept(ctx context.Context, id string) (*models.Concept, error)
	UpdateRelatedPair(ctx context.Context, a, b storage.RelatedUpdate) error
}

// Ranker supplies the auto-computed similarity list of a concept.
type Ranker interface {
	Rank(ctx context.Context, conceptID string) ([]models.SimilarConcept, error)
}

type Kind string

const (
	Manual Kind = "manual"
	Auto   Kind = "auto"
)

// Edge is one entry of a concept's effective relationship view.
type Edge struct {
	models.Related
	Kind  Kind
	Score float64
}

// Reconciler maintains the manual relationship lists of concept pairs.
// Both lists are written together and only if neither concept changed
// since it was read; conflicting writes are retried from a fresh read.
type Reconciler struct {
	store      ConceptStore
	ranker     Ranker
	maxRetries int
	logger     *zap.Logger
}

func NewReconciler(store ConceptStore, ranker Ranker, maxRetries int, logger *zap.Logger) *Reconciler {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Reconciler{
		store:      store,
		ranker:     ranker,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Connect adds each concept to the other's manual list. Connecting an
// already connected pair leaves both lists unchanged.
func (r *Reconciler) Connect(ctx context.Context, sourceID, targetID string) error {
	if sourceID == targetID {
		return ErrSelfRelation
	}

	return r.withRetry(ctx, "connect", sourceID, targetID, func(ctx context.Context) error {
		src, tgt, err := r.fetchPair(ctx, sourceID, targetID)
		if err != nil {
			return err
		}

		return r.write(ctx, sourceID, targetID,
			storage.RelatedUpdate{ID: src.ID, Related: link(src.RelatedConcepts, tgt), Version: src.Version},
			storage.RelatedUpdate{ID: tgt.ID, Related: link(tgt.RelatedConcepts, src), Version: tgt.Version},
		)
	})
}

// Disconnect removes the edge between the two concepts from both manual
// lists. When a side has no manual entries and the edge was implied by
// similarity, that side's other similarity edges become manual entries so
// that only the removed edge disappears from its view.
func (r *Reconciler) Disconnect(ctx context.Context, sourceID, targetID string) error {
	if sourceID == targetID {
		return ErrSelfRelation
	}

	return r.withRetry(ctx, "disconnect", sourceID, targetID, func(ctx context.Context) error {
		var (
			src, tgt         *models.Concept
			srcAuto, tgtAuto []models.SimilarConcept
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			src, err = r.fetch(gctx, SideSource, sourceID)
			return err
		})
		g.Go(func() error {
			var err error
			tgt, err = r.fetch(gctx, SideTarget, targetID)
			return err
		})
		g.Go(func() error {
			var err error
			srcAuto, err = r.rank(gctx, SideSource, sourceID)
			return err
		})
		g.Go(func() error {
			var err error
			tgtAuto, err = r.rank(gctx, SideTarget, targetID)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		return r.write(ctx, sourceID, targetID,
			storage.RelatedUpdate{ID: src.ID, Related: unlink(src.RelatedConcepts, srcAuto, tgt), Version: src.Version},
			storage.RelatedUpdate{ID: tgt.ID, Related: unlink(tgt.RelatedConcepts, tgtAuto, src), Version: tgt.Version},
		)
	})
}

// Related returns the concept's manual list when it has one, otherwise its
// current similarity ranking.
func (r *Reconciler) Related(ctx context.Context, id string) ([]Edge, error) {
	c, err := r.fetch(ctx, SideSource, id)
	if err != nil {
		return nil, err
	}

	if len(c.RelatedConcepts) > 0 {
		edges := make([]Edge, 0, len(c.RelatedConcepts))
		for _, rel := range c.RelatedConcepts {
			edges = append(edges, Edge{Related: rel, Kind: Manual})
		}
		return edges, nil
	}

	ranked, err := r.rank(ctx, SideSource, id)
	if err != nil {
		return nil, err
	}
	edges := make([]Edge, 0, len(ranked))
	for _, s := range ranked {
		edges = append(edges, Edge{Related: models.Related{ID: s.ID, Title: s.Title}, Kind: Auto, Score: s.Score})
	}
	return edges, nil
}

func (r *Reconciler) withRetry(ctx context.Context, op, sourceID, targetID string, attempt func(context.Context) error) error {
	var err error
	for i := 1; i <= r.maxRetries; i++ {
		err = attempt(ctx)
		if err == nil {
			if i > 1 {
				r.logger.Debug("Relation write succeeded after retry",
					zap.String("op", op),
					zap.Int("attempt", i))
			}
			return nil
		}
		if !errors.Is(err, storage.ErrConflict) || ctx.Err() != nil {
			return err
		}
		r.logger.Warn("Relation write conflicted, retrying",
			zap.String("op", op),
			zap.String("source", sourceID),
			zap.String("target", targetID),
			zap.Int("attempt", i))
	}
	return err
}

func (r *Reconciler) fetchPair(ctx context.Context, sourceID, targetID string) (*models.Concept, *models.Concept, error) {
	var src, tgt *models.Concept

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		src, err = r.fetch(gctx, SideSource, sourceID)
		return err
	})
	g.Go(func() error {
		var err error
		tgt, err = r.fetch(gctx, SideTarget, targetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return src, tgt, nil
}

func (r *Reconciler) fetch(ctx context.Context, side, id string) (*models.Concept, error) {
	c, err := r.store.GetConcept(ctx, id)
	if err != nil {
		return nil, &SideError{Side: side, ConceptID: id, Stage: StageFetch, Err: err}
	}
	return c, nil
}

func (r *Reconciler) rank(ctx context.Context, side, id string) ([]models.SimilarConcept, error) {
	ranked, err := r.ranker.Rank(ctx, id)
	if err != nil {
		return nil, &SideError{Side: side, ConceptID: id, Stage: StageRank, Err: err}
	}
	return ranked, nil
}

func (r *Reconciler) write(ctx context.Context, sourceID, targetID string, src, tgt storage.RelatedUpdate) error {
	err := r.store.UpdateRelatedPair(ctx, src, tgt)
	if err == nil {
		return nil
	}

	var rowErr *storage.ConceptError
	if errors.As(err, &rowErr) {
		switch rowErr.ID {
		case sourceID:
			return &SideError{Side: SideSource, ConceptID: sourceID, Stage: StageWrite, Err: err}
		case targetID:
			return &SideError{Side: SideTarget, ConceptID: targetID, Stage: StageWrite, Err: err}
		}
	}
	return &SideError{Side: SideBoth, ConceptID: sourceID + "," + targetID, Stage: StageWrite, Err: err}
}

func link(list models.RelatedList, other *models.Concept) models.RelatedList {
	if list.Contains(other.ID, other.Title) {
		return list
	}
	out := make(models.RelatedList, 0, len(list)+1)
	out = append(out, list...)
	return append(out, models.Related{ID: other.ID, Title: other.Title})
}

func unlink(manual models.RelatedList, auto []models.SimilarConcept, other *models.Concept) models.RelatedList {
	kept := manual.Without(other.ID, other.Title)
	if len(manual) > 0 || !autoContains(auto, other) {
		return kept
	}

	out := make(models.RelatedList, 0, len(auto))
	for _, s := range auto {
		rel := models.Related{ID: s.ID, Title: s.Title}
		if rel.Matches(other.ID, other.Title) {
			continue
		}
		out = append(out, rel)
	}
	return out
}

func autoContains(auto []models.SimilarConcept, other *models.Concept) bool {
	for _, s := range auto {
		if (models.Related{ID: s.ID, Title: s.Title}).Matches(other.ID, other.Title) {
			return true
		}
	}
	return false
}
