package keywords

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/nad-devs/Recall-sub000/internal/models"
	"go.uber.org/zap"
)

const (
	// MaxPerCategory caps every learned keyword list.
	MaxPerCategory = 20
	// DefaultCorpusLimit bounds how many concepts one learning pass reads.
	DefaultCorpusLimit = 1000
)

// Mapping associates a category label, flat or a full " > " path, with the
// keywords learned for it. Each list keeps insertion order.
type Mapping map[string][]string

// Labels returns the mapping keys in sorted order.
func (m Mapping) Labels() []string {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}

// Clone returns a deep copy of m.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for label, words := range m {
		out[label] = slices.Clone(words)
	}
	return out
}

// Learn builds the category keyword mapping from a corpus snapshot.
func Learn(corpus []models.ConceptText) Mapping {
	mapping := make(Mapping)
	seen := make(map[string]map[string]struct{})

	add := func(label, word string) {
		set, ok := seen[label]
		if !ok {
			set = make(map[string]struct{})
			seen[label] = set
		}
		if _, dup := set[word]; dup {
			return
		}
		set[word] = struct{}{}
		mapping[label] = append(mapping[label], word)
	}

	for _, c := range corpus {
		label := c.Label()
		if label == "" {
			continue
		}
		for w := range Extract(c.Body()) {
			add(label, w)
		}
		for w := range Extract(strings.ReplaceAll(label, models.PathSeparator, " ")) {
			add(label, w)
		}
	}

	for label, words := range mapping {
		if len(words) > MaxPerCategory {
			mapping[label] = words[:MaxPerCategory]
		}
	}
	return mapping
}

// CorpusReader reads the concept corpus the learner works from.
type CorpusReader interface {
	ListConceptTexts(ctx context.Context, limit int) ([]models.ConceptText, error)
}

// Source provides a keyword mapping for one categorization request.
type Source interface {
	Mapping(ctx context.Context) Mapping
}

// Learner rebuilds the mapping from the corpus on every call.
type Learner struct {
	corpus CorpusReader
	limit  int
	logger *zap.Logger
}

func NewLearner(corpus CorpusReader, limit int, logger *zap.Logger) *Learner {
	if limit <= 0 {
		limit = DefaultCorpusLimit
	}
	return &Learner{
		corpus: corpus,
		limit:  limit,
		logger: logger,
	}
}

// Load reads the corpus and learns from it.
func (l *Learner) Load(ctx context.Context) (Mapping, error) {
	corpus, err := l.corpus.ListConceptTexts(ctx, l.limit)
	if err != nil {
		return nil, fmt.Errorf("read concept corpus: %w", err)
	}

	mapping := Learn(corpus)
	l.logger.Debug("Learned category keywords",
		zap.Int("concepts", len(corpus)),
		zap.Int("categories", len(mapping)))
	return mapping, nil
}

// Mapping returns an empty mapping when the corpus cannot be read; callers
// treat that as "nothing learned yet".
func (l *Learner) Mapping(ctx context.Context) Mapping {
	mapping, err := l.Load(ctx)
	if err != nil {
		l.logger.Warn("Continuing without learned keywords",
			zap.Error(err),
			zap.Int("limit", l.limit))
		return Mapping{}
	}
	return mapping
}
