package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/nad-devs/Recall-sub000/internal/models"
	"github.com/nad-devs/Recall-sub000/internal/taxonomy"
	"go.uber.org/zap"
)

const (
	// DefaultMaxLabelLength bounds delegate-proposed category names.
	DefaultMaxLabelLength = 100

	techWeight    = 3
	upgradeBonus  = 5
	flatScanBelow = 2
)

type Options struct {
	Umbrella       string
	MaxLabelLength int
}

// Resolver picks a category for a concept by running, in order: the domain
// override, the delegate classifier, keyword/technology scoring and the
// upgrade rules. The first confident answer wins.
type Resolver struct {
	delegate Delegate
	writer   CategoryWriter
	umbrella string
	maxLabel int
	logger   *zap.Logger
}

// NewResolver builds a resolver. delegate may be nil, in which case the
// delegate step is skipped.
func NewResolver(delegate Delegate, writer CategoryWriter, opts Options, logger *zap.Logger) *Resolver {
	if opts.Umbrella == "" {
		opts.Umbrella = DefaultUmbrella
	}
	if opts.MaxLabelLength <= 0 {
		opts.MaxLabelLength = DefaultMaxLabelLength
	}
	return &Resolver{
		delegate: delegate,
		writer:   writer,
		umbrella: opts.Umbrella,
		maxLabel: opts.MaxLabelLength,
		logger:   logger,
	}
}

// Resolve never fails: every collaborator error degrades to the next step,
// and the last step keeps the concept's current category.
func (r *Resolver) Resolve(ctx context.Context, concept models.ConceptText, snap Snapshot) Resolution {
	if snap.Paths == nil {
		snap.Paths = taxonomy.NewIndex(nil)
	}
	text := concept.Body()

	if hit := detectDomain(text); hit != domainNone {
		r.logger.Debug("Domain override",
			zap.String("title", concept.Title),
			zap.String("domain", hit.String()))
		return r.resolution(r.umbrella, snap, StrategyDomainOverride, 0)
	}

	if res, ok := r.delegateStep(ctx, text, snap); ok {
		return res
	}

	if res, ok := r.scoringStep(text, snap); ok {
		return res
	}

	if up, ok := taxonomy.Upgrade(concept.Category, text, snap.Paths); ok {
		return Resolution{Label: up.Leaf(), Path: up, Strategy: StrategyUpgrade}
	}

	return Resolution{
		Label:    concept.Category,
		Path:     taxonomy.Path(concept.CategoryPath),
		Strategy: StrategyFallback,
	}
}

func (r *Resolver) delegateStep(ctx context.Context, text string, snap Snapshot) (Resolution, bool) {
	if r.delegate == nil {
		return Resolution{}, false
	}
	labels := candidateLabels(snap)
	if len(labels) == 0 {
		return Resolution{}, false
	}

	answer, err := r.delegate.Classify(ctx, text, labels)
	if err != nil {
		r.logger.Warn("Delegate classification failed, falling back to scoring", zap.Error(err))
		return Resolution{}, false
	}
	answer = cleanLabel(answer)

	if strings.EqualFold(answer, CreateNew) {
		return r.createStep(ctx, text, labels, snap)
	}

	label, ok := lookupLabel(labels, answer)
	if !ok {
		r.logger.Warn("Delegate returned an unknown category, falling back to scoring",
			zap.String("answer", answer),
			zap.Int("candidates", len(labels)))
		return Resolution{}, false
	}
	return r.resolution(label, snap, StrategyDelegate, 0), true
}

func (r *Resolver) createStep(ctx context.Context, text string, labels []string, snap Snapshot) (Resolution, bool) {
	proposed, err := r.delegate.ProposeLabel(ctx, text, labels)
	if err != nil {
		r.logger.Warn("Delegate label proposal failed, falling back to scoring", zap.Error(err))
		return Resolution{}, false
	}
	proposed = cleanLabel(proposed)
	if proposed == "" || strings.EqualFold(proposed, CreateNew) || len([]rune(proposed)) >= r.maxLabel {
		r.logger.Warn("Rejected proposed category", zap.String("proposed", proposed))
		return Resolution{}, false
	}

	// The proposal may name an existing category after all.
	if label, ok := lookupLabel(labels, proposed); ok {
		return r.resolution(label, snap, StrategyDelegate, 0), true
	}

	path := taxonomy.ParsePath(proposed)
	if len(path) == 0 {
		return Resolution{}, false
	}
	// Only existing categories may be parents; otherwise keep the leaf.
	if parent := path[:len(path)-1]; len(parent) > 0 && !snap.Paths.Has(parent) {
		r.logger.Info("Proposed category names an unknown parent, using the leaf",
			zap.String("proposed", proposed))
		path = taxonomy.Path{path.Leaf()}
		if known, ok := snap.Paths.Match(path.Leaf()); ok {
			return Resolution{Label: known.Leaf(), Path: known, Strategy: StrategyDelegate}, true
		}
		if label, ok := lookupLabel(labels, path.Leaf()); ok {
			return r.resolution(label, snap, StrategyDelegate, 0), true
		}
	}
	if r.writer != nil {
		if _, err := r.writer.CreateCategory(ctx, path.Leaf(), path[:len(path)-1]); err != nil {
			r.logger.Warn("Failed to create proposed category, falling back to scoring",
				zap.Error(err),
				zap.String("proposed", proposed))
			return Resolution{}, false
		}
	}

	r.logger.Info("Created category from delegate proposal", zap.String("category", path.String()))
	return Resolution{Label: path.Leaf(), Path: path, Strategy: StrategyDelegateNew}, true
}

func (r *Resolver) scoringStep(text string, snap Snapshot) (Resolution, bool) {
	lower := strings.ToLower(text)

	var best taxonomy.Path
	bestScore := 0
	for _, p := range snap.Paths.Paths() {
		if !p.Hierarchical() {
			continue
		}
		s := score(p, snap.Mapping[p.String()], lower)
		if s > bestScore || (s == bestScore && s > 0 && len(p) > len(best)) {
			best, bestScore = p, s
		}
	}

	if bestScore < flatScanBelow {
		for _, label := range flatLabels(snap) {
			flat := taxonomy.Path{label}
			s := score(flat, snap.Mapping[label], lower)
			candidate := flat
			if up, ok := taxonomy.Upgrade(label, text, snap.Paths); ok {
				candidate = up
				s += upgradeBonus
			}
			if s > bestScore {
				best, bestScore = candidate, s
			}
		}
	}

	if bestScore <= 0 {
		return Resolution{}, false
	}

	res := r.resolution(best.String(), snap, StrategyScoring, bestScore)
	if len(res.Path) == 0 && best.Hierarchical() {
		res.Path = best
		res.Label = best.Leaf()
	}
	return res, true
}

// resolution attaches the matching taxonomy path to label, when there is one.
func (r *Resolver) resolution(label string, snap Snapshot, strategy Strategy, score int) Resolution {
	res := Resolution{Label: label, Strategy: strategy, Score: score}
	if p, ok := snap.Paths.Match(label); ok {
		res.Path = p
		res.Label = p.Leaf()
	}
	return res
}

func score(p taxonomy.Path, learned []string, lowerText string) int {
	hits := 0
	for _, w := range learned {
		if w != "" && strings.Contains(lowerText, strings.ToLower(w)) {
			hits++
		}
	}
	return hits + techWeight*taxonomy.ExactMatches(p, lowerText)
}

// candidateLabels lists every known label once: taxonomy paths first, then
// labels only seen in the learned mapping.
func candidateLabels(snap Snapshot) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(label string) {
		if label == "" {
			return
		}
		key := strings.ToLower(label)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, label)
	}
	for _, p := range snap.Paths.Paths() {
		add(p.String())
	}
	for _, label := range snap.Mapping.Labels() {
		add(label)
	}
	return out
}

func flatLabels(snap Snapshot) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(label string) {
		key := strings.ToLower(label)
		if _, dup := seen[key]; dup || label == "" {
			return
		}
		seen[key] = struct{}{}
		out = append(out, label)
	}
	for _, p := range snap.Paths.Paths() {
		if len(p) == 1 {
			add(p[0])
		}
	}
	for _, label := range snap.Mapping.Labels() {
		if !strings.Contains(label, models.PathSeparator) {
			add(label)
		}
	}
	return out
}

func lookupLabel(labels []string, answer string) (string, bool) {
	for _, l := range labels {
		if l == answer {
			return l, true
		}
	}
	for _, l := range labels {
		if strings.EqualFold(l, answer) {
			return l, true
		}
	}
	return "", false
}

func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	return strings.TrimSpace(strings.TrimSuffix(s, "."))
}

func (r Resolution) String() string {
	return fmt.Sprintf("%s (%s)", r.FullLabel(), r.Strategy)
}
