package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nad-devs/Recall-sub000/internal/keywords"
	"github.com/nad-devs/Recall-sub000/internal/models"
	"github.com/nad-devs/Recall-sub000/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDelegate struct {
	answer     string
	answerErr  error
	proposal   string
	proposeErr error

	classifyCalls int
	proposeCalls  int
	lastLabels    []string
}

func (f *fakeDelegate) Classify(ctx context.Context, text string, labels []string) (string, error) {
	f.classifyCalls++
	f.lastLabels = labels
	return f.answer, f.answerErr
}

func (f *fakeDelegate) ProposeLabel(ctx context.Context, text string, labels []string) (string, error) {
	f.proposeCalls++
	return f.proposal, f.proposeErr
}

type created struct {
	name   string
	parent []string
}

type fakeWriter struct {
	created []created
	err     error
}

func (f *fakeWriter) CreateCategory(ctx context.Context, name string, parentPath []string) (*models.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, created{name: name, parent: parentPath})
	return &models.Category{ID: "new", Name: name}, nil
}

func snapshot(mapping keywords.Mapping, paths ...taxonomy.Path) Snapshot {
	if mapping == nil {
		mapping = keywords.Mapping{}
	}
	return Snapshot{Paths: taxonomy.NewIndex(paths), Mapping: mapping}
}

func newResolver(d Delegate, w CategoryWriter) *Resolver {
	return NewResolver(d, w, Options{}, zap.NewNop())
}

func TestResolverDomainOverride(t *testing.T) {
	snap := snapshot(
		keywords.Mapping{"Frontend > React": {"react", "component", "tokens", "render"}},
		taxonomy.Path{"Frontend", "React"},
		taxonomy.Path{"Machine Learning"},
	)

	t.Run("NLP terms short-circuit scoring and the delegate", func(t *testing.T) {
		delegate := &fakeDelegate{answer: "Frontend > React"}
		concept := models.ConceptText{
			Title:   "Rendering tokens in a React component",
			Summary: "Natural language processing output shown in a react component render loop",
		}

		res := newResolver(delegate, nil).Resolve(context.Background(), concept, snap)
		assert.Equal(t, StrategyDomainOverride, res.Strategy)
		assert.Equal(t, DefaultUmbrella, res.Label)
		assert.Equal(t, taxonomy.Path{"Machine Learning"}, res.Path)
		assert.Zero(t, delegate.classifyCalls)
	})

	t.Run("ML terms force the umbrella too", func(t *testing.T) {
		concept := models.ConceptText{Title: "Gradient descent", Summary: "Step size and convergence"}
		res := newResolver(nil, nil).Resolve(context.Background(), concept, snap)
		assert.Equal(t, StrategyDomainOverride, res.Strategy)
		assert.Equal(t, "Machine Learning", res.FullLabel())
	})

	t.Run("Custom umbrella without a taxonomy node", func(t *testing.T) {
		r := NewResolver(nil, nil, Options{Umbrella: "AI"}, zap.NewNop())
		res := r.Resolve(context.Background(), models.ConceptText{Title: "LLM context windows"}, snap)
		assert.Equal(t, "AI", res.Label)
		assert.Empty(t, res.Path)
	})
}

func TestResolverDelegate(t *testing.T) {
	snap := snapshot(
		keywords.Mapping{"Snippets": {"snippet"}},
		taxonomy.Path{"Backend"},
		taxonomy.Path{"Backend", "Go"},
	)
	concept := models.ConceptText{Title: "Context cancellation", Summary: "Propagating deadlines", Category: "General"}

	t.Run("Verbatim pick gets its taxonomy path", func(t *testing.T) {
		delegate := &fakeDelegate{answer: "Backend > Go"}
		res := newResolver(delegate, nil).Resolve(context.Background(), concept, snap)

		assert.Equal(t, StrategyDelegate, res.Strategy)
		assert.Equal(t, taxonomy.Path{"Backend", "Go"}, res.Path)
		assert.Equal(t, "Go", res.Label)
		assert.Equal(t, []string{"Backend", "Backend > Go", "Snippets"}, delegate.lastLabels)
	})

	t.Run("Flat label known only from learning", func(t *testing.T) {
		delegate := &fakeDelegate{answer: "\"snippets\""}
		res := newResolver(delegate, nil).Resolve(context.Background(), concept, snap)

		assert.Equal(t, StrategyDelegate, res.Strategy)
		assert.Equal(t, "Snippets", res.Label)
		assert.Empty(t, res.Path)
	})

	t.Run("Create new persists the proposal", func(t *testing.T) {
		delegate := &fakeDelegate{answer: CreateNew, proposal: "Backend > Rust"}
		writer := &fakeWriter{}
		res := newResolver(delegate, writer).Resolve(context.Background(), concept, snap)

		assert.Equal(t, StrategyDelegateNew, res.Strategy)
		assert.Equal(t, taxonomy.Path{"Backend", "Rust"}, res.Path)
		assert.Equal(t, "Rust", res.Label)
		require.Len(t, writer.created, 1)
		assert.Equal(t, "Rust", writer.created[0].name)
		assert.Equal(t, []string{"Backend"}, writer.created[0].parent)
	})

	t.Run("Proposal under an unknown parent keeps only the leaf", func(t *testing.T) {
		delegate := &fakeDelegate{answer: CreateNew, proposal: "Systems > Rust"}
		writer := &fakeWriter{}
		res := newResolver(delegate, writer).Resolve(context.Background(), concept, snap)

		assert.Equal(t, StrategyDelegateNew, res.Strategy)
		assert.Equal(t, taxonomy.Path{"Rust"}, res.Path)
		assert.Equal(t, "Rust", res.Label)
		require.Len(t, writer.created, 1)
		assert.Equal(t, "Rust", writer.created[0].name)
		assert.Empty(t, writer.created[0].parent)
	})

	t.Run("Unknown parent with an existing leaf reuses it", func(t *testing.T) {
		delegate := &fakeDelegate{answer: CreateNew, proposal: "Languages > Go"}
		writer := &fakeWriter{}
		res := newResolver(delegate, writer).Resolve(context.Background(), concept, snap)

		assert.Equal(t, StrategyDelegate, res.Strategy)
		assert.Equal(t, taxonomy.Path{"Backend", "Go"}, res.Path)
		assert.Empty(t, writer.created)
	})

	t.Run("Proposal naming an existing label is not created", func(t *testing.T) {
		delegate := &fakeDelegate{answer: CreateNew, proposal: "Backend"}
		writer := &fakeWriter{}
		res := newResolver(delegate, writer).Resolve(context.Background(), concept, snap)

		assert.Equal(t, StrategyDelegate, res.Strategy)
		assert.Equal(t, taxonomy.Path{"Backend"}, res.Path)
		assert.Empty(t, writer.created)
	})

	fallsThrough := []struct {
		name     string
		delegate *fakeDelegate
		writer   *fakeWriter
	}{
		{"Classify error", &fakeDelegate{answerErr: errors.New("timeout")}, &fakeWriter{}},
		{"Unknown label", &fakeDelegate{answer: "Gardening"}, &fakeWriter{}},
		{"Proposal error", &fakeDelegate{answer: CreateNew, proposeErr: errors.New("bad gateway")}, &fakeWriter{}},
		{"Empty proposal", &fakeDelegate{answer: CreateNew, proposal: "  "}, &fakeWriter{}},
		{"Proposal too long", &fakeDelegate{answer: CreateNew, proposal: strings.Repeat("x", 100)}, &fakeWriter{}},
		{"Creation fails", &fakeDelegate{answer: CreateNew, proposal: "Rust"}, &fakeWriter{err: errors.New("db down")}},
	}
	for _, tt := range fallsThrough {
		t.Run(tt.name+" falls through to scoring", func(t *testing.T) {
			goConcept := models.ConceptText{Title: "Go interfaces", Summary: "Implicit satisfaction", Category: "General"}
			res := newResolver(tt.delegate, tt.writer).Resolve(context.Background(), goConcept, snap)

			assert.Equal(t, StrategyScoring, res.Strategy)
			assert.Equal(t, taxonomy.Path{"Backend", "Go"}, res.Path)
			assert.Empty(t, tt.writer.created)
		})
	}

	t.Run("No candidates skips the delegate", func(t *testing.T) {
		delegate := &fakeDelegate{answer: "anything"}
		res := newResolver(delegate, nil).Resolve(context.Background(), concept, snapshot(nil))
		assert.Zero(t, delegate.classifyCalls)
		assert.Equal(t, StrategyFallback, res.Strategy)
	})
}

func TestResolverScoring(t *testing.T) {
	t.Run("Ties prefer the longer path", func(t *testing.T) {
		mapping := keywords.Mapping{
			"Tools > Editor":         {"vim", "macros"},
			"Tools > Editor > Modal": {"vim", "macros"},
		}
		concept := models.ConceptText{Title: "vim macros"}

		for _, paths := range [][]taxonomy.Path{
			{{"Tools", "Editor"}, {"Tools", "Editor", "Modal"}},
			{{"Tools", "Editor", "Modal"}, {"Tools", "Editor"}},
		} {
			res := newResolver(nil, nil).Resolve(context.Background(), concept, snapshot(mapping, paths...))
			assert.Equal(t, taxonomy.Path{"Tools", "Editor", "Modal"}, res.Path)
			assert.Equal(t, 2, res.Score)
		}
	})

	t.Run("Exact technology matches weigh triple", func(t *testing.T) {
		mapping := keywords.Mapping{
			"Notes > Misc":     {"hooks", "state", "render"},
			"Frontend > React": {},
		}
		concept := models.ConceptText{Title: "React hooks", Summary: "useState in a component"}
		res := newResolver(nil, nil).Resolve(context.Background(), concept,
			snapshot(mapping, taxonomy.Path{"Notes", "Misc"}, taxonomy.Path{"Frontend", "React"}))

		assert.Equal(t, taxonomy.Path{"Frontend", "React"}, res.Path)
		assert.Equal(t, "React", res.Label)
	})

	t.Run("Flat upgrade fires when the target exists", func(t *testing.T) {
		mapping := keywords.Mapping{"Database": {}}
		concept := models.ConceptText{Title: "Mongo aggregation pipeline"}
		res := newResolver(nil, nil).Resolve(context.Background(), concept,
			snapshot(mapping, taxonomy.Path{"Database", "MongoDB"}))

		assert.Equal(t, StrategyScoring, res.Strategy)
		assert.Equal(t, taxonomy.Path{"Database", "MongoDB"}, res.Path)
		assert.Equal(t, 5, res.Score)
	})

	t.Run("Upgrade with absent target is never selected", func(t *testing.T) {
		concept := models.ConceptText{Title: "Lambda cold start tuning", Category: "Cloud"}
		res := newResolver(nil, nil).Resolve(context.Background(), concept,
			snapshot(nil, taxonomy.Path{"Cloud"}, taxonomy.Path{"Cloud", "Azure"}))

		assert.NotEqual(t, taxonomy.Path{"Cloud", "AWS"}, res.Path)
		assert.Equal(t, StrategyFallback, res.Strategy)
		assert.Equal(t, "Cloud", res.Label)
	})
}

func TestResolverFallback(t *testing.T) {
	concept := models.ConceptText{Title: "Big O of binary search", Category: "Programming"}

	t.Run("Upgrade of the current category", func(t *testing.T) {
		res := newResolver(nil, nil).Resolve(context.Background(), concept,
			snapshot(nil, taxonomy.Path{"Programming", "Algorithms"}))
		assert.Equal(t, StrategyUpgrade, res.Strategy)
		assert.Equal(t, taxonomy.Path{"Programming", "Algorithms"}, res.Path)
	})

	t.Run("Leaves the upstream category alone", func(t *testing.T) {
		res := newResolver(nil, nil).Resolve(context.Background(), concept, Snapshot{})
		assert.Equal(t, StrategyFallback, res.Strategy)
		assert.Equal(t, "Programming", res.Label)

		c := &models.Concept{Category: "Programming"}
		assert.False(t, res.Apply(c))
		assert.Equal(t, "Programming", c.Category)
	})
}

func TestResolverRoundTrip(t *testing.T) {
	corpus := []models.ConceptText{
		{Title: "Goroutine scheduling", Summary: "channels select statement deadlock", Category: "Go", CategoryPath: []string{"Languages", "Go"}},
		{Title: "Sourdough starter", Summary: "hydration levain", Category: "Baking", CategoryPath: []string{"Cooking", "Baking"}},
	}
	mapping := keywords.Learn(corpus)
	paths, err := taxonomy.BuildPaths(nil, mapping.Labels())
	require.NoError(t, err)

	concept := models.ConceptText{
		Title:    "goroutine scheduling",
		Summary:  "channels select statement deadlock",
		Category: DefaultCategory,
	}
	res := newResolver(nil, nil).Resolve(context.Background(), concept, Snapshot{Paths: taxonomy.NewIndex(paths), Mapping: mapping})
	require.Equal(t, taxonomy.Path{"Languages", "Go"}, res.Path)

	c := &models.Concept{Category: DefaultCategory}
	require.True(t, res.Apply(c))
	assert.Equal(t, []string{"Languages", "Go"}, c.CategoryPath)
	assert.Equal(t, c.CategoryPath[len(c.CategoryPath)-1], c.Category)

	assert.False(t, res.Apply(c), "applying the same resolution twice is a no-op")
}

func TestResolutionApplyHierarchicalLabel(t *testing.T) {
	c := &models.Concept{Category: "General"}
	changed := Resolution{Label: "Infra > Terraform", Strategy: StrategyDelegate}.Apply(c)
	require.True(t, changed)
	assert.Equal(t, "Terraform", c.Category)
	assert.Equal(t, []string{"Infra", "Terraform"}, c.CategoryPath)
}

func TestParseDraft(t *testing.T) {
	draft := ParseDraft("# Retry budgets\n\nLimit retries per client.\n- exponential backoff\n* jitter\nShare the budget.")
	assert.Equal(t, "Retry budgets", draft.Title)
	assert.Equal(t, DefaultCategory, draft.Category)
	assert.Equal(t, []string{"exponential backoff", "jitter"}, draft.KeyPoints)
	assert.Equal(t, "Limit retries per client. Share the budget.", draft.Summary)

	single := ParseDraft("just a title")
	assert.Equal(t, "just a title", single.Summary)
}
