package keywords

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nad-devs/Recall-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtract(t *testing.T) {
	t.Run("Ranks by frequency with first-seen ties", func(t *testing.T) {
		text := "Kubernetes pods restart. Pods crash; kubernetes reschedules pods! Deployment rollout."
		got := slices.Collect(Extract(text))
		assert.Equal(t, []string{"pods", "kubernetes", "restart", "crash", "reschedules", "deployment", "rollout"}, got)
	})

	t.Run("Drops stop words, short and numeric tokens", func(t *testing.T) {
		got := slices.Collect(Extract("The API is on port 8080 and it is up to us, with 42 retries"))
		assert.Equal(t, []string{"api", "port", "retries"}, got)
		for _, w := range got {
			assert.Greater(t, len(w), 2)
			assert.False(t, IsStopWord(w))
		}
	})

	t.Run("Strips punctuation inside tokens", func(t *testing.T) {
		got := slices.Collect(Extract("Node.js: async/await isn't magic"))
		assert.Equal(t, []string{"nodejs", "asyncawait", "isnt", "magic"}, got)
	})

	t.Run("Caps at ten and is deterministic", func(t *testing.T) {
		words := make([]string, 0, 15)
		for i := 0; i < 15; i++ {
			words = append(words, fmt.Sprintf("term%c", 'a'+i))
		}
		text := strings.Join(words, " ")

		first := slices.Collect(Extract(text))
		assert.Len(t, first, MaxExtracted)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, slices.Collect(Extract(text)))
		}
	})

	t.Run("Sequence is restartable", func(t *testing.T) {
		seq := Extract("redis cache redis eviction")
		var a, b []string
		for w := range seq {
			a = append(a, w)
		}
		for w := range seq {
			b = append(b, w)
		}
		assert.Equal(t, a, b)
		assert.Equal(t, []string{"redis", "cache", "eviction"}, a)
	})

	t.Run("Empty input", func(t *testing.T) {
		assert.Empty(t, slices.Collect(Extract("")))
		assert.Nil(t, Top("anything", 0))
	})

	t.Run("Top truncates", func(t *testing.T) {
		assert.Equal(t, []string{"redis", "cache"}, Top("redis cache redis eviction", 2))
	})
}

func TestLearn(t *testing.T) {
	t.Run("Unions concept and label keywords", func(t *testing.T) {
		mapping := Learn([]models.ConceptText{
			{Title: "Goroutine leaks", Category: "Backend", Summary: "Leaks from goroutines blocked forever"},
			{Title: "Channel patterns", Category: "Backend", KeyPoints: []string{"fan-out fan-in"}},
			{Title: "Orphan", Category: ""},
		})

		require.Len(t, mapping, 1)
		words := mapping["Backend"]
		assert.Contains(t, words, "goroutine")
		assert.Contains(t, words, "channel")
		assert.Contains(t, words, "backend")
		assert.Len(t, words, len(uniq(words)), "keywords must be deduplicated")
	})

	t.Run("Uses the full path label and its segments", func(t *testing.T) {
		mapping := Learn([]models.ConceptText{
			{Title: "Lambda cold starts", Category: "AWS", CategoryPath: []string{"Cloud", "AWS"}},
			{Title: "Bucket policies", Category: "Cloud > Storage"},
		})

		assert.Contains(t, mapping, "Cloud > AWS")
		assert.Contains(t, mapping["Cloud > AWS"], "cloud")
		assert.Contains(t, mapping["Cloud > AWS"], "aws")
		assert.Contains(t, mapping, "Cloud > Storage")
		assert.Contains(t, mapping["Cloud > Storage"], "storage")
	})

	t.Run("Caps every category at twenty", func(t *testing.T) {
		corpus := make([]models.ConceptText, 0, 10)
		for i := 0; i < 10; i++ {
			corpus = append(corpus, models.ConceptText{
				Title:    fmt.Sprintf("alpha%d bravo%d charlie%d delta%d", i, i, i, i),
				Category: "Wide",
			})
		}

		mapping := Learn(corpus)
		assert.Len(t, mapping["Wide"], MaxPerCategory)
		assert.Equal(t, "alpha0", mapping["Wide"][0], "earliest keywords are kept")
	})

	t.Run("Labels are sorted", func(t *testing.T) {
		m := Mapping{"b": nil, "a": nil, "c > d": nil}
		assert.Equal(t, []string{"a", "b", "c > d"}, m.Labels())
	})
}

type fakeCorpus struct {
	rows  []models.ConceptText
	err   error
	calls int
	limit int
	stamp time.Time
}

func (f *fakeCorpus) ListConceptTexts(ctx context.Context, limit int) ([]models.ConceptText, error) {
	f.calls++
	f.limit = limit
	return f.rows, f.err
}

func (f *fakeCorpus) CorpusUpdatedAt(ctx context.Context) (time.Time, error) {
	return f.stamp, nil
}

func TestLearnerMapping(t *testing.T) {
	t.Run("Reads at most the default corpus limit", func(t *testing.T) {
		corpus := &fakeCorpus{rows: []models.ConceptText{{Title: "Index tuning", Category: "Database"}}}
		learner := NewLearner(corpus, 0, zap.NewNop())

		mapping := learner.Mapping(context.Background())
		assert.Equal(t, DefaultCorpusLimit, corpus.limit)
		assert.Contains(t, mapping["Database"], "index")
	})

	t.Run("Read failure yields an empty mapping", func(t *testing.T) {
		corpus := &fakeCorpus{err: errors.New("connection refused")}
		learner := NewLearner(corpus, 10, zap.NewNop())

		mapping := learner.Mapping(context.Background())
		assert.NotNil(t, mapping)
		assert.Empty(t, mapping)
	})
}

func TestCache(t *testing.T) {
	corpus := &fakeCorpus{
		rows:  []models.ConceptText{{Title: "Index tuning", Category: "Database"}},
		stamp: time.Unix(100, 0),
	}
	cache := NewCache(NewLearner(corpus, 10, zap.NewNop()), corpus, 0, zap.NewNop())
	ctx := context.Background()

	first := cache.Mapping(ctx)
	second := cache.Mapping(ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, corpus.calls, "unchanged stamp must reuse the mapping")

	second["Database"] = nil
	assert.NotEmpty(t, cache.Mapping(ctx)["Database"], "callers get copies")

	corpus.stamp = time.Unix(200, 0)
	cache.Mapping(ctx)
	assert.Equal(t, 2, corpus.calls, "a newer stamp rebuilds")

	cache.Invalidate()
	cache.Mapping(ctx)
	assert.Equal(t, 3, corpus.calls)

	t.Run("TTL expiry rebuilds", func(t *testing.T) {
		now := time.Unix(1000, 0)
		c := NewCache(NewLearner(corpus, 10, zap.NewNop()), corpus, time.Minute, zap.NewNop())
		c.now = func() time.Time { return now }
		before := corpus.calls

		c.Mapping(ctx)
		c.Mapping(ctx)
		assert.Equal(t, before+1, corpus.calls)

		now = now.Add(2 * time.Minute)
		c.Mapping(ctx)
		assert.Equal(t, before+2, corpus.calls)
	})
}

func uniq(words []string) []string {
	seen := map[string]struct{}{}
	for _, w := range words {
		seen[w] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	return out
}
