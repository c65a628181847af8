package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/vecingest/ai/mock"
	"github.com/poiesic/vecingest/core"
	"github.com/poiesic/vecingest/index"
	"github.com/poiesic/vecingest/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testReviews = []core.Document{
	{Content: "Battery backup is excellent, lasts two full days.", Metadata: map[string]string{"product_name": "Nova Phone X"}},
	{Content: "The screen scratched within a week of use.", Metadata: map[string]string{"product_name": "Nova Phone X"}},
	{Content: "Sound quality is crisp and the bass is deep.", Metadata: map[string]string{"product_name": "Pulse Earbuds"}},
	{Content: "Delivery was late but the packaging was good.", Metadata: map[string]string{"product_name": "Pulse Earbuds"}},
}

func newTestIndex(t *testing.T, embedder *mock.MockEmbedder) *index.Index {
	t.Helper()
	store, err := badger.NewMemoryVectorStore("product_reviews")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	idx, err := index.New("product_reviews", "flipkart", embedder, store)
	require.NoError(t, err)
	_, err = idx.AddDocuments(context.Background(), testReviews)
	require.NoError(t, err)
	return idx
}

// constantEmbedder maps every text to the same vector so only the verbatim
// boost can separate results.
func constantEmbedder() *mock.MockEmbedder {
	e := mock.NewMockEmbedder()
	e.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{0.6, 0.8, 0}, nil
	}
	e.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{0.6, 0.8, 0}
		}
		return out, nil
	}
	return e
}

func TestNewSearcher(t *testing.T) {
	idx := newTestIndex(t, mock.NewMockEmbedder())
	generator := mock.NewMockGenerator()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(idx, generator)
		require.NoError(t, err)
		assert.Equal(t, DefaultMinScore, searcher.MinScore())
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(idx, generator, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(idx, generator, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("min score", func(t *testing.T) {
		searcher, err := NewSearcher(idx, generator, WithMinScore(0.75))
		require.NoError(t, err)
		assert.Equal(t, float32(0.75), searcher.MinScore())

		_, err = NewSearcher(idx, generator, WithMinScore(1.5))
		assert.Error(t, err)
		_, err = NewSearcher(idx, generator, WithMinScore(-0.1))
		assert.Error(t, err)
	})

	t.Run("invalid prompt template", func(t *testing.T) {
		_, err := NewSearcher(idx, generator, WithPromptTemplate("{{.context"))
		assert.Error(t, err)
	})

	t.Run("nil index", func(t *testing.T) {
		_, err := NewSearcher(nil, generator)
		assert.Equal(t, ErrIndexRequired, err)
	})

	t.Run("nil generator", func(t *testing.T) {
		_, err := NewSearcher(idx, nil)
		assert.Equal(t, ErrGeneratorRequired, err)
	})
}

func TestFindSimilar_ExactReview(t *testing.T) {
	idx := newTestIndex(t, mock.NewMockEmbedder())
	searcher, err := NewSearcher(idx, mock.NewMockGenerator())
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), testReviews[2].Content, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, testReviews[2].Content, results[0].Record.Content)
	assert.Equal(t, "Pulse Earbuds", results[0].Record.Metadata["product_name"])
	// similarity of 1 plus the verbatim boost
	assert.InDelta(t, 1+VerbatimBoost, results[0].Score, 1e-4)
}

func TestFindSimilar_NoMatches(t *testing.T) {
	idx := newTestIndex(t, mock.NewMockEmbedder())
	searcher, err := NewSearcher(idx, mock.NewMockGenerator(), WithMinScore(0.9))
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "completely unrelated query text", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_VerbatimBoost(t *testing.T) {
	idx := newTestIndex(t, constantEmbedder())
	searcher, err := NewSearcher(idx, mock.NewMockGenerator())
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "packaging delivery", 4)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, testReviews[3].Content, results[0].Record.Content)
	assert.InDelta(t, 1+VerbatimBoost, results[0].Score, 1e-4)
	for _, r := range results[1:] {
		assert.InDelta(t, 1, r.Score, 1e-4)
	}
}

func TestFindSimilar_VerbatimMatchesProductName(t *testing.T) {
	idx := newTestIndex(t, constantEmbedder())
	searcher, err := NewSearcher(idx, mock.NewMockGenerator())
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "pulse earbuds bass", 4)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, testReviews[2].Content, results[0].Record.Content)
}

func TestFindSimilar_WithMaxHits(t *testing.T) {
	idx := newTestIndex(t, constantEmbedder())
	searcher, err := NewSearcher(idx, mock.NewMockGenerator())
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "anything", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = searcher.FindSimilar(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_EmbeddingError(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	idx := newTestIndex(t, embedder)
	searcher, err := NewSearcher(idx, mock.NewMockGenerator())
	require.NoError(t, err)

	embedErr := errors.New("embedding service unavailable")
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, embedErr
	}

	_, err = searcher.FindSimilar(context.Background(), "battery", 5)
	assert.ErrorIs(t, err, embedErr)
}

func TestFindSimilarWithMonitor(t *testing.T) {
	idx := newTestIndex(t, constantEmbedder())
	searcher, err := NewSearcher(idx, mock.NewMockGenerator())
	require.NoError(t, err)

	monitor := &testMonitor{}
	results, err := searcher.FindSimilarWithMonitor(context.Background(), "screen scratched", 10, monitor)
	require.NoError(t, err)
	assert.Len(t, results, 4)

	assert.Equal(t, "screen scratched", monitor.query)
	assert.Equal(t, 4, monitor.semanticHits)
	require.Len(t, monitor.verbatim, 1)
	assert.Equal(t, testReviews[1].Content, monitor.verbatim[0].Content)
	assert.True(t, monitor.finishCalled)
}

// testMonitor is a simple test implementation of SearchMonitor
type testMonitor struct {
	query        string
	semanticHits int
	verbatim     []*core.Record
	finishCalled bool
}

func (m *testMonitor) Start(query string) {
	m.query = query
}

func (m *testMonitor) AfterSemanticSearch(results []*core.SearchResult) {
	m.semanticHits = len(results)
}

func (m *testMonitor) VerbatimHit(record *core.Record) {
	m.verbatim = append(m.verbatim, record)
}

func (m *testMonitor) Finish(results []*core.SearchResult) {
	m.finishCalled = true
}

func TestAnswer(t *testing.T) {
	idx := newTestIndex(t, mock.NewMockEmbedder())
	generator := mock.NewMockGenerator()
	generator.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "  The battery lasts two days.\n", nil
	}
	searcher, err := NewSearcher(idx, generator)
	require.NoError(t, err)

	question := testReviews[0].Content
	answer, err := searcher.Answer(context.Background(), question, 3)
	require.NoError(t, err)
	assert.Equal(t, "The battery lasts two days.", answer)

	prompt := generator.LastPrompt()
	assert.Contains(t, prompt, "Product: Nova Phone X")
	assert.Contains(t, prompt, "Review: "+testReviews[0].Content)
	assert.Contains(t, prompt, "Question: "+question)
	assert.NotContains(t, prompt, testReviews[3].Content)
}

func TestAnswer_CustomTemplate(t *testing.T) {
	idx := newTestIndex(t, mock.NewMockEmbedder())
	generator := mock.NewMockGenerator()
	searcher, err := NewSearcher(idx, generator,
		WithPromptTemplate("Q={{.question}} C={{.context}}"))
	require.NoError(t, err)

	answer, err := searcher.Answer(context.Background(), testReviews[1].Content, 1)
	require.NoError(t, err)
	assert.Equal(t, mock.DefaultReply, answer)
	assert.Equal(t,
		"Q="+testReviews[1].Content+" C=Product: Nova Phone X\nReview: "+testReviews[1].Content,
		generator.LastPrompt())
}

func TestAnswer_NoContext(t *testing.T) {
	idx := newTestIndex(t, mock.NewMockEmbedder())
	generator := mock.NewMockGenerator()
	searcher, err := NewSearcher(idx, generator, WithMinScore(0.9))
	require.NoError(t, err)

	_, err = searcher.Answer(context.Background(), "what is the warranty period?", 3)
	assert.ErrorIs(t, err, ErrNoContext)
	assert.Zero(t, generator.CallCount())
}

func TestAnswer_NonPositiveK(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	idx := newTestIndex(t, embedder)
	embedder.Reset()
	generator := mock.NewMockGenerator()
	searcher, err := NewSearcher(idx, generator)
	require.NoError(t, err)

	for _, k := range []int{0, -1} {
		_, err := searcher.Answer(context.Background(), testReviews[0].Content, k)
		assert.ErrorIs(t, err, ErrInvalidLimit, "k=%d", k)
	}
	assert.Zero(t, embedder.CallCount())
	assert.Zero(t, generator.CallCount())
}

func TestAnswer_GeneratorError(t *testing.T) {
	idx := newTestIndex(t, mock.NewMockEmbedder())
	generator := mock.NewMockGenerator()
	genErr := errors.New("rate limited")
	generator.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", genErr
	}
	searcher, err := NewSearcher(idx, generator)
	require.NoError(t, err)

	_, err = searcher.Answer(context.Background(), testReviews[0].Content, 2)
	assert.ErrorIs(t, err, genErr)
}

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name     string
		document string
		metadata map[string]string
		query    string
		want     bool
	}{
		{"all words present", "Battery backup is excellent", nil, "battery backup", true},
		{"punctuation and case ignored", "Great SOUND, deep bass!", nil, "sound bass?", true},
		{"missing word", "Battery backup is excellent", nil, "battery camera", false},
		{"stop words only", "anything at all", nil, "the a an", false},
		{"metadata counts", "Deep bass", map[string]string{"product_name": "Pulse Earbuds"}, "pulse bass", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsAllQueryWords(tt.document, tt.metadata, tt.query))
		})
	}
}
