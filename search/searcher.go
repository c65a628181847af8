package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/vecingest/ai"
	"github.com/poiesic/vecingest/core"
	"github.com/poiesic/vecingest/index"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

const (
	// DefaultMinScore is the lowest similarity a review needs to be returned.
	DefaultMinScore float32 = 0.3

	// VerbatimBoost is added to the score of reviews containing every
	// significant query word.
	VerbatimBoost float32 = 0.3

	// DefaultPromptTemplate renders retrieved reviews and the question for
	// the generation model. It is a Go text/template with two inputs.
	DefaultPromptTemplate = `You are an assistant answering questions about products using customer reviews.
Answer only from the reviews below. If they do not contain the answer, say you don't know.
Keep the answer short and mention the products you relied on.

Reviews:
{{.context}}

Question: {{.question}}
Answer:`
)

// Searcher runs similarity search and question answering over one index.
type Searcher struct {
	index     *index.Index
	generator ai.Generator
	minScore  float32
	template  prompts.PromptTemplate
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinScore sets the minimum similarity score, between 0 and 1.
// Default is DefaultMinScore.
func WithMinScore(score float32) Option {
	return func(s *Searcher) error {
		if score < 0 || score > 1 {
			return fmt.Errorf("min score must be between 0 and 1, got %v", score)
		}
		s.minScore = score
		return nil
	}
}

// WithPromptTemplate replaces DefaultPromptTemplate. The template must use
// the {{.context}} and {{.question}} inputs.
func WithPromptTemplate(template string) Option {
	return func(s *Searcher) error {
		pt := prompts.NewPromptTemplate(template, []string{"context", "question"})
		if _, err := pt.Format(map[string]any{"context": "", "question": ""}); err != nil {
			return fmt.Errorf("invalid prompt template: %w", err)
		}
		s.template = pt
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(idx *index.Index, generator ai.Generator, opts ...Option) (*Searcher, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	s := &Searcher{
		index:     idx,
		generator: generator,
		minScore:  DefaultMinScore,
		template:  prompts.NewPromptTemplate(DefaultPromptTemplate, []string{"context", "question"}),
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// MinScore returns the minimum similarity score in use.
func (s *Searcher) MinScore() float32 {
	return s.minScore
}

// FindSimilar searches for reviews similar to the query.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, query, maxHits, nil)
}

// FindSimilarWithMonitor searches for reviews similar to the query with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, maxHits int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if maxHits <= 0 {
		return []*core.SearchResult{}, nil
	}

	monitor.Start(query)

	matches, err := s.index.SimilaritySearch(ctx, query, maxHits, s.minScore)
	if err != nil {
		s.logger.Error("error querying for similar records", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterSemanticSearch(matches)

	results := make([]*core.SearchResult, 0, len(matches))
	for _, match := range matches {
		if match == nil || match.Record == nil {
			continue
		}
		score := match.Score
		if containsAllQueryWords(match.Record.Content, match.Record.Metadata, query) {
			score += VerbatimBoost
			monitor.VerbatimHit(match.Record)
		}
		results = append(results, &core.SearchResult{
			Record: match.Record,
			Score:  score,
		})
	}

	// Stable so equal scores keep the store's order
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	monitor.Finish(results)

	return results, nil
}

// Answer retrieves the k reviews closest to question and asks the
// generation model to answer from them. ErrNoContext is returned without
// calling the model when nothing scores above the minimum.
func (s *Searcher) Answer(ctx context.Context, question string, k int) (string, error) {
	if k <= 0 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidLimit, k)
	}
	retriever := vectorstores.ToRetriever(s.index.AsVectorStore(), k,
		vectorstores.WithScoreThreshold(s.minScore))

	docs, err := retriever.GetRelevantDocuments(ctx, question)
	if err != nil {
		s.logger.Error("error retrieving documents", "err", err)
		return "", err
	}
	if len(docs) == 0 {
		return "", ErrNoContext
	}

	prompt, err := s.template.Format(map[string]any{
		"context":  formatContext(docs),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	s.logger.Debug("generating answer", "documents", len(docs))
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("error generating answer", "err", err)
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// formatContext renders one block per review, product name first when known.
func formatContext(docs []schema.Document) string {
	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if name, ok := doc.Metadata["product_name"]; ok {
			fmt.Fprintf(&sb, "Product: %v\n", name)
		}
		sb.WriteString("Review: ")
		sb.WriteString(doc.PageContent)
	}
	return sb.String()
}
