// Package search finds stored material relevant to a question.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/pkg/utils"
)

// DefaultLimit is the number of candidates returned per question.
const DefaultLimit = 5

// Store is the part of the document store the searcher reads from.
type Store interface {
	Search(ctx context.Context, keywords []string, limit int) ([]*models.SearchCandidate, error)
}

// KeywordExtractor turns a question into search keywords.
type KeywordExtractor interface {
	Extract(question string) []string
}

// Searcher extracts keywords from a question and queries the store with them.
type Searcher struct {
	store     Store
	extractor KeywordExtractor
	limit     int
	logger    *zap.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithLimit sets the maximum number of candidates returned.
func WithLimit(n int) SearcherOption {
	return func(s *Searcher) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLogger sets the logger for search events.
func WithLogger(l *zap.Logger) SearcherOption {
	return func(s *Searcher) { s.logger = l }
}

// NewSearcher creates a Searcher over store.
func NewSearcher(store Store, extractor KeywordExtractor, opts ...SearcherOption) *Searcher {
	s := &Searcher{store: store, extractor: extractor, limit: DefaultLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Search returns at most the configured number of candidates for question, in
// store order. The slice is never nil; a question without keywords yields an
// empty slice without touching the store.
func (s *Searcher) Search(ctx context.Context, question string) ([]*models.SearchCandidate, error) {
	keywords := s.extractor.Extract(question)
	if len(keywords) == 0 {
		s.logger.Debug("no keywords in question")
		return []*models.SearchCandidate{}, nil
	}
	candidates, err := s.store.Search(ctx, keywords, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}
	if candidates == nil {
		candidates = []*models.SearchCandidate{}
	}
	if len(candidates) > s.limit {
		candidates = candidates[:s.limit]
	}
	s.logger.Debug("search complete",
		zap.Strings("keywords", keywords),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}
