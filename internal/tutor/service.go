// Package tutor answers student questions from the stored knowledge base and
// keeps that knowledge base fresh.
package tutor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/pkg/utils"
)

// ApologyAnswer is returned when answering fails internally.
const ApologyAnswer = "I apologize, but I encountered an error while processing your question. Please try again or contact the course staff."

// Store persists harvested posts.
type Store interface {
	UpsertPosts(ctx context.Context, posts []*models.ForumPost) (int, error)
}

// Searcher finds candidates for a question.
type Searcher interface {
	Search(ctx context.Context, question string) ([]*models.SearchCandidate, error)
}

// Composer produces an answer from candidates.
type Composer interface {
	Compose(ctx context.Context, question string, candidates []*models.SearchCandidate, image []byte) *models.Answer
}

// Harvester collects forum posts.
type Harvester interface {
	Harvest(ctx context.Context, window models.DateWindow, terms []string) ([]*models.ForumPost, error)
	HarvestCategory(ctx context.Context, categoryID int, window models.DateWindow) ([]*models.ForumPost, error)
}

// Exporter receives every harvest after it is stored.
type Exporter interface {
	Export(posts []*models.ForumPost) error
}

// Service wires search, composition and ingestion together.
type Service struct {
	store     Store
	searcher  Searcher
	composer  Composer
	harvester Harvester
	exporter  Exporter
	terms     []string
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSearchTerms sets the forum search terms used by RefreshKnowledge.
func WithSearchTerms(terms []string) Option {
	return func(s *Service) { s.terms = append([]string(nil), terms...) }
}

// WithExporter also hands each harvest to e.
func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// New creates a Service. The harvester may be nil when the service only answers.
func New(store Store, searcher Searcher, composer Composer, harvester Harvester, opts ...Option) *Service {
	s := &Service{store: store, searcher: searcher, composer: composer, harvester: harvester}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Answer responds to question with an optional base64 image. It fails only
// with ErrInvalidInput; internal failures produce the apology answer.
func (s *Service) Answer(ctx context.Context, question, imageBase64 string) (ans *models.Answer, err error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	image, err := DecodeImage(imageBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("answer panicked", zap.Any("panic", r))
			ans, err = apology(), nil
		}
	}()

	start := time.Now()
	candidates, err := s.searcher.Search(ctx, q)
	if err != nil {
		s.logger.Warn("search failed", zap.Error(err))
		return apology(), nil
	}
	ans = s.composer.Compose(ctx, q, candidates, image)
	if ans == nil {
		return apology(), nil
	}
	if ans.Links == nil {
		ans.Links = []models.Link{}
	}
	s.logger.Info("question answered",
		zap.Int("candidates", len(candidates)),
		zap.Int("links", len(ans.Links)),
		zap.Bool("image", len(image) > 0),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ans, nil
}

func apology() *models.Answer {
	return &models.Answer{Answer: ApologyAnswer, Links: []models.Link{}}
}

// DecodeImage decodes a standard base64 image, optionally wrapped in a
// data URL. An empty string yields nil.
func DecodeImage(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}
	if strings.HasPrefix(encoded, "data:") {
		header, payload, ok := strings.Cut(encoded, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, errors.New("image data URL must be base64 encoded")
		}
		encoded = payload
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("image is not valid base64: %w", err)
	}
	return data, nil
}

// RefreshKnowledge harvests the forum for window and stores the result. It
// returns the number of posts stored. Posts collected before an interrupted
// harvest are still stored, and the interruption is reported.
func (s *Service) RefreshKnowledge(ctx context.Context, window models.DateWindow) (int, error) {
	return s.ingest(ctx, window, func(ctx context.Context) ([]*models.ForumPost, error) {
		return s.harvester.Harvest(ctx, window, s.terms)
	})
}

// RefreshCategory harvests one forum category for window and stores the result.
func (s *Service) RefreshCategory(ctx context.Context, categoryID int, window models.DateWindow) (int, error) {
	return s.ingest(ctx, window, func(ctx context.Context) ([]*models.ForumPost, error) {
		return s.harvester.HarvestCategory(ctx, categoryID, window)
	})
}

func (s *Service) ingest(ctx context.Context, window models.DateWindow, harvest func(context.Context) ([]*models.ForumPost, error)) (int, error) {
	if s.harvester == nil {
		return 0, &IngestionError{Stage: "harvest", Err: errors.New("no harvester configured")}
	}
	if err := window.Validate(); err != nil {
		return 0, &IngestionError{Stage: "window", Err: err}
	}

	posts, harvestErr := harvest(ctx)
	if harvestErr != nil && len(posts) == 0 {
		return 0, &IngestionError{Stage: "harvest", Err: harvestErr}
	}

	// The store write must not be dropped when the harvest was cancelled.
	stored, err := s.store.UpsertPosts(context.WithoutCancel(ctx), posts)
	if err != nil {
		return 0, &IngestionError{Stage: "store", Err: err}
	}
	if s.exporter != nil {
		if err := s.exporter.Export(posts); err != nil {
			return stored, &IngestionError{Stage: "export", Err: err}
		}
	}
	s.logger.Info("knowledge refreshed",
		zap.Stringer("window", window),
		zap.Int("harvested", len(posts)),
		zap.Int("stored", stored),
	)
	if harvestErr != nil {
		return stored, &IngestionError{Stage: "harvest", Err: harvestErr}
	}
	return stored, nil
}
