package forum

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/pkg/utils"
)

// Mode selects how much of each topic a harvest collects.
type Mode string

const (
	// ModeQuick reads the first result page and a few replies per topic.
	ModeQuick Mode = "quick"
	// ModeFull pages through results and keeps only in-window replies.
	ModeFull Mode = "full"
)

// ParseMode converts a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeQuick:
		return ModeQuick, nil
	case ModeFull, "":
		return ModeFull, nil
	default:
		return "", fmt.Errorf("unknown harvest mode %q", s)
	}
}

// Options controls a Harvester.
type Options struct {
	Mode             Mode
	MaxPages         int
	RepliesPerTopic  int
	TermDelay        time.Duration
	Workers          int
	MaxCategoryPages int
}

// DefaultOptions returns the settings of the given mode.
func DefaultOptions(mode Mode) Options {
	if mode == ModeQuick {
		return Options{Mode: ModeQuick, MaxPages: 1, RepliesPerTopic: 5, TermDelay: time.Second, Workers: 1, MaxCategoryPages: 50}
	}
	return Options{Mode: ModeFull, MaxPages: 5, RepliesPerTopic: 10, TermDelay: 2 * time.Second, Workers: 1, MaxCategoryPages: 50}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions(o.Mode)
	if o.Mode == "" {
		o.Mode = def.Mode
	}
	if o.Mode == ModeQuick {
		o.MaxPages = 1
	} else if o.MaxPages <= 0 {
		o.MaxPages = def.MaxPages
	}
	if o.RepliesPerTopic <= 0 {
		o.RepliesPerTopic = def.RepliesPerTopic
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.MaxCategoryPages <= 0 {
		o.MaxCategoryPages = def.MaxCategoryPages
	}
	return o
}

// Source is the forum API a Harvester reads from.
type Source interface {
	SearchTopics(ctx context.Context, term string, window models.DateWindow, page int) ([]Topic, error)
	TopicPosts(ctx context.Context, topicID int64) ([]Post, error)
	CategoryTopics(ctx context.Context, categoryID, page int) ([]Topic, error)
	TopicURL(t Topic) string
}

// Harvester collects forum topics into ForumPost records.
type Harvester struct {
	source Source
	opts   Options
	logger *zap.Logger
}

// HarvesterOption configures a Harvester.
type HarvesterOption func(*Harvester)

// WithLogger sets the harvester logger.
func WithLogger(l *zap.Logger) HarvesterOption {
	return func(h *Harvester) { h.logger = l }
}

// NewHarvester creates a Harvester reading from source.
func NewHarvester(source Source, opts Options, hopts ...HarvesterOption) *Harvester {
	h := &Harvester{source: source, opts: opts.withDefaults()}
	for _, opt := range hopts {
		opt(h)
	}
	h.logger = utils.OrNop(h.logger)
	return h
}

// Options returns the effective options.
func (h *Harvester) Options() Options { return h.opts }

// Harvest searches the forum for every term within window and returns the
// merged posts, one per URL. When a URL is found more than once the last
// occurrence wins and the position of the first is kept. Remote failures are
// logged and contained; the error is non-nil only when ctx ends the run, in
// which case the posts collected so far are returned with it.
func (h *Harvester) Harvest(ctx context.Context, window models.DateWindow, terms []string) ([]*models.ForumPost, error) {
	log := h.logger.With(zap.String("run_id", uuid.NewString()), zap.String("mode", string(h.opts.Mode)))
	log.Info("harvest started", zap.Strings("terms", terms), zap.Stringer("window", window))
	start := time.Now()

	perTerm := make([][]*models.ForumPost, len(terms))
	var runErr error
	if h.opts.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(h.opts.Workers)
		for i, term := range terms {
			g.Go(func() error {
				posts, err := h.harvestTerm(gctx, log, term, window)
				perTerm[i] = posts
				return err
			})
		}
		runErr = g.Wait()
	} else {
		for i, term := range terms {
			if i > 0 {
				if err := sleep(ctx, h.opts.TermDelay); err != nil {
					runErr = err
					break
				}
			}
			posts, err := h.harvestTerm(ctx, log, term, window)
			perTerm[i] = posts
			if err != nil {
				runErr = err
				break
			}
		}
	}

	var all []*models.ForumPost
	for _, posts := range perTerm {
		all = append(all, posts...)
	}
	merged := Dedupe(all)
	log.Info("harvest finished",
		zap.Int("found", len(all)),
		zap.Int("unique", len(merged)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if runErr != nil {
		return merged, fmt.Errorf("harvest interrupted: %w", runErr)
	}
	return merged, nil
}

// harvestTerm returns the posts found for one term. The error is non-nil only
// when ctx is done.
func (h *Harvester) harvestTerm(ctx context.Context, log *zap.Logger, term string, window models.DateWindow) ([]*models.ForumPost, error) {
	log = log.With(zap.String("term", term))
	var posts []*models.ForumPost
	for page := 1; page <= h.opts.MaxPages; page++ {
		topics, err := h.source.SearchTopics(ctx, term, window, page)
		if err != nil {
			if ctx.Err() != nil {
				return posts, ctx.Err()
			}
			log.Warn("search page failed", zap.Int("page", page), zap.Error(err))
			break
		}
		if len(topics) == 0 {
			break
		}
		for _, topic := range topics {
			if h.opts.Mode == ModeFull && !inWindow(topic.CreatedAt, window) {
				continue
			}
			post, err := h.buildPost(ctx, log, topic, window)
			if err != nil {
				return posts, err
			}
			if post != nil {
				posts = append(posts, post)
			}
		}
	}
	log.Debug("term harvested", zap.Int("posts", len(posts)))
	return posts, nil
}

// buildPost fetches a topic's replies and converts it. A failed fetch drops
// the topic and returns a nil post.
func (h *Harvester) buildPost(ctx context.Context, log *zap.Logger, topic Topic, window models.DateWindow) (*models.ForumPost, error) {
	replies, err := h.source.TopicPosts(ctx, topic.ID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("topic fetch failed", zap.Int64("topic_id", topic.ID), zap.Error(err))
		return nil, nil
	}
	var content string
	if h.opts.Mode == ModeQuick {
		content = quickContent(replies, h.opts.RepliesPerTopic)
	} else {
		content = fullContent(replies, h.opts.RepliesPerTopic, window)
	}
	return h.toPost(topic, content), nil
}

func (h *Harvester) toPost(topic Topic, content string) *models.ForumPost {
	post := &models.ForumPost{
		Title:        topic.Title,
		URL:          h.source.TopicURL(topic),
		Content:      content,
		CreatedAt:    topic.CreatedAt,
		LastPostedAt: topic.LastPostedAt,
		CategoryName: topic.CategoryName,
		Excerpt:      topic.Excerpt,
		PostsCount:   topic.PostsCount,
		Views:        topic.Views,
		Tags:         []string(topic.Tags),
	}
	if topic.ID != 0 {
		id := topic.ID
		post.ID = &id
	}
	return post
}

// HarvestCategory pages through a category listing, keeping topics created
// inside window together with their in-window replies. Topics without any
// in-window reply are skipped. Listing stops at the first empty or failed
// page, or after MaxCategoryPages pages.
func (h *Harvester) HarvestCategory(ctx context.Context, categoryID int, window models.DateWindow) ([]*models.ForumPost, error) {
	log := h.logger.With(zap.String("run_id", uuid.NewString()), zap.Int("category_id", categoryID))
	log.Info("category harvest started", zap.Stringer("window", window))

	var posts []*models.ForumPost
	for page := 0; page < h.opts.MaxCategoryPages; page++ {
		topics, err := h.source.CategoryTopics(ctx, categoryID, page)
		if err != nil {
			if ctx.Err() != nil {
				return Dedupe(posts), fmt.Errorf("category harvest interrupted: %w", ctx.Err())
			}
			log.Warn("category page failed", zap.Int("page", page), zap.Error(err))
			break
		}
		if len(topics) == 0 {
			break
		}
		for _, topic := range topics {
			if !inWindow(topic.CreatedAt, window) {
				continue
			}
			replies, err := h.source.TopicPosts(ctx, topic.ID)
			if err != nil {
				if ctx.Err() != nil {
					return Dedupe(posts), fmt.Errorf("category harvest interrupted: %w", ctx.Err())
				}
				log.Warn("topic fetch failed", zap.Int64("topic_id", topic.ID), zap.Error(err))
				continue
			}
			content := fullContent(replies, len(replies), window)
			if content == "" {
				continue
			}
			posts = append(posts, h.toPost(topic, content))
		}
	}
	merged := Dedupe(posts)
	log.Info("category harvest finished", zap.Int("unique", len(merged)))
	return merged, nil
}

// Dedupe merges posts by URL. The last post for a URL replaces earlier ones
// at the position where the URL first appeared. Nil posts and posts without a
// URL are dropped.
func Dedupe(posts []*models.ForumPost) []*models.ForumPost {
	index := make(map[string]int, len(posts))
	out := make([]*models.ForumPost, 0, len(posts))
	for _, p := range posts {
		if p == nil || p.URL == "" {
			continue
		}
		if i, ok := index[p.URL]; ok {
			out[i] = p
			continue
		}
		index[p.URL] = len(out)
		out = append(out, p)
	}
	return out
}

func quickContent(replies []Post, limit int) string {
	var parts []string
	for _, r := range head(replies, limit) {
		if body := r.Body(); body != "" {
			parts = append(parts, body)
		}
	}
	return strings.Join(parts, "\n\n")
}

func fullContent(replies []Post, limit int, window models.DateWindow) string {
	var parts []string
	for _, r := range replies {
		if len(parts) == limit {
			break
		}
		if !inWindow(r.CreatedAt, window) {
			continue
		}
		body := r.Body()
		if body == "" {
			continue
		}
		user := r.Username
		if user == "" {
			user = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("[%s - %s]\n%s", user, r.CreatedAt, body))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func head(replies []Post, n int) []Post {
	if n >= 0 && len(replies) > n {
		return replies[:n]
	}
	return replies
}

// inWindow reports whether a forum timestamp falls on a day inside window.
// Only the leading YYYY-MM-DD is read; unparseable timestamps are outside.
func inWindow(ts string, window models.DateWindow) bool {
	if len(ts) < len(models.DateLayout) {
		return false
	}
	day, err := time.Parse(models.DateLayout, ts[:len(models.DateLayout)])
	if err != nil {
		return false
	}
	return window.Contains(day)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
