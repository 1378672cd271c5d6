// Package forum harvests topics from a Discourse forum.
package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/pkg/utils"
)

const (
	// DefaultRequestTimeout bounds every remote call.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	maxResponseBodyBytes = 10 * 1024 * 1024
)

// FetchError is returned when a forum request fails, answers with a non-200
// status or returns a body that cannot be decoded.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Topic is a topic as listed by search and category endpoints.
type Topic struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	CreatedAt    string  `json:"created_at"`
	LastPostedAt string  `json:"last_posted_at"`
	CategoryID   int     `json:"category_id"`
	CategoryName string  `json:"category_name"`
	PostsCount   int     `json:"posts_count"`
	Views        int     `json:"views"`
	Excerpt      string  `json:"excerpt"`
	Tags         tagList `json:"tags"`
}

// Post is one entry of a topic's post stream.
type Post struct {
	ID         int64  `json:"id"`
	PostNumber int    `json:"post_number"`
	Username   string `json:"username"`
	CreatedAt  string `json:"created_at"`
	Raw        string `json:"raw"`
	Cooked     string `json:"cooked"`
}

// Body returns the post's raw markdown, or the text of its rendered HTML when
// raw is empty.
func (p Post) Body() string {
	if raw := strings.TrimSpace(p.Raw); raw != "" {
		return p.Raw
	}
	if strings.TrimSpace(p.Cooked) == "" {
		return ""
	}
	return htmlText(p.Cooked)
}

// tagList accepts both plain tag names and tag objects.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		*t = names
		return nil
	}
	var objects []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &objects); err != nil {
		return err
	}
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		out = append(out, o.Name)
	}
	*t = out
	return nil
}

// Client talks to the Discourse JSON API. All requests share one rate limiter.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout is kept as-is.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// WithRequestInterval sets the minimum spacing between requests.
// A zero or negative interval disables rate limiting.
func WithRequestInterval(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d <= 0 {
			cl.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		cl.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a client for the forum at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

// BaseURL returns the forum root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// TopicURL returns the public URL of a topic, or "" when the topic has no id.
func (c *Client) TopicURL(t Topic) string {
	if t.ID == 0 {
		return ""
	}
	return fmt.Sprintf("%s/t/%s/%d", c.baseURL, t.Slug, t.ID)
}

// SearchTopics runs a forum search for term restricted to window and returns
// the topics of the given 1-based result page.
func (c *Client) SearchTopics(ctx context.Context, term string, window models.DateWindow, page int) ([]Topic, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s after:%s before:%s",
		term, window.Start.Format(models.DateLayout), window.End.Format(models.DateLayout)))
	q.Set("page", strconv.Itoa(page))

	var resp struct {
		Topics []Topic `json:"topics"`
	}
	if err := c.getJSON(ctx, "/search.json", q, &resp); err != nil {
		return nil, err
	}
	return resp.Topics, nil
}

// TopicPosts returns the post stream of a topic.
func (c *Client) TopicPosts(ctx context.Context, topicID int64) ([]Post, error) {
	var resp struct {
		PostStream struct {
			Posts []Post `json:"posts"`
		} `json:"post_stream"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/t/%d.json", topicID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.PostStream.Posts, nil
}

// CategoryTopics returns one 0-based page of a category's topic list.
func (c *Client) CategoryTopics(ctx context.Context, categoryID, page int) ([]Topic, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	var resp struct {
		TopicList struct {
			Topics []Topic `json:"topics"`
		} `json:"topic_list"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/c/%d.json", categoryID), q, &resp); err != nil {
		return nil, err
	}
	return resp.TopicList.Topics, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &FetchError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("forum request",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodyBytes))
		return &FetchError{URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodyBytes)).Decode(out); err != nil {
		return &FetchError{URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

// htmlText returns the visible text of an HTML fragment.
func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	var parts []string
	doc.Find("p, li, pre, h1, h2, h3, h4, h5, h6, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(parts, "\n\n")
}
