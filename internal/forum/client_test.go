package forum

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
)

func testWindow(t *testing.T) models.DateWindow {
	t.Helper()
	w, err := models.ParseDateWindow("2025-01-01", "2025-04-14")
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestClient_SearchTopics(t *testing.T) {
	f := newFakeForum()
	f.addSearch("GA4", 2, topic(42, "ga4-deadline", "GA4 deadline extended", "2025-02-14T18:25:43.000Z"))
	_, client := startFake(t, f)

	topics, err := client.SearchTopics(context.Background(), "GA4", testWindow(t), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 1 || topics[0].ID != 42 || topics[0].Slug != "ga4-deadline" {
		t.Fatalf("topics = %+v", topics)
	}
	if len(topics[0].Tags) != 1 || topics[0].Tags[0] != "tds" {
		t.Errorf("tags = %v", topics[0].Tags)
	}

	reqURL, err := url.Parse(f.requests[0])
	if err != nil {
		t.Fatal(err)
	}
	if got := reqURL.Query().Get("q"); got != "GA4 after:2025-01-01 before:2025-04-14" {
		t.Errorf("q = %q", got)
	}
	if got := reqURL.Query().Get("page"); got != "2" {
		t.Errorf("page = %q", got)
	}
	if f.userAgents[0] != "virtualta-test" {
		t.Errorf("User-Agent = %q", f.userAgents[0])
	}
}

func TestClient_TopicURL(t *testing.T) {
	c := NewClient("https://forum.example.com/")
	if got := c.TopicURL(Topic{ID: 7, Slug: "hello"}); got != "https://forum.example.com/t/hello/7" {
		t.Errorf("TopicURL = %q", got)
	}
	if got := c.TopicURL(Topic{Slug: "no-id"}); got != "" {
		t.Errorf("TopicURL without id = %q", got)
	}
}

func TestClient_TagObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"topics":[{"id":1,"slug":"s","tags":[{"id":3,"name":"ga1","slug":"ga1"}]}]}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, WithRequestInterval(0))
	topics, err := c.SearchTopics(context.Background(), "x", testWindow(t), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(topics[0].Tags) != 1 || topics[0].Tags[0] != "ga1" {
		t.Errorf("tags = %v", topics[0].Tags)
	}
}

func TestClient_FetchErrors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusServiceUnavailable) }, http.StatusServiceUnavailable},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c := NewClient(srv.URL, WithRequestInterval(0))
			_, err := c.TopicPosts(context.Background(), 1)
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %v", err)
			}
			if fe.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", fe.StatusCode, tt.wantStatus)
			}
			if !strings.HasSuffix(fe.URL, "/t/1.json") {
				t.Errorf("url = %q", fe.URL)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, WithRequestInterval(0), WithTimeout(50*time.Millisecond))
	_, err := c.CategoryTopics(context.Background(), 5, 0)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError on timeout, got %v", err)
	}
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", WithRequestInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.TopicPosts(ctx, 1); err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestPost_Body(t *testing.T) {
	tests := []struct {
		name string
		post Post
		want string
	}{
		{"raw wins", Post{Raw: "raw text", Cooked: "<p>cooked</p>"}, "raw text"},
		{"cooked fallback", Post{Cooked: "<p>First <b>para</b></p><ul><li>item</li></ul>"}, "First para\n\nitem"},
		{"cooked without blocks", Post{Cooked: "<span>just text</span>"}, "just text"},
		{"empty", Post{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.post.Body(); got != tt.want {
				t.Errorf("Body() = %q, want %q", got, tt.want)
			}
		})
	}
}
