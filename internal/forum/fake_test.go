package forum

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeForum serves a minimal Discourse JSON API.
type fakeForum struct {
	mu         sync.Mutex
	search     map[string]map[int][]map[string]any // term -> page -> topics
	topics     map[int64][]map[string]any          // topic id -> posts
	categories map[int]map[int][]map[string]any    // category -> page -> topics
	failSearch map[string]bool
	failTopic  map[int64]bool
	requests   []string
	userAgents []string
}

func newFakeForum() *fakeForum {
	return &fakeForum{
		search:     map[string]map[int][]map[string]any{},
		topics:     map[int64][]map[string]any{},
		categories: map[int]map[int][]map[string]any{},
		failSearch: map[string]bool{},
		failTopic:  map[int64]bool{},
	}
}

func (f *fakeForum) addSearch(term string, page int, topics ...map[string]any) {
	if f.search[term] == nil {
		f.search[term] = map[int][]map[string]any{}
	}
	f.search[term][page] = append(f.search[term][page], topics...)
}

func (f *fakeForum) addCategory(id, page int, topics ...map[string]any) {
	if f.categories[id] == nil {
		f.categories[id] = map[int][]map[string]any{}
	}
	f.categories[id][page] = append(f.categories[id][page], topics...)
}

func topic(id int64, slug, title, created string) map[string]any {
	return map[string]any{
		"id": id, "slug": slug, "title": title, "created_at": created,
		"posts_count": 2, "views": 10, "excerpt": "excerpt of " + slug, "tags": []string{"tds"},
	}
}

func reply(user, created, raw string) map[string]any {
	return map[string]any{"username": user, "created_at": created, "raw": raw, "cooked": "<p>" + raw + "</p>"}
}

func (f *fakeForum) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.URL.RequestURI())
	f.userAgents = append(f.userAgents, r.Header.Get("User-Agent"))

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	switch {
	case r.URL.Path == "/search.json":
		term, _, _ := strings.Cut(r.URL.Query().Get("q"), " after:")
		if f.failSearch[term] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		topics := f.search[term][page]
		if topics == nil {
			topics = []map[string]any{}
		}
		writeJSON(w, map[string]any{"topics": topics})
	case strings.HasPrefix(r.URL.Path, "/t/"):
		id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/t/"), ".json"), 10, 64)
		if err != nil || f.failTopic[id] {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"post_stream": map[string]any{"posts": f.topics[id]}})
	case strings.HasPrefix(r.URL.Path, "/c/"):
		id, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/c/"), ".json"))
		topics := f.categories[id][page]
		if topics == nil {
			topics = []map[string]any{}
		}
		writeJSON(w, map[string]any{"topic_list": map[string]any{"topics": topics}})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeForum) requestCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func startFake(t *testing.T, f *fakeForum) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, WithRequestInterval(0), WithUserAgent("virtualta-test"))
}
