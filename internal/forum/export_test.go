package forum

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
)

func TestWriteJSON(t *testing.T) {
	id := int64(155)
	posts := []*models.ForumPost{{
		ID:      &id,
		Title:   "GA4 deadline extended",
		URL:     "https://f/t/ga4-deadline-extended/155",
		Content: "[s.anand - 2025-03-01]\nDue <Sunday> & later",
		Tags:    []string{"ga4"},
	}}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, posts); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "<Sunday> & later") {
		t.Errorf("HTML characters should not be escaped:\n%s", out)
	}
	if !strings.Contains(out, "\n  {") {
		t.Errorf("output should be indented:\n%s", out)
	}

	var decoded []models.ForumPost
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0].URL != posts[0].URL || *decoded[0].ID != 155 {
		t.Errorf("decoded = %+v", decoded)
	}

	buf.Reset()
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("nil posts = %q, want []", buf.String())
	}
}

func TestJSONExporter_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tds_posts.json")
	exp := NewJSONExporter(path)

	first := []*models.ForumPost{{Title: "A", URL: "https://f/t/a/1"}, {Title: "B", URL: "https://f/t/b/2"}}
	if err := exp.Export(first); err != nil {
		t.Fatal(err)
	}
	if err := exp.Export(first[:1]); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []models.ForumPost
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0].Title != "A" {
		t.Errorf("export should be replaced, got %+v", decoded)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}
