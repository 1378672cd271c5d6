package forum

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
)

// WriteJSON writes posts to w as an indented JSON array. HTML characters in
// post bodies are written as-is.
func WriteJSON(w io.Writer, posts []*models.ForumPost) error {
	if posts == nil {
		posts = []*models.ForumPost{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(posts)
}

// JSONExporter writes a harvest to a JSON file.
type JSONExporter struct {
	path string
}

// NewJSONExporter creates an exporter writing to path.
func NewJSONExporter(path string) *JSONExporter {
	return &JSONExporter{path: path}
}

// Path returns the export file path.
func (e *JSONExporter) Path() string { return e.path }

// Export replaces the export file with posts. The file is written to a
// temporary sibling first so readers never see a partial export.
func (e *JSONExporter) Export(posts []*models.ForumPost) error {
	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(e.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteJSON(tmp, posts); err != nil {
		tmp.Close()
		return fmt.Errorf("encode export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), e.path); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
