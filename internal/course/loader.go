package course

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/pkg/utils"
)

// DefaultExtensions are the file types loaded when none are configured.
var DefaultExtensions = []string{".md", ".txt", ".html", ".htm", ".pdf", ".docx", ".xlsx"}

// Store is the part of the document store that holds course content.
type Store interface {
	ReplaceCourseContent(ctx context.Context, source string, items []*models.CourseContent) (int, error)
	DeleteCourseContentBySource(ctx context.Context, source string) error
}

// Result summarises a load.
type Result struct {
	Files    int
	Sections int
	Failed   int
}

// Loader reads course files into the store. Each file is stored under its
// absolute path, so reloading a file replaces its previous sections.
type Loader struct {
	store      Store
	extensions []string
	recursive  bool
	logger     *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithExtensions restricts loading to the given extensions (leading dot, any case).
func WithExtensions(exts []string) LoaderOption {
	return func(l *Loader) {
		if len(exts) > 0 {
			l.extensions = normalizeExtensions(exts)
		}
	}
}

// WithRecursive sets whether directories are walked recursively.
func WithRecursive(r bool) LoaderOption {
	return func(l *Loader) { l.recursive = r }
}

// WithLogger sets the loader logger.
func WithLogger(lg *zap.Logger) LoaderOption {
	return func(l *Loader) { l.logger = lg }
}

// NewLoader creates a Loader writing to store.
func NewLoader(store Store, opts ...LoaderOption) *Loader {
	l := &Loader{store: store, extensions: normalizeExtensions(DefaultExtensions), recursive: true}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = utils.OrNop(l.logger)
	return l
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// Supports reports whether path has a loadable extension.
func (l *Loader) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range l.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// LoadPath loads a single file or every supported file under a directory.
// In a directory, files that fail are logged and counted in Result.Failed.
func (l *Loader) LoadPath(ctx context.Context, path string) (Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Result{}, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", absPath, err)
	}
	if !info.IsDir() {
		n, err := l.LoadFile(ctx, absPath)
		if err != nil {
			return Result{Failed: 1}, err
		}
		return Result{Files: 1, Sections: n}, nil
	}

	var res Result
	err = filepath.WalkDir(absPath, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != absPath && (!l.recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !l.Supports(p) {
			return nil
		}
		n, err := l.LoadFile(ctx, p)
		if err != nil {
			l.logger.Warn("failed to load course file", zap.String("path", p), zap.Error(err))
			res.Failed++
			return nil
		}
		res.Files++
		res.Sections += n
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("walk %s: %w", absPath, err)
	}
	l.logger.Info("course content loaded",
		zap.String("path", absPath),
		zap.Int("files", res.Files),
		zap.Int("sections", res.Sections),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// LoadFile extracts path and replaces its stored sections. It returns the
// number of sections stored.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolve path: %w", err)
	}
	if !l.Supports(absPath) {
		return 0, fmt.Errorf("unsupported file type: %s", filepath.Ext(absPath))
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}
	sections, err := Extract(absPath, content)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", absPath, err)
	}
	items := make([]*models.CourseContent, 0, len(sections))
	for _, s := range sections {
		items = append(items, &models.CourseContent{Title: s.Title, Content: s.Content})
	}
	n, err := l.store.ReplaceCourseContent(ctx, absPath, items)
	if err != nil {
		return 0, fmt.Errorf("store %s: %w", absPath, err)
	}
	l.logger.Debug("course file loaded", zap.String("path", absPath), zap.Int("sections", n))
	return n, nil
}

// Remove deletes every section stored for path.
func (l *Loader) Remove(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := l.store.DeleteCourseContentBySource(ctx, absPath); err != nil {
		return fmt.Errorf("remove %s: %w", absPath, err)
	}
	l.logger.Debug("course file removed", zap.String("path", absPath))
	return nil
}
