package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/pkg/utils"
)

// DefaultSnippetLength is the number of runes of content kept in a search candidate.
const DefaultSnippetLength = 500

// SQLiteStorage implements Storage using SQLite. Every operation takes its
// own connection from the pool and returns it before the call ends.
type SQLiteStorage struct {
	db            *sql.DB
	snippetLength int
	logger        *zap.Logger
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithLogger sets the logger used for skipped records.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = l }
}

// WithSnippetLength sets how many runes of content a search candidate carries.
func WithSnippetLength(n int) Option {
	return func(s *SQLiteStorage) {
		if n > 0 {
			s.snippetLength = n
		}
	}
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{db: db, snippetLength: DefaultSnippetLength}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS forum_posts (
		row_id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic_id INTEGER,
		title TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT '',
		last_posted_at TEXT NOT NULL DEFAULT '',
		category_name TEXT NOT NULL DEFAULT '',
		excerpt TEXT NOT NULL DEFAULT '',
		posts_count INTEGER NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS course_content (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_course_content_source ON course_content(source);
	`
	_, err := db.Exec(schema)
	return err
}

const upsertPostSQL = `
	INSERT INTO forum_posts
		(topic_id, title, url, content, created_at, last_posted_at,
		 category_name, excerpt, posts_count, views, tags, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		topic_id = excluded.topic_id,
		title = excluded.title,
		content = excluded.content,
		created_at = excluded.created_at,
		last_posted_at = excluded.last_posted_at,
		category_name = excluded.category_name,
		excerpt = excluded.excerpt,
		posts_count = excluded.posts_count,
		views = excluded.views,
		tags = excluded.tags,
		updated_at = excluded.updated_at`

// UpsertPosts inserts each post or replaces the stored post with the same URL.
// A record that cannot be stored is logged and skipped; the returned count is
// the number of posts written. The error is non-nil only when the batch could
// not be started or committed.
func (s *SQLiteStorage) UpsertPosts(ctx context.Context, posts []*models.ForumPost) (int, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPostSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	stored := 0
	for _, post := range posts {
		if err := upsertOne(ctx, stmt, post, now); err != nil {
			s.logger.Warn("skipping forum post", zap.Error(err))
			continue
		}
		stored++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return stored, nil
}

func upsertOne(ctx context.Context, stmt *sql.Stmt, post *models.ForumPost, now time.Time) error {
	if post == nil {
		return &RecordError{Err: errors.New("nil post")}
	}
	if strings.TrimSpace(post.URL) == "" {
		return &RecordError{Err: errors.New("missing url")}
	}
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return &RecordError{URL: post.URL, Err: fmt.Errorf("marshal tags: %w", err)}
	}
	var topicID sql.NullInt64
	if post.ID != nil {
		topicID = sql.NullInt64{Int64: *post.ID, Valid: true}
	}
	_, err = stmt.ExecContext(ctx,
		topicID, post.Title, post.URL, post.Content, post.CreatedAt, post.LastPostedAt,
		post.CategoryName, post.Excerpt, post.PostsCount, post.Views, string(tagsJSON), now,
	)
	if err != nil {
		return &RecordError{URL: post.URL, Err: err}
	}
	return nil
}

const postColumns = `topic_id, title, url, content, created_at, last_posted_at,
	category_name, excerpt, posts_count, views, tags`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.ForumPost, error) {
	var post models.ForumPost
	var topicID sql.NullInt64
	var tagsJSON string
	if err := row.Scan(&topicID, &post.Title, &post.URL, &post.Content, &post.CreatedAt,
		&post.LastPostedAt, &post.CategoryName, &post.Excerpt, &post.PostsCount, &post.Views, &tagsJSON); err != nil {
		return nil, err
	}
	if topicID.Valid {
		id := topicID.Int64
		post.ID = &id
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &post.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &post, nil
}

// GetPost returns the stored post with the given URL.
func (s *SQLiteStorage) GetPost(ctx context.Context, url string) (*models.ForumPost, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	row := conn.QueryRowContext(ctx, `SELECT `+postColumns+` FROM forum_posts WHERE url = ?`, url)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", url, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts returns posts in insertion order with offset and limit.
func (s *SQLiteStorage) ListPosts(ctx context.Context, offset, limit int) ([]*models.ForumPost, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx,
		`SELECT `+postColumns+` FROM forum_posts ORDER BY row_id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ForumPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ReplaceCourseContent swaps every course_content row of source for items in
// one transaction and returns the number of rows written.
func (s *SQLiteStorage) ReplaceCourseContent(ctx context.Context, source string, items []*models.CourseContent) (int, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM course_content WHERE source = ?`, source); err != nil {
		return 0, fmt.Errorf("clear source %s: %w", source, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO course_content (title, content, source, created_at) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, item := range items {
		if item == nil {
			continue
		}
		item.Source = source
		item.CreatedAt = now
		res, err := stmt.ExecContext(ctx, item.Title, item.Content, source, now)
		if err != nil {
			return 0, fmt.Errorf("insert course content %q: %w", item.Title, err)
		}
		if id, err := res.LastInsertId(); err == nil {
			item.ID = id
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(items), nil
}

// DeleteCourseContentBySource removes all course content recorded for source.
func (s *SQLiteStorage) DeleteCourseContentBySource(ctx context.Context, source string) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `DELETE FROM course_content WHERE source = ?`, source)
	return err
}

// Search returns candidates whose text contains any keyword, case-insensitively.
// Each keyword contributes at most limit forum posts and limit course rows.
// Forum lists (in keyword order) come before course lists and the whole result
// is cut to limit. A row matching several keywords appears once per keyword.
func (s *SQLiteStorage) Search(ctx context.Context, keywords []string, limit int) ([]*models.SearchCandidate, error) {
	out := []*models.SearchCandidate{}
	if len(keywords) == 0 || limit <= 0 {
		return out, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var forum, course []*models.SearchCandidate
	for _, kw := range keywords {
		pattern := likePattern(kw)
		posts, err := s.searchPosts(ctx, conn, pattern, limit)
		if err != nil {
			return nil, fmt.Errorf("search forum posts for %q: %w", kw, err)
		}
		forum = append(forum, posts...)

		items, err := s.searchCourse(ctx, conn, pattern, limit)
		if err != nil {
			return nil, fmt.Errorf("search course content for %q: %w", kw, err)
		}
		course = append(course, items...)
	}

	out = append(out, forum...)
	out = append(out, course...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SQLiteStorage) searchPosts(ctx context.Context, conn *sql.Conn, pattern string, limit int) ([]*models.SearchCandidate, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT title, url, content, excerpt FROM forum_posts
		 WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\' OR excerpt LIKE ? ESCAPE '\'
		 ORDER BY row_id LIMIT ?`,
		pattern, pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SearchCandidate
	for rows.Next() {
		var title, url, content, excerpt string
		if err := rows.Scan(&title, &url, &content, &excerpt); err != nil {
			return nil, err
		}
		out = append(out, &models.SearchCandidate{
			Kind:    models.KindForum,
			Title:   title,
			URL:     url,
			Snippet: utils.Clip(content, s.snippetLength),
			Excerpt: excerpt,
		})
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) searchCourse(ctx context.Context, conn *sql.Conn, pattern string, limit int) ([]*models.SearchCandidate, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT title, content, source FROM course_content
		 WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'
		 ORDER BY id LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SearchCandidate
	for rows.Next() {
		var title, content, source string
		if err := rows.Scan(&title, &content, &source); err != nil {
			return nil, err
		}
		out = append(out, &models.SearchCandidate{
			Kind:    models.KindCourse,
			Title:   title,
			Snippet: utils.Clip(content, s.snippetLength),
			Source:  source,
		})
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps kw for a substring LIKE match, escaping wildcard characters.
func likePattern(kw string) string {
	return "%" + likeEscaper.Replace(kw) + "%"
}

// CountPosts returns the total number of forum posts.
func (s *SQLiteStorage) CountPosts(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM forum_posts`)
}

// CountCourseContent returns the total number of course content rows.
func (s *SQLiteStorage) CountCourseContent(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM course_content`)
}

func (s *SQLiteStorage) count(ctx context.Context, query string) (int64, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var n int64
	err = conn.QueryRowContext(ctx, query).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

var _ Storage = (*SQLiteStorage)(nil)
