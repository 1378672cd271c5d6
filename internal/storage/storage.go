// Package storage defines the persistence interface for forum posts and course content.
package storage

import (
	"context"
	"errors"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines forum post and course content persistence operations.
type Storage interface {
	// Forum posts
	UpsertPosts(ctx context.Context, posts []*models.ForumPost) (int, error)
	GetPost(ctx context.Context, url string) (*models.ForumPost, error)
	ListPosts(ctx context.Context, offset, limit int) ([]*models.ForumPost, error)

	// Course content
	ReplaceCourseContent(ctx context.Context, source string, items []*models.CourseContent) (int, error)
	DeleteCourseContentBySource(ctx context.Context, source string) error

	// Retrieval
	Search(ctx context.Context, keywords []string, limit int) ([]*models.SearchCandidate, error)

	// Stats
	CountPosts(ctx context.Context) (int64, error)
	CountCourseContent(ctx context.Context) (int64, error)

	Close() error
}

// RecordError describes a single record that could not be stored. It is
// logged and the rest of the batch proceeds.
type RecordError struct {
	URL string
	Err error
}

func (e *RecordError) Error() string {
	if e.URL == "" {
		return "store record: " + e.Err.Error()
	}
	return "store record " + e.URL + ": " + e.Err.Error()
}

func (e *RecordError) Unwrap() error { return e.Err }
