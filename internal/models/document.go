// Package models defines core data structures for forum posts, course content, and answers.
package models

import "time"

// ForumPost is a harvested forum topic. URL is its identity: storing a post
// with an existing URL replaces the stored record.
type ForumPost struct {
	ID           *int64   `json:"id,omitempty"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Content      string   `json:"content"`
	CreatedAt    string   `json:"created_at"`
	LastPostedAt string   `json:"last_posted_at,omitempty"`
	CategoryName string   `json:"category_name"`
	Excerpt      string   `json:"excerpt"`
	PostsCount   int      `json:"posts_count"`
	Views        int      `json:"views,omitempty"`
	Tags         []string `json:"tags"`
}

// CourseContent is a titled section of course material, grouped by Source.
type CourseContent struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
