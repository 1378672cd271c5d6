package models

// CandidateKind tells which corpus a search candidate came from.
type CandidateKind string

const (
	// KindForum marks a candidate taken from a forum post.
	KindForum CandidateKind = "forum"
	// KindCourse marks a candidate taken from course content.
	KindCourse CandidateKind = "course"
)

// SearchCandidate is a single search hit handed to the answer composer.
// URL and Excerpt are set for forum hits, Source for course hits.
type SearchCandidate struct {
	Kind    CandidateKind `json:"kind"`
	Title   string        `json:"title"`
	URL     string        `json:"url,omitempty"`
	Snippet string        `json:"content"`
	Excerpt string        `json:"excerpt,omitempty"`
	Source  string        `json:"source,omitempty"`
}

// Link is a reference returned alongside an answer.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Answer is the response to a student question.
type Answer struct {
	Answer string `json:"answer"`
	Links  []Link `json:"links"`
}
