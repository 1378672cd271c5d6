package config

import "time"

// Harvest modes.
const (
	ModeQuick = "quick"
	ModeFull  = "full"
)

// DefaultSystemPrompt is the instruction sent ahead of every generated answer.
const DefaultSystemPrompt = `You are a helpful Teaching Assistant for the Tools in Data Science (TDS) course at IIT Madras.
Answer student questions based on the provided context from course materials and Discourse posts.
Be concise, accurate, and helpful. If you're not sure about something, say so.
Focus on practical guidance and reference the course materials when appropriate.`

// DefaultSearchTerms are the forum search terms used by a full harvest.
var DefaultSearchTerms = []string{
	"TDS", "Tools in Data Science", "assignment", "project",
	"homework", "week", "lecture", "python", "data science",
	"GA1", "GA2", "GA3", "GA4", "GA5", "quiz", "exam",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./tds_knowledge.db"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Search.SnippetLength == 0 {
		cfg.Search.SnippetLength = 500
	}
	if cfg.Search.MaxKeywords == 0 {
		cfg.Search.MaxKeywords = 5
	}
	if cfg.Search.MinKeywordLength == 0 {
		cfg.Search.MinKeywordLength = 3
	}
	applyForumDefaults(&cfg.Forum)
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gpt-3.5-turbo"
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 300
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = 30 * time.Second
	}
	if cfg.Generator.SystemPrompt == "" {
		cfg.Generator.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Course.Extensions == nil {
		cfg.Course.Extensions = []string{".md", ".txt", ".html", ".htm", ".pdf", ".docx", ".xlsx"}
	}
}

func applyForumDefaults(f *ForumConfig) {
	if f.BaseURL == "" {
		f.BaseURL = "https://discourse.onlinedegree.iitm.ac.in"
	}
	if f.UserAgent == "" {
		f.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
	if f.Mode == "" {
		f.Mode = ModeFull
	}
	if f.SearchTerms == nil {
		if f.Mode == ModeQuick {
			f.SearchTerms = []string{"TDS", "Tools in Data Science", "assignment", "project"}
		} else {
			f.SearchTerms = append([]string(nil), DefaultSearchTerms...)
		}
	}
	if f.MaxPages == 0 {
		if f.Mode == ModeQuick {
			f.MaxPages = 1
		} else {
			f.MaxPages = 5
		}
	}
	if f.RepliesPerTopic == 0 {
		if f.Mode == ModeQuick {
			f.RepliesPerTopic = 5
		} else {
			f.RepliesPerTopic = 10
		}
	}
	if f.RequestTimeout == 0 {
		f.RequestTimeout = 30 * time.Second
	}
	if f.RequestInterval == 0 {
		f.RequestInterval = time.Second
	}
	if f.TermDelay == 0 {
		if f.Mode == ModeQuick {
			f.TermDelay = time.Second
		} else {
			f.TermDelay = 2 * time.Second
		}
	}
	if f.Workers == 0 {
		f.Workers = 1
	}
	if f.MaxCategoryPages == 0 {
		f.MaxCategoryPages = 50
	}
	if f.StartDate == "" {
		f.StartDate = "2025-01-01"
	}
	if f.EndDate == "" {
		f.EndDate = "2025-04-14"
	}
}
