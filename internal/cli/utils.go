// Package cli provides output helpers for the virtualta command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is the same JSON the HTTP API returns.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OutputText):
		return OutputText, nil
	case string(OutputJSON):
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteAnswer writes an answer to w in the given format.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	fmt.Fprintf(w, "\n%s\n", ans.Answer)
	if len(ans.Links) > 0 {
		fmt.Fprintln(w, "\nLinks:")
		for i, l := range ans.Links {
			fmt.Fprintf(w, "  %d. %s\n     %s\n", i+1, TruncateWords(l.Text, 12), l.URL)
		}
	}
	fmt.Fprintln(w)
	return nil
}

// Status summarizes the knowledge base for the status command.
type Status struct {
	DatabasePath   string   `json:"database_path"`
	ForumPosts     int64    `json:"forum_posts"`
	CourseSections int64    `json:"course_sections"`
	DiskUsageBytes int64    `json:"disk_usage_bytes"`
	ForumBaseURL   string   `json:"forum_base_url"`
	HarvestMode    string   `json:"harvest_mode"`
	GeneratorReady bool     `json:"generator_ready"`
	Model          string   `json:"model"`
	CourseDirs     []string `json:"course_directories,omitempty"`
}

// WriteStatus writes a status summary to w in the given format.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Database:         %s\n", st.DatabasePath)
	fmt.Fprintf(w, "Forum posts:      %d\n", st.ForumPosts)
	fmt.Fprintf(w, "Course sections:  %d\n", st.CourseSections)
	fmt.Fprintf(w, "Disk usage:       %s\n", FormatBytes(st.DiskUsageBytes))
	fmt.Fprintf(w, "Forum:            %s (%s mode)\n", st.ForumBaseURL, st.HarvestMode)
	gen := "fallback only (no API key)"
	if st.GeneratorReady {
		gen = st.Model
	}
	fmt.Fprintf(w, "Generator:        %s\n", gen)
	if len(st.CourseDirs) > 0 {
		fmt.Fprintf(w, "Course dirs:      %s\n", strings.Join(st.CourseDirs, ", "))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatBytes renders n using binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
