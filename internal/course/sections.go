// Package course turns course material files into titled content sections.
package course

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Section is one titled piece of course material.
type Section struct {
	Title   string
	Content string
}

// Extract splits a file's bytes into sections according to its extension.
// name is used for titles when the file provides none.
func Extract(name string, content []byte) ([]Section, error) {
	title := fileTitle(name)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return pdfSections(title, content)
	case ".xlsx":
		return sheetSections(title, content)
	case ".docx":
		return docxSections(title, content)
	case ".html", ".htm":
		return htmlSections(title, content)
	default:
		return headingSections(title, toValidUTF8(content)), nil
	}
}

func fileTitle(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func toValidUTF8(content []byte) string {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd")
	}
	return string(content)
}

// headingSections splits text on markdown ATX headings. Text before the first
// heading is titled with fallback. Sections without body text are dropped.
func headingSections(fallback, text string) []Section {
	var sections []Section
	title := fallback
	var body []string
	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content != "" {
			sections = append(sections, Section{Title: title, Content: content})
		}
		body = body[:0]
	}
	inFence := false
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if heading, ok := parseHeading(line); ok && !inFence {
			flush()
			title = heading
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

// parseHeading recognises "# Title" through "###### Title".
func parseHeading(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, "#")
	level := len(line) - len(trimmed)
	if level == 0 || level > 6 {
		return "", false
	}
	if trimmed != "" && trimmed[0] != ' ' && trimmed[0] != '\t' {
		return "", false
	}
	heading := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(trimmed), "#"))
	if heading == "" {
		return "", false
	}
	return heading, true
}

// htmlSections returns one section holding the page's visible text.
func htmlSections(fallback string, content []byte) ([]Section, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = fallback
	}

	doc.Find("script, style, nav, noscript").Remove()
	var parts []string
	doc.Find("body").Find("h1, h2, h3, h4, h5, h6, p, li, pre, td").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			parts = append(parts, text)
		}
	})
	body := strings.Join(parts, "\n")
	if body == "" {
		body = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}
	if body == "" {
		return nil, nil
	}
	return []Section{{Title: title, Content: body}}, nil
}
