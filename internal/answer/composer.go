// Package answer turns retrieved candidates into an answer with links.
package answer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/generator"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/internal/models"
	"github.com/spattanayak1/iitm-tds-virtual-ta-v3/pkg/utils"
)

// MaxLinks is the number of forum links attached to an answer.
const MaxLinks = 3

// DefaultLinkText labels a forum link whose post has no title.
const DefaultLinkText = "Discourse Discussion"

// Fallback answers used when no generator is configured or generation fails.
const (
	NoContextAnswer  = "I don't have enough information to answer your question. Please check the course materials or ask on the Discourse forum."
	AssignmentAnswer = "For assignment-related questions, please refer to the course materials and assignment instructions. If you need clarification, check the Discourse forum for similar discussions."
	DeadlineAnswer   = "Please check the course schedule and assignment pages for submission deadlines. Make sure to submit your work before the specified deadline."
	GeneralAnswer    = "Based on the available course materials, I suggest reviewing the relevant course content. For specific questions, please check the Discourse forum or contact the course staff."
)

var fallbackRules = []struct {
	needles []string
	answer  string
}{
	{[]string{"assignment", "homework", "hw"}, AssignmentAnswer},
	{[]string{"deadline", "due", "submit"}, DeadlineAnswer},
}

const contextSeparator = "\n\n---\n\n"

// Composer builds answers from candidates.
type Composer struct {
	generator    generator.Generator
	systemPrompt string
	logger       *zap.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithGenerator sets the generative backend. A nil generator leaves the
// composer on rule-based answers.
func WithGenerator(g generator.Generator) Option {
	return func(c *Composer) { c.generator = g }
}

// WithSystemPrompt sets the instruction sent with every generation request.
func WithSystemPrompt(p string) Option {
	return func(c *Composer) { c.systemPrompt = p }
}

// WithLogger sets the composer logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// NewComposer creates a Composer.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

// Compose answers question from candidates. The generator is called once
// when configured; any failure falls back to the rule-based answer. Links
// come from forum candidates regardless of how the text was produced.
func (c *Composer) Compose(ctx context.Context, question string, candidates []*models.SearchCandidate, image []byte) *models.Answer {
	contextText := BuildContext(candidates)
	text := ""
	if c.generator != nil {
		out, err := c.generator.Generate(ctx, generator.Request{
			System: c.systemPrompt,
			Prompt: "Context:\n" + contextText + "\n\nQuestion: " + question,
			Image:  image,
		})
		if err != nil {
			c.logger.Warn("generation failed, using fallback answer", zap.Error(err))
		} else {
			text = out
		}
	}
	if text == "" {
		text = Fallback(question, contextText)
	}
	return &models.Answer{Answer: text, Links: Links(candidates)}
}

// BuildContext renders candidates in order, each as a labelled title line
// followed by its snippet.
func BuildContext(candidates []*models.SearchCandidate) string {
	parts := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		if cand == nil {
			continue
		}
		label := "Course Content"
		if cand.Kind == models.KindForum {
			label = "Discourse Post"
		}
		parts = append(parts, label+": "+cand.Title+"\n"+cand.Snippet)
	}
	return strings.Join(parts, contextSeparator)
}

// Fallback picks a rule-based answer by substring match on the lowercased
// question. An empty context always yields NoContextAnswer.
func Fallback(question, contextText string) string {
	if contextText == "" {
		return NoContextAnswer
	}
	q := strings.ToLower(question)
	for _, rule := range fallbackRules {
		for _, needle := range rule.needles {
			if strings.Contains(q, needle) {
				return rule.answer
			}
		}
	}
	return GeneralAnswer
}

// Links returns up to MaxLinks forum candidates that carry a URL, in order.
func Links(candidates []*models.SearchCandidate) []models.Link {
	links := []models.Link{}
	for _, cand := range candidates {
		if len(links) == MaxLinks {
			break
		}
		if cand == nil || cand.Kind != models.KindForum || cand.URL == "" {
			continue
		}
		text := cand.Title
		if text == "" {
			text = DefaultLinkText
		}
		links = append(links, models.Link{URL: cand.URL, Text: text})
	}
	return links
}
