package guide

import (
	"bytes"
	"html"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// Button actions a popover can offer.
const (
	ActionNext     = "next"
	ActionPrevious = "previous"
	ActionClose    = "close"
)

// Button is one popover action.
type Button struct {
	Action string `json:"action"`
	Label  string `json:"label"`
}

// Content is what a popover shows for a step.
type Content struct {
	StepID string `json:"step_id"`
	Title  string `json:"title"`
	// HTML is the sanitised description.
	HTML string `json:"html"`
	// Text is the description as markdown, for text surfaces.
	Text     string   `json:"text"`
	Buttons  []Button `json:"buttons"`
	Progress string   `json:"progress,omitempty"`
	Index    int      `json:"index"`
	Total    int      `json:"total"`
}

// Renderer turns step descriptions into popover content. Descriptions are
// markdown and may embed HTML; the result is sanitised before it can reach
// a document.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
		),
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Render builds the content of step at index in a tour of total steps.
// Index -1 marks a one-off highlight outside the tour sequence.
func (r *Renderer) Render(step Step, index, total int, cfg Config) Content {
	body := r.HTML(step.Body())
	text, err := r.conv.ConvertString(body)
	if err != nil {
		text = html.UnescapeString(r.policy.Sanitize(body))
	}

	c := Content{
		StepID: step.ID,
		Title:  step.Heading(),
		HTML:   body,
		Text:   strings.TrimSpace(text),
		Index:  index,
		Total:  total,
	}
	c.Buttons = buttons(step, index, total, cfg)
	if cfg.ShowProgress && index >= 0 {
		c.Progress = progressText(cfg.ProgressText, index, total)
	}
	return c
}

// HTML renders and sanitises a markdown description.
func (r *Renderer) HTML(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return r.policy.Sanitize(html.EscapeString(src))
	}
	return strings.TrimSpace(r.policy.Sanitize(buf.String()))
}

func buttons(step Step, index, total int, cfg Config) []Button {
	allowed := step.Popover.Buttons
	if len(allowed) == 0 {
		allowed = []string{ActionNext, ActionPrevious, ActionClose}
	}

	var out []Button
	for _, a := range allowed {
		switch a {
		case ActionNext:
			if index < 0 {
				continue
			}
			label := or(cfg.NextText, "Next")
			if index == total-1 {
				label = or(cfg.DoneText, "Done")
			}
			out = append(out, Button{Action: ActionNext, Label: label})
		case ActionPrevious:
			if index <= 0 {
				continue
			}
			out = append(out, Button{Action: ActionPrevious, Label: or(cfg.PrevText, "Previous")})
		case ActionClose:
			if !cfg.Closable() {
				continue
			}
			out = append(out, Button{Action: ActionClose, Label: "×"})
		}
	}
	return out
}

func progressText(tmpl string, index, total int) string {
	if tmpl == "" {
		tmpl = "{{current}} of {{total}}"
	}
	return strings.NewReplacer(
		"{{current}}", strconv.Itoa(index+1),
		"{{total}}", strconv.Itoa(total),
	).Replace(tmpl)
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
