// Package render turns generated copy and an image URL into a preview
// document. Output depends only on the inputs.
package render

import (
	"bytes"
	"html"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"adgen/internal/creative"
)

const (
	baseScore = 70
	maxScore  = 100
)

type Style string

const (
	StyleEmphasis Style = "emphasis"
	StylePlain    Style = "plain"
	StyleCTA      Style = "cta"
)

type Sentence struct {
	Text  string `json:"text"`
	Style Style  `json:"style"`
}

// Document is the rendered preview.
type Document struct {
	Headline  string     `json:"headline"`
	Sentences []Sentence `json:"sentences"`
	CTA       string     `json:"cta"`
	ImageURL  string     `json:"imageUrl"`
	Score     int        `json:"score"`
	HTML      string     `json:"html"`
}

var policy = bluemonday.StrictPolicy()

var previewTemplate = template.Must(template.New("preview").Parse(`<article class="ad-preview" data-score="{{.Score}}">
{{- if .ImageURL}}
  <img class="ad-image" src="{{.ImageURL}}" alt="{{.Alt}}">
{{- end}}
  <h2 class="ad-headline">{{.Headline}}</h2>
  <p class="ad-text">
{{- range .Sentences}}
    <span class="ad-sentence ad-{{.Style}}">{{.Text}}</span>
{{- end}}
  </p>
  <button class="ad-cta" type="button">{{.CTA}}</button>
  <div class="ad-score">Performance score: {{.Score}}/100</div>
</article>`))

// Render builds the preview for text and imageURL.
func Render(text creative.GeneratedText, imageURL string, form creative.FormData) Document {
	doc := Document{
		Headline: sanitize(text.Headline),
		CTA:      sanitize(text.CTA),
		ImageURL: strings.TrimSpace(imageURL),
		Score:    Score(text, form),
	}
	for _, s := range SplitSentences(text.AdText) {
		s.Text = sanitize(s.Text)
		doc.Sentences = append(doc.Sentences, s)
	}

	var buf bytes.Buffer
	data := struct {
		Document
		ImageURL any
		Alt      string
	}{
		Document: doc,
		ImageURL: imageSource(doc.ImageURL),
		Alt:      strings.TrimSpace(form.ProductName),
	}
	if err := previewTemplate.Execute(&buf, data); err == nil {
		doc.HTML = buf.String()
	}
	return doc
}

// Score is cosmetic: 70 plus bonuses for well-formed copy, at most 100.
func Score(text creative.GeneratedText, form creative.FormData) int {
	score := baseScore
	if words := len(strings.Fields(text.Headline)); words >= 5 && words <= 10 {
		score += 5
	}
	if utf8.RuneCountInString(text.AdText) > 50 {
		score += 10
	}
	if strings.TrimSpace(text.CTA) != "" {
		score += 10
	}
	if strings.TrimSpace(form.SpecialOffer) != "" {
		score += 5
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}

// SplitSentences cuts text after each run of '.', '!' or '?'. Sentences
// keep their order and punctuation; only surrounding whitespace is lost.
func SplitSentences(text string) []Sentence {
	var parts []string
	var cur strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if !isTerminator(runes[i]) {
			continue
		}
		for i+1 < len(runes) && isTerminator(runes[i+1]) {
			i++
			cur.WriteRune(runes[i])
		}
		if s := strings.TrimSpace(cur.String()); s != "" {
			parts = append(parts, s)
		}
		cur.Reset()
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		parts = append(parts, s)
	}

	out := make([]Sentence, len(parts))
	for i, p := range parts {
		style := StylePlain
		switch {
		case i == 0:
			style = StyleEmphasis
		case i == len(parts)-1 && len(parts) > 2:
			style = StyleCTA
		}
		out[i] = Sentence{Text: p, Style: style}
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// sanitize drops any markup the model slipped into its copy. The strict
// policy escapes entities, which html/template would escape again, so they
// are unescaped first.
func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}

// imageSource lets data:image URLs through html/template, which otherwise
// replaces them with #ZgotmplZ.
func imageSource(u string) any {
	if strings.HasPrefix(u, "data:image/") {
		return template.URL(u)
	}
	return u
}
