package generation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"adgen/internal/creative"
)

const (
	maxHeadlineRunes = 100
	maxAdTextRunes   = 200
	maxCTARunes      = 50

	minHeadlineRunes = 3
	minAdTextRunes   = 10
	minCTARunes      = 3
)

var (
	codeFenceRe = regexp.MustCompile("```[A-Za-z0-9_+-]*")
	headingRe   = regexp.MustCompile(`(?m)^[ \t]*#+[ \t]*`)
	bulletRe    = regexp.MustCompile(`(?m)^[ \t]*(?:[-•+>]|\d+[.)])[ \t]+`)
	artifactRe  = regexp.MustCompile(`(?i)commit message|analysis:|explanation:`)
	inlineWSRe  = regexp.MustCompile(`[ \t\f\v\r]+`)
	labelRe     = regexp.MustCompile(`(?i)\b(HEADLINE|AD[_ ]?TEXT|CTA)[ \t]*:`)
	bareLabelRe = regexp.MustCompile(`(?i)^\s*(HEADLINE|AD[_ ]?TEXT|CTA)\s*:?\s*$`)
)

var emphasisMarkers = []string{"*", "__", "~~", "`"}

var noiseReplacer = strings.NewReplacer(
	"`", "",
	"*", "",
	"__", "",
	"~~", "",
	"[", "", "]", "", "{", "", "}", "",
	"🚀", "", "✨", "", "🔥", "", "💡", "", "📢", "", "🎯", "", "⭐", "",
	"🌟", "", "💥", "", "👉", "", "✅", "", "📣", "", "🎉", "", "💯", "",
)

// Clean strips markup and decoration noise from raw model output. Lines are
// trimmed and blank lines dropped. Clean(Clean(x)) == Clean(x).
func Clean(raw string) string {
	s := raw
	for {
		next := cleanOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func cleanOnce(s string) string {
	s = codeFenceRe.ReplaceAllString(s, "")
	s = noiseReplacer.Replace(s)
	s = artifactRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllString(s, "")
	s = bulletRe.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(inlineWSRe.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Normalize turns raw model output into a fully populated GeneratedText.
// Labelled fields are taken first; fields with no label are filled line-wise
// from the text the labels did not consume. Fields that are still missing or
// unusable fall back to templates from form.
func Normalize(raw string, form creative.FormData) creative.GeneratedText {
	candidate, rest := labeledFields(Clean(raw))
	fillFromLines(&candidate, usableLines(rest))

	tpl := Template(form)
	if !fieldOK(candidate.Headline, minHeadlineRunes) {
		candidate.Headline = tpl.Headline
	}
	if !fieldOK(candidate.AdText, minAdTextRunes) {
		candidate.AdText = tpl.AdText
	}
	if !fieldOK(candidate.CTA, minCTARunes) {
		candidate.CTA = tpl.CTA
	}
	return candidate
}

// Template is the deterministic copy used when model output is unusable.
func Template(form creative.FormData) creative.GeneratedText {
	name := oneLine(form.ProductName)
	if name == "" {
		name = "Our product"
	}
	desc := strings.TrimRight(oneLine(form.ProductDescription), ".!? ")
	if desc == "" {
		desc = "quality you can count on"
	}
	audience := oneLine(form.TargetAudience)
	if audience == "" {
		audience = "everyone"
	}
	offer := oneLine(form.SpecialOffer)

	adText := fmt.Sprintf("Discover %s: %s. Perfect for %s.", name, desc, audience)
	cta := "Shop Now"
	if offer != "" {
		adText += " " + offer
		cta = "Claim Your Offer"
	}

	return creative.GeneratedText{
		Headline: name + " - Limited Time Offer!",
		AdText:   adText,
		CTA:      cta,
	}
}

// labeledFields extracts labelled values from cleaned text and returns the
// text no label consumed. A label's value runs to the next label, or to the
// end of its first non-blank line when no label follows.
func labeledFields(cleaned string) (creative.GeneratedText, string) {
	matches := labelRe.FindAllStringSubmatchIndex(cleaned, -1)
	if len(matches) == 0 {
		return creative.GeneratedText{}, cleaned
	}

	var (
		out  creative.GeneratedText
		rest strings.Builder
		prev int
	)
	for i, m := range matches {
		rest.WriteString(cleaned[prev:m[0]])
		rest.WriteByte('\n')

		end := len(cleaned)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		} else {
			end = valueLineEnd(cleaned, m[1])
		}
		prev = end

		value := oneLine(cleaned[m[1]:end])
		switch strings.ToUpper(cleaned[m[2]:m[3]]) {
		case "HEADLINE":
			if out.Headline == "" {
				out.Headline = truncate(value, maxHeadlineRunes)
			}
		case "CTA":
			if out.CTA == "" {
				out.CTA = truncate(value, maxCTARunes)
			}
		default:
			if out.AdText == "" {
				out.AdText = truncate(value, maxAdTextRunes)
			}
		}
	}
	rest.WriteString(cleaned[prev:])
	return out, rest.String()
}

// valueLineEnd returns the end of the first non-blank line at or after from.
func valueLineEnd(s string, from int) int {
	i := from
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n') {
		i++
	}
	if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
		return i + nl
	}
	return len(s)
}

func usableLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "analysis") || bareLabelRe.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// fillFromLines assigns lines to the empty fields of out: the first line is
// the headline, the last the CTA and whatever is between the ad text.
func fillFromLines(out *creative.GeneratedText, lines []string) {
	if out.Headline == "" && len(lines) > 0 {
		out.Headline = truncate(lines[0], maxHeadlineRunes)
		lines = lines[1:]
	}
	if out.CTA == "" && len(lines) > 0 && (out.AdText != "" || len(lines) > 1) {
		out.CTA = truncate(lines[len(lines)-1], maxCTARunes)
		lines = lines[:len(lines)-1]
	}
	if out.AdText == "" && len(lines) > 0 {
		out.AdText = truncate(strings.Join(lines, " "), maxAdTextRunes)
	}
}

func fieldOK(value string, minRunes int) bool {
	if utf8.RuneCountInString(value) < minRunes || bareLabelRe.MatchString(value) {
		return false
	}
	for _, m := range emphasisMarkers {
		if strings.Contains(value, m) {
			return false
		}
	}
	return true
}

// oneLine cleans s and folds it onto a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(Clean(s)), " ")
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:maxRunes]))
}
