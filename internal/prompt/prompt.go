// Package prompt turns a submitted ad form into instructions for the text
// and image models. Everything here is pure.
package prompt

import (
	"fmt"
	"strings"

	"adgen/internal/creative"
)

const (
	LabelHeadline = "HEADLINE:"
	LabelAdText   = "AD_TEXT:"
	LabelCTA      = "CTA:"
)

// LegibilityInstruction is appended to every image prompt.
const LegibilityInstruction = "Any text rendered in the image must be legible, correctly spelled, high-contrast and large enough to read on a phone screen."

// BuildTextPrompt builds the copywriting instruction for the language model.
func BuildTextPrompt(form creative.FormData) string {
	f := form.WithDefaults()

	var b strings.Builder
	b.Grow(1024)

	b.WriteString("TASK: Write high-converting advertising copy.\n\n")

	b.WriteString("PRODUCT:\n")
	writeField(&b, "Name", f.ProductName)
	writeField(&b, "Description", f.ProductDescription)
	writeField(&b, "Target audience", f.TargetAudience)
	writeField(&b, "Business type", f.BusinessType)
	writeField(&b, "Special offer", f.SpecialOffer)
	b.WriteString("\n")

	b.WriteString("STYLE:\n")
	writeField(&b, "Language", f.Language)
	writeField(&b, "Tone", f.Tone)
	writeField(&b, "Ad format", f.AdFormat)
	b.WriteString("\n")

	b.WriteString("RULES:\n")
	for _, line := range []string{
		fmt.Sprintf("Write every line in %s.", f.Language),
		"The headline is 5 to 10 words and names the main benefit.",
		"The ad text is 2 or 3 short persuasive sentences aimed at the target audience.",
		"The call to action is 2 to 5 words.",
		"Mention the special offer if one is given.",
		"Plain text only: no markdown, no asterisks, no bullet points, no emoji, no code blocks, no explanations.",
	} {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\n")

	b.WriteString("OUTPUT FORMAT (exactly three lines, nothing before or after):\n")
	b.WriteString(LabelHeadline + " <headline>\n")
	b.WriteString(LabelAdText + " <ad text>\n")
	b.WriteString(LabelCTA + " <call to action>\n")

	return strings.TrimSpace(b.String())
}

// BuildImagePrompt builds the instruction for the image model from the
// product description and a visual theme.
func BuildImagePrompt(form creative.FormData, ref creative.ReferenceAnalysis) string {
	f := form.WithDefaults()

	var parts []string
	parts = append(parts, fmt.Sprintf("Professional advertising image for %s: %s.", f.ProductName, strings.TrimSuffix(f.ProductDescription, ".")))

	if len(ref.StyleKeywords) > 0 {
		parts = append(parts, "Visual theme: "+joinList(uniq(ref.StyleKeywords))+".")
	}
	if len(ref.DominantColors) > 0 {
		parts = append(parts, "Color palette: "+joinList(uniq(ref.DominantColors))+".")
	}
	if len(ref.CommonElements) > 0 {
		parts = append(parts, "Featuring "+joinList(uniq(ref.CommonElements))+".")
	}
	if c := strings.TrimSpace(ref.Composition); c != "" {
		parts = append(parts, "Composition: "+c+".")
	}

	parts = append(parts, fmt.Sprintf("Designed for %s as a %s, aspect ratio %s.", f.TargetAudience, f.AdFormat, AspectRatioFor(f.AdFormat)))
	if f.SpecialOffer != "" {
		parts = append(parts, fmt.Sprintf("Highlight the offer %q as a clear badge.", f.SpecialOffer))
	}
	parts = append(parts, "High resolution, studio-grade lighting, sharp focus on the product, no watermark.")
	parts = append(parts, LegibilityInstruction)

	return strings.Join(parts, " ")
}

func writeField(b *strings.Builder, name, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.WriteString("- " + name + ": " + value + "\n")
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
