package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgen/internal/creative"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name string
		text creative.GeneratedText
		form creative.FormData
		want int
	}{
		{"bare", creative.GeneratedText{Headline: "Hi"}, creative.FormData{}, 70},
		{"cta only", creative.GeneratedText{Headline: "Hi", CTA: "Buy"}, creative.FormData{}, 80},
		{
			"everything",
			creative.GeneratedText{
				Headline: "Sleep soundly all night long",
				AdText:   strings.Repeat("a", 51),
				CTA:      "Order now",
			},
			creative.FormData{SpecialOffer: "20% off"},
			100,
		},
		{"headline too long", creative.GeneratedText{Headline: "one two three four five six seven eight nine ten eleven"}, creative.FormData{}, 70},
		{"adText exactly 50", creative.GeneratedText{AdText: strings.Repeat("é", 50)}, creative.FormData{}, 70},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.text, tc.form))
		})
	}
}

func TestScoreIsBounded(t *testing.T) {
	headlines := []string{"", "a", "a b c d e", "a b c d e f g h i j", "a b c d e f g h i j k"}
	adTexts := []string{"", "short", strings.Repeat("x", 51), strings.Repeat("y", 500)}
	ctas := []string{"", " ", "Go"}
	offers := []string{"", "free"}
	for _, h := range headlines {
		for _, a := range adTexts {
			for _, c := range ctas {
				for _, o := range offers {
					s := Score(creative.GeneratedText{Headline: h, AdText: a, CTA: c}, creative.FormData{SpecialOffer: o})
					assert.GreaterOrEqual(t, s, 70)
					assert.LessOrEqual(t, s, 100)
				}
			}
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Sleep well. No bites!! Really?  Order today")

	require.Len(t, got, 4)
	assert.Equal(t, Sentence{Text: "Sleep well.", Style: StyleEmphasis}, got[0])
	assert.Equal(t, Sentence{Text: "No bites!!", Style: StylePlain}, got[1])
	assert.Equal(t, Sentence{Text: "Really?", Style: StylePlain}, got[2])
	assert.Equal(t, Sentence{Text: "Order today", Style: StyleCTA}, got[3])
}

func TestSplitSentencesTwoSentencesHasNoCTA(t *testing.T) {
	got := SplitSentences("First one. Second one.")

	require.Len(t, got, 2)
	assert.Equal(t, StyleEmphasis, got[0].Style)
	assert.Equal(t, StylePlain, got[1].Style)
}

func TestSplitSentencesPreservesText(t *testing.T) {
	inputs := []string{"", "...", "a.b.c", "No delimiter at all", "Wow!?! Yes. ok"}
	for _, in := range inputs {
		var joined strings.Builder
		for _, s := range SplitSentences(in) {
			joined.WriteString(s.Text)
		}
		assert.Equal(t, strings.Join(strings.Fields(in), ""), strings.Join(strings.Fields(joined.String()), ""), "input %q", in)
	}
}

func TestRenderBuildsDocument(t *testing.T) {
	text := creative.GeneratedText{
		Headline: "Sleep soundly all night long",
		AdText:   "Keep every mosquito out. Breathable mesh. Order yours today!",
		CTA:      "Shop <b>Now</b>",
	}
	form := creative.FormData{ProductName: "SafeSleep", SpecialOffer: "2 for 1"}

	doc := Render(text, "https://img.example/a.png", form)

	assert.Equal(t, "Shop Now", doc.CTA)
	assert.Equal(t, 100, doc.Score)
	require.Len(t, doc.Sentences, 3)
	assert.Equal(t, StyleCTA, doc.Sentences[2].Style)
	assert.Contains(t, doc.HTML, `src="https://img.example/a.png"`)
	assert.Contains(t, doc.HTML, `<span class="ad-sentence ad-emphasis">Keep every mosquito out.</span>`)
	assert.NotContains(t, doc.HTML, "<b>")
}

func TestRenderEscapesAndAllowsDataURL(t *testing.T) {
	text := creative.GeneratedText{Headline: "Tom & Jerry's <script>alert(1)</script>", AdText: "Fun for all.", CTA: "Watch"}

	doc := Render(text, "data:image/png;base64,AAAA", creative.FormData{})

	assert.Contains(t, doc.HTML, `src="data:image/png;base64,AAAA"`)
	assert.NotContains(t, doc.HTML, "<script>")
	assert.Contains(t, doc.HTML, "Tom &amp; Jerry&#39;s")
}

func TestRenderIsDeterministic(t *testing.T) {
	text := creative.GeneratedText{Headline: "A headline here", AdText: "One. Two. Three.", CTA: "Go now"}
	form := creative.FormData{ProductName: "X"}

	assert.Equal(t, Render(text, "https://x/y.png", form), Render(text, "https://x/y.png", form))
}
