package prompt

import (
	"strings"

	"adgen/internal/creative"
)

// VisualPreset is a canned visual theme selected by keyword match.
type VisualPreset struct {
	Key         string
	Name        string
	Keywords    []string
	Colors      []string
	Elements    []string
	Style       []string
	Composition string
}

// Presets are matched in order; the first preset whose keyword appears in
// the product description or business type wins.
var visualPresets = []VisualPreset{
	{
		Key:         "mosquito_net",
		Name:        "Protective Home",
		Keywords:    []string{"mosquito", "net", "insect", "bug"},
		Colors:      []string{"blue", "white", "green"},
		Elements:    []string{"mosquito net canopy", "cozy bedroom", "family sleeping peacefully", "soft night light"},
		Style:       []string{"clean", "fresh", "protective", "calm"},
		Composition: "product draped over a bed in a calm bedroom, soft evening light",
	},
	{
		Key:         "food",
		Name:        "Appetizing Food",
		Keywords:    []string{"food", "restaurant", "cafe", "bakery", "pizza", "coffee", "snack", "kitchen", "meal"},
		Colors:      []string{"warm orange", "tomato red", "golden brown"},
		Elements:    []string{"fresh ingredients", "steam", "rustic wooden table", "garnish"},
		Style:       []string{"appetizing", "warm", "close-up", "rich"},
		Composition: "close-up hero shot of the dish at 45 degrees with shallow depth of field",
	},
	{
		Key:         "beauty",
		Name:        "Soft Beauty",
		Keywords:    []string{"beauty", "cosmetic", "skin", "cream", "makeup", "salon", "spa", "serum", "perfume"},
		Colors:      []string{"soft pink", "champagne gold", "pearl white"},
		Elements:    []string{"glass jar", "water droplets", "flower petals", "marble surface"},
		Style:       []string{"elegant", "luxurious", "glowing", "minimal"},
		Composition: "product centered on marble with soft diffused light and gentle reflections",
	},
	{
		Key:         "tech",
		Name:        "Future Tech",
		Keywords:    []string{"tech", "phone", "software", "app", "electronic", "gadget", "laptop", "saas", "digital"},
		Colors:      []string{"electric blue", "graphite black", "silver"},
		Elements:    []string{"device screen glow", "circuit patterns", "light streaks", "clean desk"},
		Style:       []string{"futuristic", "sleek", "innovative", "high-contrast"},
		Composition: "device angled three-quarters on a dark gradient with rim lighting",
	},
	{
		Key:         "fashion",
		Name:        "Editorial Fashion",
		Keywords:    []string{"fashion", "clothing", "apparel", "shoe", "dress", "boutique", "jewelry", "bag"},
		Colors:      []string{"black", "beige", "dusty rose"},
		Elements:    []string{"model silhouette", "fabric texture", "runway light", "studio backdrop"},
		Style:       []string{"editorial", "chic", "bold", "trendy"},
		Composition: "full-length editorial framing with strong negative space",
	},
	{
		Key:         "fitness",
		Name:        "Sports Energy",
		Keywords:    []string{"fitness", "gym", "sport", "workout", "protein", "yoga", "running"},
		Colors:      []string{"energetic red", "black", "neon green"},
		Elements:    []string{"athlete in motion", "sweat droplets", "gym equipment", "dynamic light trails"},
		Style:       []string{"energetic", "powerful", "dynamic", "motivational"},
		Composition: "low-angle action shot with motion blur behind the subject",
	},
	{
		Key:         "home",
		Name:        "Warm Interior",
		Keywords:    []string{"home", "furniture", "decor", "interior", "sofa", "lamp", "garden"},
		Colors:      []string{"warm beige", "walnut brown", "off-white"},
		Elements:    []string{"sunlit living room", "indoor plants", "textured cushions", "wooden floor"},
		Style:       []string{"cozy", "inviting", "natural", "lifestyle"},
		Composition: "wide lifestyle shot of a styled room with the product as focal point",
	},
	{
		Key:         "education",
		Name:        "Bright Learning",
		Keywords:    []string{"education", "course", "school", "tutor", "training", "book", "learning"},
		Colors:      []string{"sky blue", "sunny yellow", "white"},
		Elements:    []string{"open notebook", "students collaborating", "laptop", "lightbulb motif"},
		Style:       []string{"friendly", "optimistic", "clear", "approachable"},
		Composition: "bright desk scene from above with clear space for a headline",
	},
	{
		Key:         "travel",
		Name:        "Wanderlust",
		Keywords:    []string{"travel", "hotel", "tour", "resort", "flight", "vacation", "holiday"},
		Colors:      []string{"turquoise", "sand", "sunset orange"},
		Elements:    []string{"scenic landscape", "suitcase", "beach horizon", "happy travellers"},
		Style:       []string{"adventurous", "relaxing", "vibrant", "aspirational"},
		Composition: "wide scenic vista with travellers in the lower third",
	},
}

var genericPreset = VisualPreset{
	Key:         "generic",
	Name:        "Commercial",
	Colors:      []string{"blue", "white", "gray"},
	Elements:    []string{"product showcase", "clean background", "brand-colored accents"},
	Style:       []string{"professional", "modern", "commercial", "clean"},
	Composition: "centered product on a clean background with balanced negative space",
}

// Presets lists the catalog in match order.
func Presets() []VisualPreset {
	out := make([]VisualPreset, 0, len(visualPresets))
	for _, p := range visualPresets {
		out = append(out, clonePreset(p))
	}
	return out
}

// MatchPreset returns the preset selected for form.
func MatchPreset(form creative.FormData) VisualPreset {
	haystack := strings.ToLower(form.ProductDescription + " " + form.BusinessType)
	words := tokenize(haystack)
	for _, p := range visualPresets {
		for _, kw := range p.Keywords {
			if containsWord(words, kw) {
				return clonePreset(p)
			}
		}
	}
	return clonePreset(genericPreset)
}

// Analyze derives the heuristic ReferenceAnalysis for form. It is a pure
// lookup and never fails.
func Analyze(form creative.FormData) creative.ReferenceAnalysis {
	p := MatchPreset(form)
	return creative.ReferenceAnalysis{
		DominantColors: p.Colors,
		CommonElements: p.Elements,
		StyleKeywords:  p.Style,
		Composition:    p.Composition,
	}
}

// AspectRatioFor maps a free-form ad format to an image aspect ratio.
func AspectRatioFor(adFormat string) string {
	f := strings.ToLower(adFormat)
	switch {
	case strings.Contains(f, "story"), strings.Contains(f, "reel"), strings.Contains(f, "tiktok"), strings.Contains(f, "short"):
		return "9:16"
	case strings.Contains(f, "banner"), strings.Contains(f, "youtube"), strings.Contains(f, "cover"):
		return "16:9"
	case strings.Contains(f, "poster"), strings.Contains(f, "flyer"), strings.Contains(f, "print"):
		return "3:4"
	default:
		return "1:1"
	}
}

// tokenize splits on anything that is not a letter or digit, so "net"
// matches "mosquito-net" but not "internet".
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
}

func containsWord(words []string, kw string) bool {
	for _, w := range words {
		if w == kw || strings.TrimSuffix(w, "s") == kw {
			return true
		}
	}
	return false
}

func clonePreset(p VisualPreset) VisualPreset {
	p.Keywords = append([]string(nil), p.Keywords...)
	p.Colors = append([]string(nil), p.Colors...)
	p.Elements = append([]string(nil), p.Elements...)
	p.Style = append([]string(nil), p.Style...)
	return p
}
