// Package creative holds the data model shared by the ad generation pipeline.
package creative

import (
	"strings"
	"time"

	"adgen/internal/apperrors"
)

const (
	DefaultLanguage = "English"
	DefaultTone     = "professional"
	DefaultFormat   = "social media post"
)

// FormData is the snapshot of the ad form taken at submission time.
type FormData struct {
	ProductName        string `json:"productName"`
	ProductDescription string `json:"productDescription"`
	TargetAudience     string `json:"targetAudience"`
	BusinessType       string `json:"businessType"`
	SpecialOffer       string `json:"specialOffer,omitempty"`
	Language           string `json:"language,omitempty"`
	Tone               string `json:"tone,omitempty"`
	AdFormat           string `json:"adFormat,omitempty"`
}

// Validate reports the first required field that is empty.
func (f FormData) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"productName", f.ProductName},
		{"productDescription", f.ProductDescription},
		{"targetAudience", f.TargetAudience},
		{"businessType", f.BusinessType},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperrors.Validation(r.name)
		}
	}
	return nil
}

// WithDefaults returns a trimmed copy with the optional style fields filled.
func (f FormData) WithDefaults() FormData {
	out := FormData{
		ProductName:        strings.TrimSpace(f.ProductName),
		ProductDescription: strings.TrimSpace(f.ProductDescription),
		TargetAudience:     strings.TrimSpace(f.TargetAudience),
		BusinessType:       strings.TrimSpace(f.BusinessType),
		SpecialOffer:       strings.TrimSpace(f.SpecialOffer),
		Language:           strings.TrimSpace(f.Language),
		Tone:               strings.TrimSpace(f.Tone),
		AdFormat:           strings.TrimSpace(f.AdFormat),
	}
	if out.Language == "" {
		out.Language = DefaultLanguage
	}
	if out.Tone == "" {
		out.Tone = DefaultTone
	}
	if out.AdFormat == "" {
		out.AdFormat = DefaultFormat
	}
	return out
}

// GeneratedText is the normalised copy returned by the text model.
type GeneratedText struct {
	Headline string `json:"headline"`
	AdText   string `json:"adText"`
	CTA      string `json:"cta"`
}

// ReferenceAnalysis is advisory visual context for the image prompt.
type ReferenceAnalysis struct {
	DominantColors []string `json:"dominantColors"`
	CommonElements []string `json:"commonElements"`
	StyleKeywords  []string `json:"styleKeywords"`
	Composition    string   `json:"composition"`
}

// AdRecord is one history entry, created once per successful generation.
type AdRecord struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	FormData    FormData      `json:"formData"`
	TextContent GeneratedText `json:"textContent"`
	ImageURL    string        `json:"imageUrl"`
	Score       int           `json:"score"`
	Timestamp   time.Time     `json:"timestamp"`
}
