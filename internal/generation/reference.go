package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"adgen/internal/apperrors"
	"adgen/internal/creative"
)

var colorWords = []string{
	"red", "orange", "yellow", "green", "blue", "purple", "pink", "brown",
	"black", "white", "gray", "grey", "gold", "silver", "beige", "teal",
	"turquoise", "navy", "cream", "violet",
}

var stopWords = map[string]struct{}{
	"with": {}, "from": {}, "that": {}, "this": {}, "your": {}, "free": {},
	"image": {}, "images": {}, "photo": {}, "photos": {}, "stock": {}, "picture": {},
	"pictures": {}, "download": {}, "vector": {}, "royalty": {}, "background": {},
	"advertisement": {}, "advert": {}, "banner": {}, "poster": {}, "more": {},
	"search": {}, "results": {}, "view": {}, "size": {}, "high": {}, "quality": {},
	"best": {}, "ideas": {}, "design": {}, "template": {}, "templates": {},
}

type SearchOptions struct {
	ProxyURL   string
	SearchURL  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// ReferenceSearcher scrapes an image search results page through a proxy
// and derives colours and recurring subjects from captions.
type ReferenceSearcher struct {
	proxyURL   string
	searchURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewReferenceSearcher(opts SearchOptions) *ReferenceSearcher {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceSearcher{
		proxyURL:   strings.TrimSpace(opts.ProxyURL),
		searchURL:  strings.TrimSpace(opts.SearchURL),
		httpClient: httpClient,
		logger:     logger.Named("reference"),
	}
}

// Query is the search phrase used for form.
func Query(form creative.FormData) string {
	f := form.WithDefaults()
	parts := []string{f.ProductName, f.BusinessType, "advertisement"}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func (s *ReferenceSearcher) Search(ctx context.Context, form creative.FormData) (creative.ReferenceAnalysis, error) {
	if s.proxyURL == "" || s.searchURL == "" {
		return creative.ReferenceAnalysis{}, errors.New("reference search is not configured")
	}

	target := s.searchURL + "?q=" + url.QueryEscape(Query(form))
	endpoint := s.proxyURL + "?url=" + url.QueryEscape(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return creative.ReferenceAnalysis{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return creative.ReferenceAnalysis{}, apperrors.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return creative.ReferenceAnalysis{}, apperrors.API(resp.StatusCode, "")
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return creative.ReferenceAnalysis{}, apperrors.MalformedResponse(fmt.Sprintf("parse search page: %v", err))
	}

	ref := AnalyzeCaptions(Captions(doc))
	if len(ref.DominantColors) == 0 && len(ref.CommonElements) == 0 {
		return creative.ReferenceAnalysis{}, errors.New("search page has no usable captions")
	}
	s.logger.Debug("reference search",
		zap.Strings("colors", ref.DominantColors),
		zap.Strings("elements", ref.CommonElements),
	)
	return ref, nil
}

// Captions collects descriptive text from image alts and link titles.
func Captions(doc *goquery.Document) []string {
	var out []string
	add := func(v string) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		if v, ok := sel.Attr("alt"); ok {
			add(v)
		}
		if v, ok := sel.Attr("title"); ok {
			add(v)
		}
	})
	doc.Find("a[title]").Each(func(_ int, sel *goquery.Selection) {
		add(sel.AttrOr("title", ""))
	})
	return out
}

// AnalyzeCaptions picks colour words in order of frequency and the five
// most frequent other words that appear at least twice.
func AnalyzeCaptions(captions []string) creative.ReferenceAnalysis {
	counts := map[string]int{}
	first := map[string]int{}
	pos := 0
	for _, c := range captions {
		for _, w := range tokenizeCaption(c) {
			if _, ok := first[w]; !ok {
				first[w] = pos
			}
			counts[w]++
			pos++
		}
	}

	isColor := make(map[string]bool, len(colorWords))
	for _, c := range colorWords {
		isColor[c] = true
	}

	var colors, nouns []string
	for w, n := range counts {
		switch {
		case isColor[w]:
			colors = append(colors, w)
		case n >= 2 && len(w) >= 4:
			if _, stop := stopWords[w]; !stop {
				nouns = append(nouns, w)
			}
		}
	}

	byFreq := func(list []string) {
		sort.Slice(list, func(i, j int) bool {
			if counts[list[i]] != counts[list[j]] {
				return counts[list[i]] > counts[list[j]]
			}
			return first[list[i]] < first[list[j]]
		})
	}
	byFreq(colors)
	byFreq(nouns)

	if len(colors) > 5 {
		colors = colors[:5]
	}
	if len(nouns) > 5 {
		nouns = nouns[:5]
	}
	return creative.ReferenceAnalysis{DominantColors: colors, CommonElements: nouns}
}

func tokenizeCaption(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r > 127)
	})
}
