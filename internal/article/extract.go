package article

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"x-post-capture/internal/document"
)

const (
	// minArticleText is the shortest text, in characters, accepted as an
	// extracted article.
	minArticleText = 20
	// maxBlocksPerSelector caps how many nodes one selector contributes.
	maxBlocksPerSelector = 500
	// maxJSONLDScripts caps how many ld+json blocks are inspected.
	maxJSONLDScripts = 30
)

// Long-form article blocks, in reading order of preference.
var longformSelectors = []string{
	"div[class*='longform-header-one']",
	"div[class*='longform-header-two']",
	"div[class*='longform-unstyled']",
	"div[class*='longform-blockquote']",
	"div[class*='longform-unordered-list-item']",
	"div[class*='longform-ordered-list-item']",
	".public-DraftStyleDefault-block",
	"div[data-contents='true'] div[data-block='true']",
}

// Generic containers tried after the long-form blocks.
var genericSelectors = []string{
	"article p",
	"article div[dir='auto']",
	"main article div[dir='auto']",
	"main p",
}

// Login chrome that shows up as text blocks on gated pages.
var loginNoise = map[string]bool{
	"Log in":        true,
	"Sign up":       true,
	"Sign in":       true,
	"Sign up for X": true,
}

// JSON-LD keys holding article text, in the order they are read.
var jsonLDTextKeys = []string{"articleBody", "description", "text"}

// pageDoc is a parsed article page.
type pageDoc struct {
	doc *goquery.Document
	raw string
}

func parsePage(html string) (*pageDoc, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &pageDoc{doc: doc, raw: html}, nil
}

// text returns the best article body found on the page, or "".
func (p *pageDoc) text() string {
	if t := p.blockText(append(append([]string{}, longformSelectors...), genericSelectors...)); t != "" {
		return t
	}
	if t := p.jsonLDText(); t != "" {
		return t
	}
	desc := document.CleanText(p.doc.Find(`meta[property="og:description"]`).First().AttrOr("content", ""))
	if utf8.RuneCountInString(desc) >= minArticleText {
		return desc
	}
	return ""
}

// title prefers the first h1 over the document title.
func (p *pageDoc) title() string {
	if h1 := document.CleanText(p.doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return document.CleanText(p.doc.Find("title").First().Text())
}

// loginWall reports whether the page is asking for a login.
func (p *pageDoc) loginWall() bool {
	if p.doc.Find(`a[href="/login"]`).Length() > 0 || p.doc.Find(`a[href*="/signup"]`).Length() > 0 {
		return true
	}
	return strings.Contains(strings.ToLower(p.raw), "log in")
}

func (p *pageDoc) blockText(selectors []string) string {
	var parts []string
	seen := make(map[string]bool)
	for _, sel := range selectors {
		p.doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= maxBlocksPerSelector {
				return false
			}
			t := document.CleanText(s.Text())
			if utf8.RuneCountInString(t) < 2 || loginNoise[t] || seen[t] {
				return true
			}
			seen[t] = true
			parts = append(parts, t)
			return true
		})
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func (p *pageDoc) jsonLDText() string {
	var parts []string
	seen := make(map[string]bool)
	p.doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= maxJSONLDScripts {
			return false
		}
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return true
		}
		stack := []any{v}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch x := cur.(type) {
			case map[string]any:
				for _, k := range jsonLDTextKeys {
					str, ok := x[k].(string)
					if !ok {
						continue
					}
					t := document.CleanText(str)
					if utf8.RuneCountInString(t) >= minArticleText && !seen[t] {
						seen[t] = true
						parts = append(parts, t)
					}
				}
				stack = append(stack, nestedValues(x)...)
			case []any:
				for i := len(x) - 1; i >= 0; i-- {
					stack = append(stack, x[i])
				}
			}
		}
		return true
	})
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// nestedValues returns the object and array values of m ordered so that
// popping them off a stack visits them in key order.
func nestedValues(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		switch v.(type) {
		case map[string]any, []any:
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
