package crawler

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"x-post-capture/internal/document"
)

// getAttr returns the trimmed value of the named attribute on the first node
// of s, if present.
func getAttr(s *goquery.Selection, name string) (string, bool) {
	if s == nil || s.Length() == 0 {
		return "", false
	}
	v, ok := s.First().Attr(name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// collectTexts appends the cleaned text of every node matching selectors under
// root, skipping duplicates already recorded in seen. At most limit nodes are
// read per selector.
func collectTexts(root *goquery.Selection, selectors []string, seen map[string]bool, limit int) []string {
	var out []string
	for _, sel := range selectors {
		root.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i >= limit {
				return false
			}
			t := strings.TrimSpace(s.Text())
			if t == "" || seen[t] {
				return true
			}
			seen[t] = true
			out = append(out, t)
			return true
		})
	}
	return out
}

// collectURLs returns the unique, transformed values of attr across nodes
// matching sel. Values that transform to "" are dropped.
func collectURLs(root *goquery.Selection, sel, attr string, transform func(string) string, seen map[string]bool) []string {
	var out []string
	root.Find(sel).Each(func(_ int, s *goquery.Selection) {
		v, ok := getAttr(s, attr)
		if !ok {
			return
		}
		if v = transform(v); v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	})
	return out
}

func mediaURL(raw string) string {
	u := document.NormalizeMediaURL(raw)
	if !document.IsPostMedia(u) {
		return ""
	}
	return u
}

// hasAnyText reports whether s contains any non-whitespace character.
func hasAnyText(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
