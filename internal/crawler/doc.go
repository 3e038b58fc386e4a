// Package crawler drives a headless Chrome session against X: it loads a post
// URL, waits for the post to render, snapshots the virtualized reply timeline
// and opens linked articles in a separate tab.
//
// DOM parsing happens on HTML snapshots taken from the live page, so the
// parsing half of the package is testable without a browser.
package crawler

const (
	// LoginURL is the interactive login flow used in manual-login mode.
	LoginURL = "https://x.com/i/flow/login"

	mainSel        = "main"
	cellSel        = `div[data-testid="cellInnerDiv"]`
	articleSel     = "article"
	tweetTextSel   = `[data-testid="tweetText"]`
	userNameSel    = `div[data-testid="User-Name"]`
	statusLinkSel  = `a[href*="/status/"]`
	articleLinkSel = `a[href*="/article/"]`

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Long-form blocks rendered inline on a status page for article posts.
var longformSelectors = []string{
	"[class*='longform-header-one']",
	"[class*='longform-header-two']",
	"[class*='longform-unstyled']",
	"[class*='longform-blockquote']",
	"[class*='longform-unordered-list-item']",
	"[class*='longform-ordered-list-item']",
	"div[data-contents='true'] [data-block='true']",
}

var mediaSelectors = []struct {
	sel  string
	attr string
}{
	{`a[href*="/photo/"] img[src]`, "src"},
	{`div[data-testid="tweetPhoto"] img[src]`, "src"},
	{"video[poster]", "poster"},
}
