package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"x-post-capture/internal/document"
)

// articleSettle is how long an article tab may take to render its body after
// the document is ready.
const articleSettle = 2500 * time.Millisecond

const articleReadyJS = `!!document.querySelector("[class*='longform-'], [data-testid='twitterArticleRichTextView'], article")`

// FetchArticle opens url in a new tab of the same browser and returns the
// rendered page. The capture tab keeps its state.
func (c *Crawler) FetchArticle(ctx context.Context, url string) (document.ArticlePage, error) {
	if err := c.started(); err != nil {
		return document.ArticlePage{}, err
	}
	page, err := fetchPageWithNewContext(c.browserCtx, ctx, url, c.Timeout, c.identityTasks())
	if err != nil {
		return document.ArticlePage{}, err
	}
	return page, nil
}

func (c *Crawler) identityTasks() chromedp.Tasks {
	return identityActions(c.Identity, false)
}

// fetchPageWithNewContext opens url in a child tab of parent, waits for the
// body to be ready and for article content to settle, and returns the final
// URL, title and full HTML. caller bounds the wait alongside timeout.
func fetchPageWithNewContext(parent, caller context.Context, url string, timeout time.Duration, setup chromedp.Tasks) (document.ArticlePage, error) {
	child, cancelChild := newChildBrowserContext(parent)
	defer cancelChild()
	// Open the tab without a deadline so the timeout does not close it early.
	if err := chromedp.Run(child); err != nil {
		return document.ArticlePage{}, fmt.Errorf("open tab: %w", err)
	}

	op, cancel := context.WithCancel(child)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		op, cancelTimeout = context.WithTimeout(op, timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(caller, cancel)
	defer stop()

	fail := func(err error) (document.ArticlePage, error) {
		if caller.Err() != nil {
			return document.ArticlePage{}, caller.Err()
		}
		if op.Err() != nil {
			return document.ArticlePage{}, fmt.Errorf("%w: %s: %v", document.ErrLoadTimeout, url, err)
		}
		return document.ArticlePage{}, fmt.Errorf("%w: %s: %v", document.ErrNavigation, url, err)
	}

	if len(setup) > 0 {
		if err := chromedp.Run(op, setup); err != nil {
			return fail(err)
		}
	}
	if err := chromedp.Run(op, chromedp.Navigate(url)); err != nil {
		return fail(err)
	}
	if err := chromedp.Run(op, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fail(err)
	}

	deadline := time.Now().Add(articleSettle)
	for time.Now().Before(deadline) {
		var ready bool
		if err := chromedp.Run(op, chromedp.Evaluate(articleReadyJS, &ready)); err == nil && ready {
			break
		}
		if err := sleepCtx(op, statePoll); err != nil {
			return fail(err)
		}
	}

	var page document.ArticlePage
	if err := chromedp.Run(op,
		chromedp.Location(&page.FinalURL),
		chromedp.Title(&page.Title),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	); err != nil {
		return fail(err)
	}
	return page, nil
}
