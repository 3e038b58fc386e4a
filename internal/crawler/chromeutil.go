package crawler

import (
	"context"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"x-post-capture/internal/session"
)

// allocatorOptions builds the Chrome flags for a capture browser.
func (c *Crawler) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 2000),
		chromedp.UserAgent(userAgent),
	)
	if c.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.ChromePath))
	}
	if c.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(c.ProxyURL))
	}
	if c.Identity != nil && c.Identity.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(c.Identity.ProfileDir))
	}
	return opts
}

// newChildBrowserContext opens a new tab in the same browser. Navigating it
// leaves the parent tab untouched. The caller must call the cancel function.
func newChildBrowserContext(parent context.Context) (context.Context, context.CancelFunc) {
	return chromedp.NewContext(parent)
}

// cookieParams converts identity cookies to CDP cookie parameters.
func cookieParams(id *session.Identity) []*network.CookieParam {
	if id == nil {
		return nil
	}
	out := make([]*network.CookieParam, 0, len(id.Cookies))
	for _, ck := range id.Cookies {
		path := ck.Path
		if path == "" {
			path = "/"
		}
		out = append(out, &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
		})
	}
	return out
}

func extraHeaders(id *session.Identity) network.Headers {
	if id == nil || len(id.Headers) == 0 {
		return nil
	}
	h := make(network.Headers, len(id.Headers))
	for k, v := range id.Headers {
		h[k] = v
	}
	return h
}

// identityActions installs the identity's cookies and headers on a tab.
// Cookies live in the browser store; headers must be set per tab.
func identityActions(id *session.Identity, withCookies bool) chromedp.Tasks {
	tasks := chromedp.Tasks{network.Enable()}
	if params := cookieParams(id); withCookies && len(params) > 0 {
		tasks = append(tasks, network.SetCookies(params))
	}
	if h := extraHeaders(id); len(h) > 0 {
		tasks = append(tasks, network.SetExtraHTTPHeaders(h))
	}
	return tasks
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// snapshotHTML returns the outer HTML of the main region, or of the whole
// document when the page has no main element yet.
func snapshotHTML(ctx context.Context) (string, error) {
	const js = `(() => {
		const el = document.querySelector("main") || document.documentElement;
		return el ? el.outerHTML : "";
	})()`
	var html string
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &html)); err != nil {
		return "", err
	}
	return html, nil
}

func scrollBy(ctx context.Context, px int) error {
	return chromedp.Run(ctx, chromedp.Evaluate(`window.scrollBy(0, `+strconv.Itoa(px)+`)`, nil))
}

func scrollToTop(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.Evaluate(`window.scrollTo(0, 0)`, nil))
}
