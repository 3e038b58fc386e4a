package crawler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"x-post-capture/internal/document"
)

const (
	navRetryWait   = 2 * time.Second
	statePoll      = 250 * time.Millisecond
	targetAttempts = 8
	targetStep     = 1200
	targetWait     = 700 * time.Millisecond
)

// Chrome network errors worth one more navigation attempt.
var transientNetErrors = []string{
	"net::ERR_PROXY_CONNECTION_FAILED",
	"net::ERR_TUNNEL_CONNECTION_FAILED",
	"net::ERR_CONNECTION_RESET",
	"net::ERR_CONNECTION_CLOSED",
	"net::ERR_CONNECTION_REFUSED",
	"net::ERR_TIMED_OUT",
	"net::ERR_NETWORK_CHANGED",
	"net::ERR_INTERNET_DISCONNECTED",
	"net::ERR_NAME_NOT_RESOLVED",
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range transientNetErrors {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// navigateWithRetry runs nav, retrying exactly once after wait when the
// failure is a transient network error.
func navigateWithRetry(ctx context.Context, nav func(context.Context) error, wait time.Duration, log *zap.Logger) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(wait), 1), ctx)
	return backoff.RetryNotify(func() error {
		err := nav(ctx)
		if err == nil || isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, d time.Duration) {
		log.Warn("navigation failed, retrying", zap.Error(err), zap.Duration("after", d))
	})
}

type pageState string

const (
	stateLoading  pageState = "loading"
	stateReady    pageState = "ready"
	stateNotFound pageState = "not_found"
	stateDenied   pageState = "denied"
	stateLogin    pageState = "login"
)

// pageProbe is what the page reports about itself while loading.
type pageProbe struct {
	URL     string `json:"url"`
	Article bool   `json:"article"`
	Text    string `json:"text"`
}

const probeJS = `(() => {
	const root = document.querySelector("main") || document.body;
	return {
		url: location.href,
		article: !!document.querySelector("main article"),
		text: root ? (root.innerText || "").slice(0, 4000) : ""
	};
})()`

var (
	notFoundRe = regexp.MustCompile(`(?i)this page doesn.t exist|this post (is unavailable|was deleted)|post is unavailable|account suspended|this account doesn.t exist`)
	deniedRe   = regexp.MustCompile(`(?i)these posts are protected|you.re unable to view this post|this post is from an account that no longer exists|age-restricted`)
)

func classifyPage(p pageProbe) pageState {
	switch {
	case strings.Contains(p.URL, "/i/flow/login") || strings.Contains(p.URL, "x.com/login"):
		return stateLogin
	case p.Article:
		return stateReady
	case notFoundRe.MatchString(p.Text):
		return stateNotFound
	case deniedRe.MatchString(p.Text):
		return stateDenied
	default:
		return stateLoading
	}
}

func stateError(s pageState) error {
	switch s {
	case stateNotFound:
		return document.ErrPostNotFound
	case stateDenied:
		return document.ErrAccessDenied
	case stateLogin:
		return fmt.Errorf("%w: redirected to login", document.ErrAuthUnavailable)
	default:
		return nil
	}
}

// Load navigates to a status page, waits until the post renders and returns
// it. Host checks belong to the caller; only the status id is required here.
func (c *Crawler) Load(ctx context.Context, rawURL string) (document.Post, error) {
	if err := c.started(); err != nil {
		return document.Post{}, err
	}
	target := document.StatusID(rawURL)
	if target == "" {
		return document.Post{}, fmt.Errorf("%w: %q has no status id", document.ErrInvalidURL, rawURL)
	}
	op, cancel := c.opContext(ctx, c.Timeout)
	defer cancel()

	err := navigateWithRetry(op, func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Navigate(rawURL))
	}, navRetryWait, c.log)
	if err != nil {
		if ctx.Err() == nil && op.Err() == nil {
			return document.Post{}, fmt.Errorf("%w: %v", document.ErrNavigation, err)
		}
		return document.Post{}, c.opError(ctx, op, err)
	}

	state, err := c.waitForState(op)
	if err != nil {
		return document.Post{}, c.opError(ctx, op, fmt.Errorf("waiting for post: %w", err))
	}
	if err := stateError(state); err != nil {
		return document.Post{}, err
	}

	main, err := c.findTarget(op, target)
	if err != nil {
		return document.Post{}, c.opError(ctx, op, err)
	}
	c.mainID = main.StatusID
	main.IsMain = true
	c.log.Debug("post loaded", zap.String("status_id", main.StatusID), zap.String("author", main.AuthorHandle))
	return main, nil
}

// waitForState polls the page until it settles into a terminal state.
func (c *Crawler) waitForState(ctx context.Context) (pageState, error) {
	for {
		var p pageProbe
		if err := chromedp.Run(ctx, chromedp.Evaluate(probeJS, &p)); err != nil {
			if ctx.Err() != nil {
				return stateLoading, ctx.Err()
			}
		} else if s := classifyPage(p); s != stateLoading {
			return s, nil
		}
		if err := sleepCtx(ctx, statePoll); err != nil {
			return stateLoading, err
		}
	}
}

// findTarget locates the requested post in the virtualized timeline,
// scrolling down between attempts.
func (c *Crawler) findTarget(ctx context.Context, target string) (document.Post, error) {
	_ = scrollToTop(ctx)
	if err := sleepCtx(ctx, 500*time.Millisecond); err != nil {
		return document.Post{}, err
	}
	for i := 0; i < targetAttempts; i++ {
		html, err := snapshotHTML(ctx)
		if err != nil {
			return document.Post{}, err
		}
		main, _, err := parseTimeline(html, target)
		if err != nil {
			return document.Post{}, err
		}
		if main != nil {
			return main.Post, nil
		}
		if i == targetAttempts-1 {
			break
		}
		_ = scrollBy(ctx, targetStep)
		if err := sleepCtx(ctx, targetWait); err != nil {
			return document.Post{}, err
		}
	}
	return document.Post{}, fmt.Errorf("%w: status %s not rendered on page", document.ErrPostNotFound, target)
}

// ListReplies scrolls the conversation and returns the reply nodes in
// discovery order together with the number of snapshots taken.
func (c *Crawler) ListReplies(ctx context.Context) ([]document.Node, int, error) {
	if err := c.started(); err != nil {
		return nil, 0, err
	}
	if c.mainID == "" {
		return nil, 0, errors.New("list replies: no post loaded")
	}
	op, cancel := c.opContext(ctx, c.Timeout)
	defer cancel()

	stream := newReplyStream()
	passes := 0
	for i := 0; i <= c.Scrolls; i++ {
		html, err := snapshotHTML(op)
		if err != nil {
			return nil, passes, c.opError(ctx, op, err)
		}
		passes++
		_, nodes, err := parseTimeline(html, c.mainID)
		if err != nil {
			return nil, passes, err
		}
		stream.add(nodes...)
		if stream.count() >= c.MaxNodes || i == c.Scrolls {
			break
		}
		if err := scrollBy(op, scrollStep); err != nil {
			return nil, passes, c.opError(ctx, op, err)
		}
		if err := sleepCtx(op, c.ScrollWait); err != nil {
			return nil, passes, c.opError(ctx, op, err)
		}
	}

	nodes := stream.nodes
	if len(nodes) > c.MaxNodes {
		nodes = nodes[:c.MaxNodes]
	}
	c.log.Debug("replies collected", zap.Int("nodes", len(nodes)), zap.Int("passes", passes))
	return nodes, passes, nil
}
