// Package article finds the long-form article linked from a capture and
// tries to read its body. Every outcome short of cancellation is returned as
// data on the Article, never as an error.
package article

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"x-post-capture/internal/document"
	"x-post-capture/internal/logger"
)

// recoverMinText is how many characters of long-form text the status page
// must already carry before it is reused for a gated article.
const recoverMinText = 120

// Detail values recorded on the Article.
const (
	DetailLoginRedirect = "login_redirect"
	DetailLoginWall     = "login_wall"
	DetailAccessLimited = "access_limited"
	DetailNoText        = "no_text"
	DetailTimeout       = "timeout"
	DetailNavigation    = "navigation"
	DetailParse         = "parse"
	DetailRecovered     = "recovered_from_status_page"
)

var articleLinkRe = regexp.MustCompile(`(?:https?://(?:www\.)?(?:x|twitter)\.com)?/i/article/\d+`)

// Fetcher opens an article URL in the live session.
type Fetcher interface {
	FetchArticle(ctx context.Context, url string) (document.ArticlePage, error)
}

// LoginWaiter blocks until an operator has logged in.
type LoginWaiter interface {
	Await(ctx context.Context) error
}

// Extractor resolves at most one article per capture.
type Extractor struct {
	fetcher Fetcher
	waiter  LoginWaiter
	log     *zap.Logger
}

// NewExtractor builds an Extractor. waiter is nil unless manual-login mode
// is enabled.
func NewExtractor(f Fetcher, waiter LoginWaiter, log *zap.Logger) *Extractor {
	return &Extractor{fetcher: f, waiter: waiter, log: log}
}

// FindLink returns the first article link in the main post, then the thread.
// Links collected from the DOM are preferred over links spelled out in text.
func FindLink(posts ...document.Post) string {
	for _, p := range posts {
		for _, u := range p.ArticleURLs {
			if n := document.NormalizeArticleURL(u); n != "" {
				return n
			}
		}
		if m := articleLinkRe.FindString(p.Text); m != "" {
			return document.NormalizeArticleURL(m)
		}
	}
	return ""
}

// Extract returns an empty slice when no article is linked, or a single
// Article otherwise. The only error returned is ctx's.
func (e *Extractor) Extract(ctx context.Context, main document.Post, thread []document.Post) ([]document.Article, error) {
	link := FindLink(append([]document.Post{main}, thread...)...)
	if link == "" {
		return []document.Article{}, nil
	}

	a, err := e.fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	if a.Status == document.ArticleGated && e.waiter != nil {
		if err := e.waiter.Await(ctx); err != nil {
			return nil, err
		}
		if a, err = e.fetch(ctx, link); err != nil {
			return nil, err
		}
	}
	if a.Status == document.ArticleGated && a.Text == "" &&
		len(main.ArticleURLs) > 0 && utf8.RuneCountInString(main.Text) >= recoverMinText {
		a.Text = main.Text
		a.Detail = DetailRecovered
	}

	logger.LogArticle(e.log, link, string(a.Status), a.Detail)
	return []document.Article{a}, nil
}

func (e *Extractor) fetch(ctx context.Context, link string) (document.Article, error) {
	page, err := e.fetcher.FetchArticle(ctx, link)
	if err != nil {
		if ctx.Err() != nil {
			return document.Article{}, ctx.Err()
		}
		a := document.Article{Status: document.ArticleError, SourceURL: link, Detail: DetailNavigation}
		if errors.Is(err, document.ErrLoadTimeout) || errors.Is(err, context.DeadlineExceeded) {
			a.Detail = DetailTimeout
		}
		return a, nil
	}
	return Classify(link, page), nil
}

// Classify turns a loaded article page into an Article.
func Classify(link string, page document.ArticlePage) document.Article {
	a := document.Article{SourceURL: link, FinalURL: page.FinalURL, Title: document.CleanText(page.Title)}

	doc, err := parsePage(page.HTML)
	if err != nil {
		a.Status, a.Detail = document.ArticleError, DetailParse
		return a
	}
	if t := doc.title(); t != "" {
		a.Title = t
	}

	text := doc.text()
	switch {
	case utf8.RuneCountInString(text) >= minArticleText:
		a.Status, a.Text = document.ArticleExtracted, text
	case strings.Contains(page.FinalURL, "/login") || strings.Contains(page.FinalURL, "/i/flow/"):
		a.Status, a.Detail = document.ArticleGated, DetailLoginRedirect
	case doc.loginWall():
		a.Status, a.Detail = document.ArticleGated, DetailLoginWall
	case strings.EqualFold(a.Title, "x"):
		a.Status, a.Detail = document.ArticleGated, DetailAccessLimited
	default:
		a.Status, a.Detail = document.ArticleError, DetailNoText
	}
	return a
}
