package article

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-post-capture/internal/document"
)

const articleURL = "https://x.com/i/article/555"

const longformHTML = `<html><head><title>Ignored</title></head><body><main>
<h1>How we ship</h1>
<div class="longform-header-one">Shipping weekly without drama</div>
<div class="longform-unstyled">First, keep the main branch releasable at all times.</div>
<div class="longform-unstyled">First, keep the main branch releasable at all times.</div>
<div class="longform-unstyled">Log in</div>
</main></body></html>`

const gatedHTML = `<html><head><title>X</title></head><body><main>
<a href="/login">Log in</a><a href="/i/flow/signup">Sign up</a>
</main></body></html>`

type fakeFetcher struct {
	pages []document.ArticlePage
	errs  []error
	calls int
	urls  []string
}

func (f *fakeFetcher) FetchArticle(ctx context.Context, url string) (document.ArticlePage, error) {
	i := f.calls
	f.calls++
	f.urls = append(f.urls, url)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return document.ArticlePage{}, err
	}
	if i >= len(f.pages) {
		i = len(f.pages) - 1
	}
	return f.pages[i], nil
}

type fakeWaiter struct {
	calls int
	err   error
}

func (w *fakeWaiter) Await(ctx context.Context) error {
	w.calls++
	return w.err
}

func mainWithLink(text string) document.Post {
	return document.Post{StatusID: "1", AuthorHandle: "alice", Text: text, ArticleURLs: []string{"/i/article/555?s=20"}}
}

func TestExtract_NoLinkIsEmptyNotError(t *testing.T) {
	f := &fakeFetcher{}
	got, err := NewExtractor(f, nil, nil).Extract(context.Background(), document.Post{StatusID: "1", Text: "plain"}, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, f.calls)
}

func TestExtract_Extracted(t *testing.T) {
	f := &fakeFetcher{pages: []document.ArticlePage{{FinalURL: articleURL, Title: "t", HTML: longformHTML}}}
	got, err := NewExtractor(f, nil, nil).Extract(context.Background(), mainWithLink("see article"), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, document.ArticleExtracted, a.Status)
	assert.Equal(t, articleURL, a.SourceURL)
	assert.Equal(t, "How we ship", a.Title)
	assert.Equal(t, "Shipping weekly without drama\nFirst, keep the main branch releasable at all times.", a.Text)
	assert.Equal(t, []string{articleURL}, f.urls)
}

func TestExtract_GatedWithoutManualLogin(t *testing.T) {
	f := &fakeFetcher{pages: []document.ArticlePage{{FinalURL: articleURL, Title: "X", HTML: gatedHTML}}}
	got, err := NewExtractor(f, nil, nil).Extract(context.Background(), mainWithLink("short"), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, document.ArticleGated, got[0].Status)
	assert.Equal(t, DetailLoginWall, got[0].Detail)
	assert.Empty(t, got[0].Text)
	assert.Equal(t, 1, f.calls)
}

func TestExtract_ManualLoginRetriesOnce(t *testing.T) {
	f := &fakeFetcher{pages: []document.ArticlePage{
		{FinalURL: "https://x.com/i/flow/login", HTML: "<html></html>"},
		{FinalURL: articleURL, HTML: longformHTML},
	}}
	w := &fakeWaiter{}
	got, err := NewExtractor(f, w, nil).Extract(context.Background(), mainWithLink("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, document.ArticleExtracted, got[0].Status)
}

func TestExtract_ManualLoginStillGatedRetriesOnlyOnce(t *testing.T) {
	f := &fakeFetcher{pages: []document.ArticlePage{{FinalURL: "https://x.com/login", HTML: "<html></html>"}}}
	w := &fakeWaiter{}
	got, err := NewExtractor(f, w, nil).Extract(context.Background(), mainWithLink("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, document.ArticleGated, got[0].Status)
	assert.Equal(t, DetailLoginRedirect, got[0].Detail)
}

func TestExtract_WaiterCancellationAborts(t *testing.T) {
	f := &fakeFetcher{pages: []document.ArticlePage{{HTML: gatedHTML}}}
	w := &fakeWaiter{err: context.Canceled}
	_, err := NewExtractor(f, w, nil).Extract(context.Background(), mainWithLink("x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_RecoversTextFromStatusPage(t *testing.T) {
	long := strings.Repeat("longform body ", 10)
	f := &fakeFetcher{pages: []document.ArticlePage{{HTML: gatedHTML}}}
	got, err := NewExtractor(f, nil, nil).Extract(context.Background(), mainWithLink(long), nil)
	require.NoError(t, err)
	assert.Equal(t, document.ArticleGated, got[0].Status)
	assert.Equal(t, DetailRecovered, got[0].Detail)
	assert.Equal(t, long, got[0].Text)
}

func TestExtract_RecoveryThresholdCountsCharacters(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		recover bool
	}{
		{"cjk below threshold", strings.Repeat("中", 50), false},
		{"cjk at threshold", strings.Repeat("中", recoverMinText), true},
		{"ascii below threshold", strings.Repeat("a", recoverMinText-1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeFetcher{pages: []document.ArticlePage{{HTML: gatedHTML}}}
			got, err := NewExtractor(f, nil, nil).Extract(context.Background(), mainWithLink(tc.text), nil)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, document.ArticleGated, got[0].Status)
			if tc.recover {
				assert.Equal(t, DetailRecovered, got[0].Detail)
				assert.Equal(t, tc.text, got[0].Text)
			} else {
				assert.Equal(t, DetailLoginWall, got[0].Detail)
				assert.Empty(t, got[0].Text)
			}
		})
	}
}

func TestExtract_FetchErrors(t *testing.T) {
	cases := []struct {
		err    error
		detail string
	}{
		{fmt.Errorf("article: %w", document.ErrLoadTimeout), DetailTimeout},
		{errors.New("net::ERR_ABORTED"), DetailNavigation},
	}
	for _, c := range cases {
		f := &fakeFetcher{errs: []error{c.err}}
		got, err := NewExtractor(f, nil, nil).Extract(context.Background(), mainWithLink("x"), nil)
		require.NoError(t, err)
		assert.Equal(t, document.ArticleError, got[0].Status)
		assert.Equal(t, c.detail, got[0].Detail)
	}
}

func TestExtract_CancelledContextIsReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{errs: []error{context.Canceled}}
	_, err := NewExtractor(f, nil, nil).Extract(ctx, mainWithLink("x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindLink(t *testing.T) {
	thread := []document.Post{{Text: "part 2 https://x.com/i/article/777 more"}}
	assert.Equal(t, "https://x.com/i/article/777", FindLink(append([]document.Post{{Text: "no link"}}, thread...)...))
	assert.Equal(t, "https://x.com/i/article/555", FindLink(mainWithLink("")))
	assert.Equal(t, "", FindLink(document.Post{Text: "https://example.com/article/1"}))
}

func TestClassify_Fallbacks(t *testing.T) {
	jsonLD := `<html><body><script type="application/ld+json">{"@type":"Article","articleBody":"A body that is long enough to count."}</script></body></html>`
	a := Classify(articleURL, document.ArticlePage{HTML: jsonLD})
	assert.Equal(t, document.ArticleExtracted, a.Status)
	assert.Equal(t, "A body that is long enough to count.", a.Text)

	og := `<html><head><meta property="og:description" content="Description long enough to be the body."></head><body></body></html>`
	a = Classify(articleURL, document.ArticlePage{HTML: og})
	assert.Equal(t, document.ArticleExtracted, a.Status)
	assert.Equal(t, "Description long enough to be the body.", a.Text)

	limited := `<html><head><title>X</title></head><body><div>ok</div></body></html>`
	a = Classify(articleURL, document.ArticlePage{Title: "X", HTML: limited})
	assert.Equal(t, document.ArticleGated, a.Status)
	assert.Equal(t, DetailAccessLimited, a.Detail)

	empty := `<html><head><title>Some page</title></head><body><div>hi</div></body></html>`
	a = Classify(articleURL, document.ArticlePage{HTML: empty})
	assert.Equal(t, document.ArticleError, a.Status)
	assert.Equal(t, DetailNoText, a.Detail)
}

func TestClassify_MultibyteText(t *testing.T) {
	cases := []struct {
		name   string
		html   string
		status document.ArticleStatus
		detail string
	}{
		{
			name:   "short cjk login prompt is gated",
			html:   `<html><body><article><p>登录后即可查看全文内容</p></article><a href="/login">登录</a></body></html>`,
			status: document.ArticleGated,
			detail: DetailLoginWall,
		},
		{
			name:   "cjk body of twenty characters is extracted",
			html:   `<html><body><article><p>` + strings.Repeat("文", minArticleText) + `</p></article></body></html>`,
			status: document.ArticleExtracted,
		},
		{
			name:   "short cjk og description is not a body",
			html:   `<html><head><meta property="og:description" content="这是一个很短的描述"></head><body></body></html>`,
			status: document.ArticleError,
			detail: DetailNoText,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Classify(articleURL, document.ArticlePage{HTML: tc.html})
			assert.Equal(t, tc.status, a.Status)
			assert.Equal(t, tc.detail, a.Detail)
		})
	}
}

func TestClassify_JSONLDTextIsStable(t *testing.T) {
	page := document.ArticlePage{HTML: `<html><body><script type="application/ld+json">
{"@type":"Article","text":"Plain text field that is long enough.","description":"A description that is long enough too.","articleBody":"The article body comes first in the output.","author":{"name":"alice","description":"An author bio long enough to be collected."},"hasPart":[{"text":"First nested part with enough text."},{"text":"Second nested part with enough text."}]}
</script></body></html>`}

	want := strings.Join([]string{
		"The article body comes first in the output.",
		"A description that is long enough too.",
		"Plain text field that is long enough.",
		"An author bio long enough to be collected.",
		"First nested part with enough text.",
		"Second nested part with enough text.",
	}, "\n")
	for i := 0; i < 100; i++ {
		a := Classify(articleURL, page)
		require.Equal(t, document.ArticleExtracted, a.Status)
		require.Equal(t, want, a.Text, "run %d", i)
	}
}
