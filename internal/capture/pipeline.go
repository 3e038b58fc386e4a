// Package capture drives one capture of a post URL from page load through
// thread reconstruction, article and media resolution to the content store.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"x-post-capture/internal/article"
	"x-post-capture/internal/document"
	"x-post-capture/internal/logger"
	"x-post-capture/internal/media"
	"x-post-capture/internal/store"
	"x-post-capture/internal/thread"
)

// Browser is the live page session a capture runs against.
type Browser interface {
	// Load navigates to a post URL and returns the rendered main post.
	Load(ctx context.Context, url string) (document.Post, error)
	// ListReplies returns the discovered reply stream in display order and
	// how many snapshot passes were taken.
	ListReplies(ctx context.Context) ([]document.Node, int, error)
	FetchArticle(ctx context.Context, url string) (document.ArticlePage, error)
	// OpenLogin navigates to the interactive login page.
	OpenLogin(ctx context.Context) error
	// DumpDebug writes a screenshot and the page HTML into dir.
	DumpDebug(ctx context.Context, dir, label string) error
	Close() error
}

// MediaDownloader fetches media URLs for a status.
type MediaDownloader interface {
	Download(ctx context.Context, statusID string, urls []string) []document.MediaFile
}

// Request describes one capture.
type Request struct {
	URL           string
	ManualLogin   bool
	IncludeOthers bool
	MaxDepth      int
	DownloadMedia bool
	OutputPath    string
	DebugDir      string
	HoldOnFail    bool
}

// Result is what a successful Run produced.
type Result struct {
	RunID    string
	Artifact *document.CaptureArtifact
	Summary  store.Summary
	Stats    thread.Stats
}

// Pipeline runs captures against one browser session.
type Pipeline struct {
	browser    Browser
	store      *store.Store
	gate       *Gate
	downloader MediaDownloader
	log        *zap.Logger
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGate sets the gate used for manual login and hold-on-fail.
func WithGate(g *Gate) Option { return func(p *Pipeline) { p.gate = g } }

// WithDownloader sets the media downloader used when DownloadMedia is on.
func WithDownloader(d MediaDownloader) Option { return func(p *Pipeline) { p.downloader = d } }

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// NewPipeline builds a Pipeline over b writing into st.
func NewPipeline(b Browser, st *store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{browser: b, store: st, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Run captures req.URL. On any error, including cancellation, nothing is
// written to the store.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := p.log.With(zap.String("run_id", res.RunID))

	targetID, err := document.ParsePostURL(req.URL)
	if err != nil {
		return res, err
	}
	log = log.With(zap.String("status_id", targetID))

	if req.ManualLogin {
		if p.gate == nil {
			return res, errors.New("manual login requested without a gate")
		}
		if err := p.browser.OpenLogin(ctx); err != nil {
			return res, p.fail(ctx, req, log, "login", fmt.Errorf("open login page: %w", err))
		}
		if err := p.gate.Await(ctx); err != nil {
			return res, err
		}
		log.Info("manual login confirmed")
	}

	main, err := p.browser.Load(ctx, req.URL)
	if err != nil {
		return res, p.fail(ctx, req, log, "load", err)
	}
	main.IsMain = true
	if main.StatusID != targetID {
		return res, p.fail(ctx, req, log, "load",
			fmt.Errorf("rendered status %q, requested %q: %w", main.StatusID, targetID, document.ErrPostNotFound))
	}

	nodes, passes, err := p.browser.ListReplies(ctx)
	if err != nil {
		return res, p.fail(ctx, req, log, "replies", fmt.Errorf("list replies: %w", err))
	}
	log.Debug("reply stream read", zap.Int("nodes", len(nodes)), zap.Int("passes", passes))

	rec := thread.New(
		thread.WithMaxDepth(req.MaxDepth),
		thread.WithIncludeOthers(req.IncludeOthers),
		thread.WithLogger(log),
	).Reconstruct(main, nodes)
	res.Stats = rec.Stats
	if rec.Stats.Truncated {
		log.Info("thread truncated at max depth", zap.Int("max_depth", req.MaxDepth))
	}

	var waiter article.LoginWaiter
	if req.ManualLogin {
		waiter = p.gate
	}
	articles, err := article.NewExtractor(p.browser, waiter, log).Extract(ctx, main, rec.Thread)
	if err != nil {
		return res, err
	}

	a := &document.CaptureArtifact{
		Main:           main,
		Thread:         rec.Thread,
		Articles:       articles,
		CapturedAt:     p.now().UTC(),
		SourceURL:      req.URL,
		TargetStatusID: targetID,
		ScanCount:      len(nodes) + 1,
		SkippedCount:   rec.Stats.Skipped,
	}
	if req.IncludeOthers {
		a.Others = rec.Others
		if a.Others == nil {
			a.Others = []document.Post{}
		}
	}

	if req.DownloadMedia && p.downloader != nil {
		urls := media.Collect(a.ThreadPosts()...)
		a.MediaFiles = p.downloader.Download(ctx, main.StatusID, urls)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	sum, err := p.store.Save(a, req.OutputPath)
	if err != nil {
		return res, fmt.Errorf("save capture: %w", err)
	}
	res.Artifact, res.Summary = a, sum

	status := "none"
	if len(articles) > 0 {
		status = string(articles[0].Status)
	}
	logger.LogCaptured(log, main.StatusID, len(a.Thread), a.SkippedCount, status)
	return res, nil
}

// fail records debug output for a fatal browser error and, when asked, holds
// the browser open until the operator signals.
func (p *Pipeline) fail(ctx context.Context, req Request, log *zap.Logger, stage string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	log.Error("capture failed", zap.String("stage", stage), zap.String("kind", document.ErrorKind(err)), zap.Error(err))
	if req.DebugDir != "" {
		if derr := p.browser.DumpDebug(ctx, req.DebugDir, stage); derr != nil {
			log.Warn("debug dump failed", zap.Error(derr))
		}
	}
	if req.HoldOnFail && p.gate != nil {
		_ = p.gate.Hold(ctx)
	}
	return err
}
