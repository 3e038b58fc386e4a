package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"x-post-capture/internal/capture"
	"x-post-capture/internal/config"
	"x-post-capture/internal/crawler"
	"x-post-capture/internal/document"
	"x-post-capture/internal/history"
	"x-post-capture/internal/media"
	"x-post-capture/internal/session"
	"x-post-capture/internal/store"
)

var captureFlagKeys = map[string]string{
	"browser-profile": "browser.profile",
	"chrome-path":     "browser.chrome_path",
	"headless":        "browser.headless",
	"proxy":           "browser.proxy",
	"timeout":         "browser.timeout",
	"auth-token":      "auth.auth_token",
	"csrf-token":      "auth.csrf_token",
	"cookie-string":   "auth.cookie_string",
	"cookie-file":     "auth.cookie_file",
	"manual-login":    "capture.manual_login",
	"include-others":  "capture.include_others",
	"download-media":  "capture.download_media",
	"hold-on-fail":    "capture.hold_on_fail",
	"max-depth":       "capture.max_depth",
	"scrolls":         "capture.scrolls",
	"scroll-wait":     "capture.scroll_wait",
	"max-nodes":       "capture.max_nodes",
	"output-dir":      "output.dir",
	"media-dir":       "output.media_dir",
	"debug-dir":       "output.debug_dir",
}

func newCaptureCommand(a *app) *cobra.Command {
	var extraOutput string

	cmd := &cobra.Command{
		Use:   "capture <post-url>",
		Short: "Capture one post, its author thread and linked article",
		Example: `  xcapture capture https://x.com/alice/status/1234567890
  xcapture capture --cookie-file cookies.txt --download-media https://x.com/alice/status/1234567890
  xcapture capture --manual-login --browser-profile data/profile https://x.com/alice/status/1234567890`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.capture(cmd.Context(), args[0], extraOutput, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.String("browser-profile", "", "Chrome user data directory kept between runs")
	f.String("chrome-path", "", "Chrome executable (default: auto-detect)")
	f.Bool("headless", false, "run Chrome without a window")
	f.String("proxy", "", "proxy for the browser and media downloads (http, https or socks5)")
	f.Int("timeout", 0, "per-operation browser timeout in milliseconds")
	f.String("auth-token", "", "auth_token cookie value")
	f.String("csrf-token", "", "ct0 cookie value")
	f.String("cookie-string", "", `raw Cookie header, e.g. "auth_token=...; ct0=..."`)
	f.String("cookie-file", "", "file holding a raw Cookie header")
	f.Bool("manual-login", false, "open the login page and wait for Enter before capturing")
	f.Bool("include-others", false, "keep replies by other users in the capture")
	f.Bool("download-media", false, "download media of the main post and thread")
	f.Bool("hold-on-fail", false, "keep the browser open after a failure until Enter is pressed")
	f.Int("max-depth", 0, "maximum number of thread posts after the main post")
	f.Int("scrolls", 0, "extra timeline scroll passes when collecting replies")
	f.Int("scroll-wait", 0, "pause after each scroll in milliseconds")
	f.Int("max-nodes", 0, "maximum reply nodes collected from the timeline")
	f.String("output-dir", "", "directory for <status_id>.json and <status_id>.md")
	f.String("media-dir", "", "directory for downloaded media")
	f.String("debug-dir", "", "directory for failure screenshots and HTML")
	f.StringVar(&extraOutput, "output", "", "also write the JSON capture to this path")
	a.bindFlags(cmd, captureFlagKeys)

	return cmd
}

// capture runs one capture end to end and records it in the history ledger.
func (a *app) capture(ctx context.Context, rawURL, extraOutput string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := a.cfg
	if _, err := document.ParsePostURL(rawURL); err != nil {
		return err
	}

	id, err := session.FromOptions(cfg.SessionOptions()).Resolve()
	if err != nil {
		return err
	}
	a.log.Info("identity resolved", zap.Object("identity", id))

	c := crawler.NewCrawler(
		crawler.WithHeadless(cfg.Browser.Headless),
		crawler.WithChromePath(cfg.Browser.ChromePath),
		crawler.WithProxy(cfg.Browser.Proxy),
		crawler.WithTimeout(cfg.Browser.Timeout()),
		crawler.WithScrolls(cfg.Capture.Scrolls),
		crawler.WithScrollWait(cfg.Capture.ScrollWait()),
		crawler.WithMaxNodes(cfg.Capture.MaxNodes),
		crawler.WithIdentity(id),
		crawler.WithLogger(a.log),
	)
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	opts := []capture.Option{capture.WithLogger(a.log)}
	if cfg.Capture.ManualLogin || cfg.Capture.HoldOnFail {
		prompt := func(msg string) { fmt.Fprintln(stderr, msg) }
		opts = append(opts, capture.WithGate(capture.NewGate(enterSignal(ctx, stdin), prompt)))
	}
	if cfg.Capture.DownloadMedia {
		client, err := media.NewHTTPClient(cfg.Browser.Proxy, 0)
		if err != nil {
			return err
		}
		opts = append(opts, capture.WithDownloader(
			media.NewDownloader(cfg.Output.MediaDir, client, media.WithLogger(a.log)),
		))
	}

	started := time.Now()
	res, err := capture.NewPipeline(c, store.New(cfg.Output.Dir), opts...).Run(ctx, newRequest(cfg, rawURL, extraOutput))
	a.record(ctx, rawURL, started, res, err)
	if err != nil {
		return err
	}
	res.Summary.Render(stdout)
	return nil
}

func newRequest(cfg *config.Config, rawURL, extraOutput string) capture.Request {
	return capture.Request{
		URL:           rawURL,
		ManualLogin:   cfg.Capture.ManualLogin,
		IncludeOthers: cfg.Capture.IncludeOthers,
		MaxDepth:      cfg.Capture.MaxDepth,
		DownloadMedia: cfg.Capture.DownloadMedia,
		OutputPath:    extraOutput,
		DebugDir:      cfg.Output.DebugDir,
		HoldOnFail:    cfg.Capture.HoldOnFail,
	}
}

// record appends the run to the history ledger. Ledger problems never fail
// the capture.
func (a *app) record(ctx context.Context, rawURL string, started time.Time, res *capture.Result, runErr error) {
	if a.cfg.Output.History == "" {
		return
	}
	l, err := history.Open(a.cfg.Output.History)
	if err != nil {
		a.log.Warn("history unavailable", zap.Error(err))
		return
	}
	defer l.Close()

	if err := l.Record(context.WithoutCancel(ctx), newRun(rawURL, started, time.Now(), res, runErr)); err != nil {
		a.log.Warn("history record failed", zap.Error(err))
	}
}

func newRun(rawURL string, started, finished time.Time, res *capture.Result, runErr error) history.Run {
	run := history.Run{
		ID:            uuid.NewString(),
		StatusID:      document.StatusID(rawURL),
		SourceURL:     rawURL,
		Outcome:       document.ErrorKind(runErr),
		ArticleStatus: "none",
		StartedAt:     started,
		FinishedAt:    finished,
	}
	if res == nil {
		return run
	}
	if res.RunID != "" {
		run.ID = res.RunID
	}
	run.SkippedCount = res.Stats.Skipped
	if res.Artifact != nil {
		run.ThreadCount = len(res.Artifact.Thread)
		run.ArticleStatus = res.Summary.ArticleStatus
	}
	return run
}

// enterSignal delivers one value per line read from r until ctx ends.
func enterSignal(ctx context.Context, r io.Reader) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
