package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const debugTimeout = 15 * time.Second

// OpenLogin navigates the capture tab to the interactive login flow.
func (c *Crawler) OpenLogin(ctx context.Context) error {
	if err := c.started(); err != nil {
		return err
	}
	op, cancel := c.opContext(ctx, c.Timeout)
	defer cancel()
	err := navigateWithRetry(op, func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Navigate(LoginURL))
	}, navRetryWait, c.log)
	if err != nil {
		return c.opError(ctx, op, err)
	}
	return nil
}

// DumpDebug saves a full-page screenshot and the page HTML of the capture tab
// into dir as <label>_<timestamp>.png and .html.
func (c *Crawler) DumpDebug(ctx context.Context, dir, label string) error {
	if err := c.started(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	op, cancel := c.opContext(ctx, debugTimeout)
	defer cancel()

	base := filepath.Join(dir, fmt.Sprintf("%s_%s", label, time.Now().Format("20060102_150405")))
	var (
		shot []byte
		html string
		url  string
	)
	if err := chromedp.Run(op,
		chromedp.Location(&url),
		chromedp.FullScreenshot(&shot, 100),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("capture debug state: %w", err)
	}
	if err := os.WriteFile(base+".png", shot, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
		return err
	}
	c.log.Info("debug state saved", zap.String("url", url), zap.String("screenshot", base+".png"), zap.String("html", base+".html"))
	return nil
}
