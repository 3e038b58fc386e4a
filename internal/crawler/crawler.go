package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"x-post-capture/internal/document"
	"x-post-capture/internal/session"
)

const (
	DefaultTimeout    = 90 * time.Second
	DefaultScrolls    = 4
	DefaultScrollWait = 1200 * time.Millisecond
	DefaultMaxNodes   = 50

	scrollStep = 2800
)

// Crawler holds the browser configuration and, once started, the live
// browser session used for one capture.
type Crawler struct {
	Headless   bool
	ChromePath string
	ProxyURL   string
	Timeout    time.Duration
	Scrolls    int
	ScrollWait time.Duration
	MaxNodes   int
	Identity   *session.Identity

	log         *zap.Logger
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	mainID      string
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithHeadless sets whether to run Chrome in headless mode.
func WithHeadless(b bool) Option { return func(c *Crawler) { c.Headless = b } }

// WithChromePath sets the Chrome executable. Empty uses chromedp's lookup.
func WithChromePath(p string) Option { return func(c *Crawler) { c.ChromePath = p } }

// WithProxy routes all browser traffic through proxyURL.
func WithProxy(proxyURL string) Option { return func(c *Crawler) { c.ProxyURL = proxyURL } }

// WithTimeout bounds every wait of a single operation. Non-positive values
// use DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		d = DefaultTimeout
	}
	return func(c *Crawler) { c.Timeout = d }
}

// WithScrolls sets how many extra timeline passes ListReplies takes.
// Negative values are clamped to 0.
func WithScrolls(n int) Option {
	if n < 0 {
		n = 0
	}
	return func(c *Crawler) { c.Scrolls = n }
}

// WithScrollWait sets the pause after each scroll. Negative values are
// clamped to 0.
func WithScrollWait(d time.Duration) Option {
	if d < 0 {
		d = 0
	}
	return func(c *Crawler) { c.ScrollWait = d }
}

// WithMaxNodes caps the number of reply nodes collected. Values below 1 use
// DefaultMaxNodes.
func WithMaxNodes(n int) Option {
	if n < 1 {
		n = DefaultMaxNodes
	}
	return func(c *Crawler) { c.MaxNodes = n }
}

// WithIdentity sets the browsing identity installed on Start.
func WithIdentity(id *session.Identity) Option { return func(c *Crawler) { c.Identity = id } }

// WithLogger sets the crawler logger.
func WithLogger(l *zap.Logger) Option {
	if l == nil {
		l = zap.NewNop()
	}
	return func(c *Crawler) { c.log = l.Named("crawler") }
}

// NewCrawler constructs a Crawler using the provided functional options.
func NewCrawler(opts ...Option) *Crawler {
	c := &Crawler{
		Headless:   true,
		Timeout:    DefaultTimeout,
		Scrolls:    DefaultScrolls,
		ScrollWait: DefaultScrollWait,
		MaxNodes:   DefaultMaxNodes,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Start launches Chrome and installs the identity. The browser lives until
// Close or until ctx is cancelled.
func (c *Crawler) Start(ctx context.Context) error {
	if c.browserCtx != nil {
		return errors.New("crawler already started")
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(c.log.Sugar().Debugf),
	)
	c.browserCtx, c.cancelAlloc, c.cancelTab = tabCtx, cancelAlloc, cancelTab

	// The first Run allocates the browser and must not carry a deadline.
	if err := chromedp.Run(tabCtx); err != nil {
		c.Close()
		return fmt.Errorf("start browser: %w", err)
	}

	op, cancel := c.opContext(ctx, c.Timeout)
	defer cancel()
	if err := chromedp.Run(op, identityActions(c.Identity, true)); err != nil {
		c.Close()
		return c.opError(ctx, op, fmt.Errorf("install identity: %w", err))
	}

	fields := []zap.Field{zap.Bool("headless", c.Headless), zap.Bool("proxy", c.ProxyURL != "")}
	if c.Identity != nil {
		fields = append(fields, zap.Object("identity", c.Identity))
	}
	c.log.Info("browser started", fields...)
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (c *Crawler) Close() error {
	if c.cancelTab != nil {
		c.cancelTab()
		c.cancelTab = nil
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
		c.cancelAlloc = nil
	}
	return nil
}

// opContext derives a context for one browser operation from the tab
// context. It ends when timeout elapses or when the caller's ctx is done.
func (c *Crawler) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	op, cancel := context.WithCancel(c.browserCtx)
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		op, cancelTimeout = context.WithTimeout(op, timeout)
		inner := cancel
		cancel = func() { cancelTimeout(); inner() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return op, func() { stop(); cancel() }
}

// opError maps a failed browser operation onto the capture error kinds.
// Cancellation by the caller wins over everything else.
func (c *Crawler) opError(ctx, op context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(op.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", document.ErrLoadTimeout, err)
	}
	return err
}

func (c *Crawler) started() error {
	if c.browserCtx == nil {
		return errors.New("crawler not started")
	}
	return nil
}
