package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level and encoding.
type Config struct {
	Level       string   `mapstructure:"level"`
	Development bool     `mapstructure:"development"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// New builds a zap logger. Production builds emit JSON with ISO-8601 times;
// development builds use the console encoder. Output defaults to stderr so
// stdout stays free for the capture summary.
func New(cfg Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.OutputPaths = []string{"stderr"}
	if len(cfg.OutputPaths) > 0 {
		zcfg.OutputPaths = cfg.OutputPaths
	}
	zcfg.Sampling = nil
	l, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return l, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func orGlobal(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.L()
	}
	return l
}

// LogCaptured emits an info-level "captured" event once an artifact is written.
// If l is nil, the global zap logger is used.
func LogCaptured(l *zap.Logger, statusID string, threadCount, skipped int, articleStatus string) {
	orGlobal(l).Info("captured",
		zap.String("status_id", statusID),
		zap.Int("thread_count", threadCount),
		zap.Int("skipped", skipped),
		zap.String("article_status", articleStatus),
	)
}

// LogSkippedNode records a reply node that was dropped during reconstruction.
func LogSkippedNode(l *zap.Logger, statusID, reason string) {
	orGlobal(l).Debug("skipped_node",
		zap.String("status_id", statusID),
		zap.String("reason", reason),
	)
}

// LogArticle records the outcome of a long-form article fetch.
func LogArticle(l *zap.Logger, url, status, detail string) {
	orGlobal(l).Info("article",
		zap.String("url", url),
		zap.String("status", status),
		zap.String("detail", detail),
	)
}

// LogMediaFailure records a media item that could not be downloaded.
func LogMediaFailure(l *zap.Logger, url string, err error) {
	orGlobal(l).Warn("media_download_failed",
		zap.String("url", url),
		zap.Error(err),
	)
}
