package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogCaptured_EmitsInfoWithExpectedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	LogCaptured(l, "123", 3, 1, "gated")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", logs.Len())
	}
	rec := logs.All()[0]
	if rec.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level, got %v", rec.Level)
	}
	if rec.Message != "captured" {
		t.Fatalf("expected message 'captured', got %q", rec.Message)
	}
	got := rec.ContextMap()
	if got["status_id"] != "123" || got["thread_count"] != int64(3) || got["article_status"] != "gated" {
		t.Fatalf("unexpected fields: %+v", got)
	}
}

func TestLogMediaFailure_Warns(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	LogMediaFailure(zap.New(core), "https://pbs.twimg.com/media/a", errors.New("404"))

	recs := logs.FilterMessage("media_download_failed").All()
	if len(recs) != 1 || recs[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn record, got %+v", recs)
	}
	if recs[0].ContextMap()["error"] != "404" {
		t.Fatalf("expected error field, got %+v", recs[0].ContextMap())
	}
}

func TestNilLoggerFallsBackToGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	LogArticle(nil, "https://x.com/i/article/1", "extracted", "")
	if logs.FilterMessage("article").Len() != 1 {
		t.Fatalf("expected global logger to receive the record")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
