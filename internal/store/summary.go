package store

import (
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"x-post-capture/internal/document"
)

// Summary is the compact status of a written capture.
type Summary struct {
	StatusID       string `json:"status_id"`
	MainTextLen    int    `json:"main_text_len"`
	ThreadTextLens []int  `json:"thread_text_lens"`
	OthersCount    int    `json:"others_count"`
	SkippedCount   int    `json:"skipped_count"`
	ArticleStatus  string `json:"article_status"`
	ArticleTextLen int    `json:"article_text_len"`
	MediaCount     int    `json:"media_count"`
	MediaFailed    int    `json:"media_failed"`
	JSONPath       string `json:"json_path"`
	MarkdownPath   string `json:"markdown_path"`
	ExtraPath      string `json:"extra_path,omitempty"`
}

// Summarize computes the summary fields derived from the artifact.
func Summarize(a *document.CaptureArtifact) Summary {
	s := Summary{
		StatusID:       a.Main.StatusID,
		MainTextLen:    len([]rune(a.Main.Text)),
		ThreadTextLens: make([]int, 0, len(a.Thread)),
		OthersCount:    len(a.Others),
		SkippedCount:   a.SkippedCount,
		ArticleStatus:  "none",
	}
	for _, p := range a.Thread {
		s.ThreadTextLens = append(s.ThreadTextLens, len([]rune(p.Text)))
	}
	if len(a.Articles) > 0 {
		s.ArticleStatus = string(a.Articles[0].Status)
		s.ArticleTextLen = len([]rune(a.Articles[0].Text))
	}
	for _, p := range a.ThreadPosts() {
		s.MediaCount += len(p.Media)
	}
	for _, f := range a.MediaFiles {
		if f.LocalPath == "" {
			s.MediaFailed++
		}
	}
	return s
}

// Render writes the summary as a two-column table.
func (s Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"status_id", s.StatusID},
		{"main_text_len", s.MainTextLen},
		{"thread_count", len(s.ThreadTextLens)},
		{"thread_text_lens", joinInts(s.ThreadTextLens)},
		{"others_count", s.OthersCount},
		{"skipped", s.SkippedCount},
		{"article_status", s.ArticleStatus},
		{"article_text_len", s.ArticleTextLen},
		{"media", s.MediaCount},
		{"media_failed", s.MediaFailed},
		{"json", s.JSONPath},
		{"markdown", s.MarkdownPath},
	})
	if s.ExtraPath != "" {
		t.AppendRow(table.Row{"output", s.ExtraPath})
	}
	t.Render()
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
