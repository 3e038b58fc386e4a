package store

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"x-post-capture/internal/document"
)

type frontMatter struct {
	StatusID      string `yaml:"status_id"`
	Author        string `yaml:"author_handle"`
	SourceURL     string `yaml:"source_url"`
	CapturedAt    string `yaml:"captured_at"`
	ThreadCount   int    `yaml:"thread_count"`
	OthersCount   int    `yaml:"others_count,omitempty"`
	ArticleStatus string `yaml:"article_status,omitempty"`
}

// RenderMarkdown renders the lossy human-readable view of an artifact.
func RenderMarkdown(a *document.CaptureArtifact) ([]byte, error) {
	fm := frontMatter{
		StatusID:    a.Main.StatusID,
		Author:      a.Main.AuthorHandle,
		SourceURL:   a.SourceURL,
		CapturedAt:  a.CapturedAt.UTC().Format(time.RFC3339),
		ThreadCount: len(a.Thread),
		OthersCount: len(a.Others),
	}
	if len(a.Articles) > 0 {
		fm.ArticleStatus = string(a.Articles[0].Status)
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# X Capture %s\n\n", a.Main.StatusID)

	b.WriteString("## Main Post\n")
	writePost(&b, a.Main, "main")

	b.WriteString("\n## Thread\n")
	if len(a.Thread) == 0 {
		b.WriteString("- none\n")
	}
	for i, p := range a.Thread {
		fmt.Fprintf(&b, "\n### %d\n", i+1)
		writePost(&b, p, fmt.Sprintf("thread_%d", i+1))
	}

	if len(a.Others) > 0 {
		b.WriteString("\n## Other Replies\n")
		for i, p := range a.Others {
			fmt.Fprintf(&b, "\n### %d\n", i+1)
			writePost(&b, p, fmt.Sprintf("other_%d", i+1))
		}
	}

	b.WriteString("\n## Long Article\n")
	if len(a.Articles) == 0 {
		b.WriteString("- none\n")
	}
	for i, art := range a.Articles {
		fmt.Fprintf(&b, "\n### %d\n", i+1)
		fmt.Fprintf(&b, "- url: %s\n", art.SourceURL)
		fmt.Fprintf(&b, "- final_url: %s\n", art.FinalURL)
		fmt.Fprintf(&b, "- status: %s\n", art.Status)
		if art.Detail != "" {
			fmt.Fprintf(&b, "- detail: %s\n", art.Detail)
		}
		fmt.Fprintf(&b, "- title: %s\n\n", art.Title)
		b.WriteString(art.Text)
		b.WriteString("\n")
	}

	if len(a.MediaFiles) > 0 {
		b.WriteString("\n## Downloaded Media\n")
		for _, f := range a.MediaFiles {
			if f.LocalPath != "" {
				fmt.Fprintf(&b, "- %s -> %s\n", f.URL, f.LocalPath)
			} else {
				fmt.Fprintf(&b, "- %s (failed: %s)\n", f.URL, f.Error)
			}
		}
	}
	return b.Bytes(), nil
}

func writePost(b *bytes.Buffer, p document.Post, label string) {
	fmt.Fprintf(b, "- author: %s\n", p.Author)
	if p.AuthorHandle != "" {
		fmt.Fprintf(b, "- handle: @%s\n", p.AuthorHandle)
	}
	fmt.Fprintf(b, "- timestamp: %s\n", p.CreatedAt)
	fmt.Fprintf(b, "- status_url: %s\n", p.StatusURL)
	fmt.Fprintf(b, "- media_count: %d\n\n", len(p.Media))
	b.WriteString(strings.TrimSpace(p.Text))
	b.WriteString("\n")
	if len(p.ArticleURLs) > 0 {
		b.WriteString("\narticle_links:\n")
		for _, u := range p.ArticleURLs {
			fmt.Fprintf(b, "- %s\n", u)
		}
	}
	if len(p.Media) > 0 {
		b.WriteString("\nmedia:\n")
		for i, u := range p.Media {
			fmt.Fprintf(b, "![%s_%d](%s)\n", label, i+1, u)
		}
	}
}
