// Package document holds the capture data model shared by every stage of a
// capture: the raw reply-stream nodes, the classified posts and the artifact
// that is written to the content store.
package document

import "time"

// Post represents one captured post.
type Post struct {
	StatusID     string   `json:"status_id"`
	AuthorHandle string   `json:"author_handle"`
	Author       string   `json:"author,omitempty"`
	Text         string   `json:"text"`
	CreatedAt    string   `json:"created_at,omitempty"`
	StatusURL    string   `json:"status_url,omitempty"`
	Media        []string `json:"media"`
	ArticleURLs  []string `json:"article_urls,omitempty"`
	IsMain       bool     `json:"is_main"`
}

// Node is a rendered post as discovered in the reply stream, before it has
// been classified. ParentID is the status the node replies to; it is empty
// when the page gave no hint. ParseErr is set when the node could not be
// read completely.
type Node struct {
	Post
	ParentID string
	ParseErr error
}

// ArticleStatus is the outcome of a long-form article fetch.
type ArticleStatus string

const (
	ArticleExtracted ArticleStatus = "extracted"
	ArticleGated     ArticleStatus = "gated"
	ArticleNotFound  ArticleStatus = "not_found"
	ArticleError     ArticleStatus = "error"
)

// Article is a long-form article linked from the captured posts.
type Article struct {
	Status    ArticleStatus `json:"status"`
	Text      string        `json:"text"`
	SourceURL string        `json:"source_url"`
	FinalURL  string        `json:"final_url,omitempty"`
	Title     string        `json:"title,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

// ArticlePage is what a browser returns after opening an article URL.
type ArticlePage struct {
	FinalURL string
	Title    string
	HTML     string
}

// MediaFile records the download outcome of one media reference.
type MediaFile struct {
	URL       string `json:"url"`
	LocalPath string `json:"local_path"`
	Error     string `json:"error,omitempty"`
}

// CaptureArtifact is the root record written for one capture. Others is nil
// unless other replies were requested; an empty non-nil slice is written as
// [] so "none found" stays distinct from "not collected".
type CaptureArtifact struct {
	Main           Post        `json:"main"`
	Thread         []Post      `json:"thread"`
	Others         []Post      `json:"others,omitzero"`
	Articles       []Article   `json:"articles"`
	MediaFiles     []MediaFile `json:"media_files,omitempty"`
	CapturedAt     time.Time   `json:"captured_at"`
	SourceURL      string      `json:"source_url"`
	TargetStatusID string      `json:"target_status_id"`
	ThreadCount    int         `json:"thread_count"`
	ScanCount      int         `json:"scan_count"`
	SkippedCount   int         `json:"skipped_count"`
}

// ThreadPosts returns the main post followed by the continuation posts.
func (a *CaptureArtifact) ThreadPosts() []Post {
	out := make([]Post, 0, len(a.Thread)+1)
	out = append(out, a.Main)
	return append(out, a.Thread...)
}
