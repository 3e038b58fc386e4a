// Package thread rebuilds the author's thread from the rendered reply stream.
//
// A node belongs to the thread only if it was written by the main author and
// replies to the current tip of the chain that starts at the main post.
// Same-author replies elsewhere on the page are not continuations.
package thread

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"x-post-capture/internal/document"
	"x-post-capture/internal/logger"
)

// DefaultMaxDepth bounds how many continuation posts are followed.
const DefaultMaxDepth = 20

// Verdict is the classification of one reply-stream node.
type Verdict int

const (
	MainThread Verdict = iota
	OtherReply
	Skipped
)

func (v Verdict) String() string {
	switch v {
	case MainThread:
		return "main_thread"
	case OtherReply:
		return "other_reply"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Skip reasons.
const (
	ReasonParse     = "parse"
	ReasonMissingID = "missing_status_id"
	ReasonDepth     = "max_depth"
)

// Classification pairs a node with its verdict. Reason is set for Skipped.
type Classification struct {
	Node    document.Node
	Verdict Verdict
	Reason  string
}

// Stats are reconstruction diagnostics.
type Stats struct {
	Discovered  int
	Duplicates  int
	Skipped     int
	SkipReasons map[string]int
	Truncated   bool
}

// Result is the reconstructed thread.
type Result struct {
	Thread          []document.Post
	Others          []document.Post
	Classifications []Classification
	Stats           Stats
}

// Reconstructor classifies reply-stream nodes against a main post.
type Reconstructor struct {
	MaxDepth      int
	IncludeOthers bool
	Logger        *zap.Logger
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithMaxDepth sets the continuation bound. Values below 1 use DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	if n < 1 {
		n = DefaultMaxDepth
	}
	return func(r *Reconstructor) { r.MaxDepth = n }
}

// WithIncludeOthers keeps non-thread replies in Result.Others.
func WithIncludeOthers(b bool) Option { return func(r *Reconstructor) { r.IncludeOthers = b } }

// WithLogger sets the logger used for skip diagnostics.
func WithLogger(l *zap.Logger) Option { return func(r *Reconstructor) { r.Logger = l } }

// New constructs a Reconstructor.
func New(opts ...Option) *Reconstructor {
	r := &Reconstructor{MaxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Reconstruct classifies nodes in display order. It never fails: nodes that
// cannot be used are skipped and counted.
func (r *Reconstructor) Reconstruct(main document.Post, nodes []document.Node) Result {
	res := Result{Stats: Stats{SkipReasons: make(map[string]int)}}
	author := strings.ToLower(main.AuthorHandle)

	seen := map[string]bool{main.StatusID: true}
	tip := main.StatusID
	prev := main.StatusID
	depth := 0

	for _, n := range nodes {
		id := n.StatusID
		if id != "" {
			if seen[id] {
				res.Stats.Duplicates++
				continue
			}
			seen[id] = true
		}
		res.Stats.Discovered++

		parent := n.ParentID
		if parent == "" {
			parent = prev
		}
		if id != "" {
			prev = id
		}
		sameAuthor := strings.EqualFold(n.AuthorHandle, author) ||
			(n.ParseErr != nil && n.AuthorHandle == "")
		onChain := id != "" && parent == tip && sameAuthor

		c := Classification{Node: n}
		switch {
		case id == "":
			c.Verdict, c.Reason = Skipped, ReasonMissingID
		case n.ParseErr != nil:
			c.Verdict, c.Reason = Skipped, ReasonParse
			if onChain {
				// Keep the chain reachable through a node we could not read.
				tip = id
			}
		case onChain && depth >= r.MaxDepth:
			c.Verdict, c.Reason = Skipped, ReasonDepth
			res.Stats.Truncated = true
			tip = id
		case onChain:
			c.Verdict = MainThread
			tip = id
			depth++
		default:
			c.Verdict = OtherReply
		}

		res.Classifications = append(res.Classifications, c)
		switch c.Verdict {
		case MainThread:
			p := n.Post
			p.IsMain = false
			res.Thread = append(res.Thread, p)
		case OtherReply:
			if r.IncludeOthers {
				p := n.Post
				p.IsMain = false
				res.Others = append(res.Others, p)
			}
		case Skipped:
			res.Stats.Skipped++
			res.Stats.SkipReasons[c.Reason]++
			logger.LogSkippedNode(r.Logger, id, skipDetail(c))
		}
	}
	return res
}

func skipDetail(c Classification) string {
	if c.Node.ParseErr != nil {
		return c.Reason + ": " + c.Node.ParseErr.Error()
	}
	return c.Reason
}
