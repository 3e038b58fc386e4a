package crawler

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"x-post-capture/internal/document"
)

const maxTextNodes = 600

var (
	errNoStatusID = errors.New("missing status id")
	errNoAuthor   = errors.New("missing author handle")
	errNoText     = errors.New("missing text node")
)

// parseArticle reads one rendered post. Missing pieces are reported on
// Node.ParseErr; whatever could be read is still returned.
func parseArticle(art *goquery.Selection) document.Node {
	var n document.Node

	href, _ := getAttr(art.Find("time").First().Closest("a"), "href")
	n.StatusID = document.StatusID(href)
	if n.StatusID == "" {
		art.Find(statusLinkSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			h, _ := getAttr(s, "href")
			if sid := document.StatusID(h); sid != "" {
				n.StatusID, href = sid, h
				return false
			}
			return true
		})
	}
	if href != "" {
		n.StatusURL = document.AbsoluteURL(href)
	}

	userText := document.CleanText(art.Find(userNameSel).First().Text())
	n.AuthorHandle = document.Handle(userText)
	if name, _, _ := strings.Cut(userText, "@"); strings.TrimSpace(name) != "" {
		n.Author = strings.TrimSpace(name)
	} else {
		n.Author = userText
	}
	n.CreatedAt, _ = getAttr(art.Find("time").First(), "datetime")

	seen := make(map[string]bool)
	parts := collectTexts(art, []string{tweetTextSel}, seen, maxTextNodes)
	parts = append(parts, collectTexts(art, longformSelectors, seen, maxTextNodes)...)
	n.Text = strings.TrimSpace(strings.Join(parts, "\n"))

	seenMedia := make(map[string]bool)
	n.Media = []string{}
	for _, m := range mediaSelectors {
		n.Media = append(n.Media, collectURLs(art, m.sel, m.attr, mediaURL, seenMedia)...)
	}
	n.ArticleURLs = collectURLs(art, articleLinkSel, "href", document.NormalizeArticleURL, make(map[string]bool))

	switch {
	case n.StatusID == "":
		n.ParseErr = errNoStatusID
	case n.AuthorHandle == "":
		n.ParseErr = errNoAuthor
	case !hasAnyText(n.Text) && len(n.Media) == 0:
		n.ParseErr = errNoText
	}
	return n
}

// parseTimeline reads a snapshot of the conversation timeline. It returns the
// main post if it is mounted, and the reply nodes rendered below it in
// display order.
//
// The timeline groups replies into conversations separated by cells without a
// post. The first post of a group replies to the main post, every later one
// to the post above it. Posts whose context is not visible in the snapshot get
// no ParentID.
func parseTimeline(html, mainID string) (*document.Node, []document.Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, err
	}
	cells := doc.Find(cellSel)
	if cells.Length() == 0 {
		cells = doc.Find(articleSel)
	}

	var (
		main  *document.Node
		nodes []document.Node
		last  string
		known bool
	)
	cells.Each(func(_ int, cell *goquery.Selection) {
		art := cell
		if !cell.Is(articleSel) {
			art = cell.Find(articleSel).First()
		}
		if art.Length() == 0 {
			last, known = mainID, true
			return
		}
		n := parseArticle(art)
		if n.StatusID != "" && n.StatusID == mainID {
			m := n
			m.IsMain = true
			main = &m
			// Posts above the main one are its ancestors, not replies.
			nodes = nodes[:0]
			last, known = mainID, true
			return
		}
		if known {
			n.ParentID = last
		}
		if n.StatusID != "" {
			last, known = n.StatusID, true
		}
		nodes = append(nodes, n)
	})
	return main, nodes, nil
}

// replyStream merges nodes from overlapping snapshots in discovery order.
type replyStream struct {
	nodes []document.Node
	index map[string]int
}

func newReplyStream() *replyStream {
	return &replyStream{index: make(map[string]int)}
}

func (s *replyStream) add(nodes ...document.Node) {
	for _, n := range nodes {
		key := n.StatusID
		if key == "" {
			key = "anon:" + n.AuthorHandle + "|" + n.Text
		}
		if i, ok := s.index[key]; ok {
			if s.nodes[i].ParentID == "" && n.ParentID != "" {
				s.nodes[i].ParentID = n.ParentID
			}
			continue
		}
		s.index[key] = len(s.nodes)
		s.nodes = append(s.nodes, n)
	}
}

func (s *replyStream) count() int { return len(s.nodes) }
