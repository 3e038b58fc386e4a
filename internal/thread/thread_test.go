package thread

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-post-capture/internal/document"
)

var mainPost = document.Post{StatusID: "100", AuthorHandle: "alice", Text: "root", IsMain: true}

func node(id, author, parent string) document.Node {
	return document.Node{
		Post:     document.Post{StatusID: id, AuthorHandle: author, Text: "text " + id},
		ParentID: parent,
	}
}

// chain builds a linear reply chain main -> n1 -> n2 ... with the given authors.
func chain(authors ...string) []document.Node {
	var out []document.Node
	parent := mainPost.StatusID
	for i, a := range authors {
		id := fmt.Sprintf("%d", 101+i)
		out = append(out, node(id, a, parent))
		parent = id
	}
	return out
}

func ids(posts []document.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.StatusID)
	}
	return out
}

func TestReconstruct_DepthFiveTree(t *testing.T) {
	nodes := chain("alice", "alice", "alice", "bob", "carol")

	res := New(WithIncludeOthers(true)).Reconstruct(mainPost, nodes)

	if diff := cmp.Diff([]string{"101", "102", "103"}, ids(res.Thread)); diff != "" {
		t.Fatalf("thread mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"104", "105"}, ids(res.Others))
	assert.Equal(t, 5, res.Stats.Discovered)
	assert.Zero(t, res.Stats.Skipped)
}

func TestReconstruct_OthersOmittedWhenDisabled(t *testing.T) {
	res := New().Reconstruct(mainPost, chain("alice", "bob"))
	assert.Equal(t, []string{"101"}, ids(res.Thread))
	assert.Nil(t, res.Others)
	require.Len(t, res.Classifications, 2)
	assert.Equal(t, OtherReply, res.Classifications[1].Verdict)
}

func TestReconstruct_ThreadInvariant(t *testing.T) {
	nodes := []document.Node{
		node("101", "ALICE", "100"),
		node("102", "bob", "101"),
		node("103", "alice", "102"),
		node("104", "alice", "101"),
		node("105", "alice", "104"),
	}
	res := New(WithIncludeOthers(true)).Reconstruct(mainPost, nodes)

	for _, p := range res.Thread {
		assert.Equal(t, "alice", lower(p.AuthorHandle), p.StatusID)
		assert.False(t, p.IsMain)
	}
	assert.Equal(t, []string{"101", "104", "105"}, ids(res.Thread))
	assert.Equal(t, []string{"102", "103"}, ids(res.Others))
}

func TestReconstruct_SameAuthorSiblingExcluded(t *testing.T) {
	nodes := []document.Node{
		node("101", "alice", "100"),
		node("102", "alice", "101"),
		// A second direct reply to the main post: same author, not the chain.
		node("103", "alice", "100"),
	}
	res := New(WithIncludeOthers(true)).Reconstruct(mainPost, nodes)
	assert.Equal(t, []string{"101", "102"}, ids(res.Thread))
	assert.Equal(t, []string{"103"}, ids(res.Others))
}

func TestReconstruct_DeduplicatesSilently(t *testing.T) {
	nodes := chain("alice", "alice")
	nodes = append(nodes, nodes...)
	nodes = append(nodes, node("100", "alice", ""))

	res := New().Reconstruct(mainPost, nodes)
	assert.Equal(t, []string{"101", "102"}, ids(res.Thread))
	assert.Equal(t, 3, res.Stats.Duplicates)
	assert.Equal(t, 2, res.Stats.Discovered)
	assert.Zero(t, res.Stats.Skipped)
}

func TestReconstruct_ParseFailureSkippedWithoutBreakingChain(t *testing.T) {
	nodes := chain("alice", "alice", "alice", "alice")
	nodes[1].ParseErr = errors.New("missing text node")
	nodes[1].Text = ""

	res := New().Reconstruct(mainPost, nodes)

	assert.Equal(t, res.Stats.Discovered-res.Stats.Skipped, len(res.Thread))
	assert.Equal(t, []string{"101", "103", "104"}, ids(res.Thread))
	assert.Equal(t, 1, res.Stats.SkipReasons[ReasonParse])
}

func TestReconstruct_ParseFailureWithoutAuthorStillBridges(t *testing.T) {
	nodes := chain("alice", "alice")
	nodes[0].AuthorHandle = ""
	nodes[0].ParseErr = errors.New("stale node")

	res := New().Reconstruct(mainPost, nodes)
	assert.Equal(t, []string{"102"}, ids(res.Thread))
}

func TestReconstruct_MissingIDSkipped(t *testing.T) {
	nodes := []document.Node{
		node("101", "alice", "100"),
		{Post: document.Post{AuthorHandle: "alice", Text: "orphan"}},
		node("102", "alice", "101"),
	}
	res := New().Reconstruct(mainPost, nodes)
	assert.Equal(t, []string{"101", "102"}, ids(res.Thread))
	assert.Equal(t, 1, res.Stats.SkipReasons[ReasonMissingID])
}

func TestReconstruct_MaxDepthStopsExpansion(t *testing.T) {
	nodes := chain("alice", "alice", "alice", "alice", "alice")

	res := New(WithMaxDepth(2)).Reconstruct(mainPost, nodes)
	assert.Equal(t, []string{"101", "102"}, ids(res.Thread))
	assert.True(t, res.Stats.Truncated)
	assert.Equal(t, 3, res.Stats.SkipReasons[ReasonDepth])
}

func TestReconstruct_AdjacencyWhenParentUnknown(t *testing.T) {
	nodes := []document.Node{
		node("101", "alice", ""),
		node("102", "alice", ""),
		node("103", "bob", ""),
		node("104", "alice", ""),
	}
	res := New(WithIncludeOthers(true)).Reconstruct(mainPost, nodes)
	assert.Equal(t, []string{"101", "102"}, ids(res.Thread))
	assert.Equal(t, []string{"103", "104"}, ids(res.Others))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "main_thread", MainThread.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "verdict(9)", Verdict(9).String())
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
