package document

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePostURL(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"https://x.com/alice/status/1890001234567890123", "1890001234567890123", false},
		{"https://twitter.com/bob/status/42?s=20", "42", false},
		{"  https://x.com/alice/status/7/photo/1 ", "7", false},
		{"https://www.x.com/alice/status/8", "8", false},
		{"https://mobile.twitter.com/bob/status/9", "9", false},
		{"https://X.com/alice/status/10", "10", false},
		{"https://x.com/alice", "", true},
		{"https://example.com/a/status/1", "", true},
		{"https://x.com.evil.test/a/status/1", "", true},
		{"ftp://x.com/a/status/1", "", true},
		{"/alice/status/7", "", true},
		{"not a url", "", true},
	}
	for _, c := range cases {
		got, err := ParsePostURL(c.raw)
		if c.wantErr {
			require.Error(t, err, c.raw)
			assert.ErrorIs(t, err, ErrInvalidURL)
			continue
		}
		require.NoError(t, err, c.raw)
		assert.Equal(t, c.want, got)
	}
}

func TestHandle(t *testing.T) {
	assert.Equal(t, "alice_01", Handle("Alice @Alice_01 · 2h"))
	assert.Equal(t, "", Handle("no handle here"))
}

func TestNormalizeArticleURL(t *testing.T) {
	assert.Equal(t, "https://x.com/i/article/123", NormalizeArticleURL("/i/article/123?s=1"))
	assert.Equal(t, "https://x.com/i/article/123", NormalizeArticleURL("https://x.com/i/article/123/media/99"))
	assert.Equal(t, "", NormalizeArticleURL(""))
}

func TestNormalizeMediaURL(t *testing.T) {
	assert.Equal(t,
		"https://pbs.twimg.com/media/abc?format=jpg&name=orig",
		NormalizeMediaURL("https://pbs.twimg.com/media/abc?format=jpg&name=small"))
	assert.Equal(t,
		"https://pbs.twimg.com/ext_tw_video_thumb/1/pu/img/x.jpg",
		NormalizeMediaURL("https://pbs.twimg.com/ext_tw_video_thumb/1/pu/img/x.jpg"))
	assert.True(t, IsPostMedia("https://pbs.twimg.com/media/abc?format=png&name=orig"))
	assert.False(t, IsPostMedia("https://pbs.twimg.com/profile_images/1/a.jpg"))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ok", ErrorKind(nil))
	assert.Equal(t, "post_not_found", ErrorKind(fmt.Errorf("load: %w", ErrPostNotFound)))
	assert.Equal(t, "load_timeout", ErrorKind(fmt.Errorf("load: %w", ErrLoadTimeout)))
	assert.Equal(t, "error", ErrorKind(errors.New("boom")))
}

func TestThreadPosts(t *testing.T) {
	a := CaptureArtifact{
		Main:   Post{StatusID: "1", IsMain: true},
		Thread: []Post{{StatusID: "2"}, {StatusID: "3"}},
	}
	posts := a.ThreadPosts()
	require.Len(t, posts, 3)
	assert.Equal(t, "1", posts[0].StatusID)
	assert.True(t, posts[0].IsMain)
}
