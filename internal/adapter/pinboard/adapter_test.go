package pinboard

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/savedsync/internal/adapter"
)

type bookmarkFixture struct {
	link, title, date, subject string
}

func rdfFeed(items ...bookmarkFixture) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns="http://purl.org/rss/1.0/"
  xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
  xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel rdf:about="https://pinboard.in">
<title>Pinboard (gopher)</title>
<link>https://pinboard.in/u:gopher/</link>
<description></description>
</channel>
`)
	for _, it := range items {
		fmt.Fprintf(&b, `<item rdf:about="%[1]s">
<title>%[2]s</title>
<dc:date>%[3]s</dc:date>
<link>%[1]s</link>
<dc:creator>gopher</dc:creator>
<description>notes on %[2]s</description>
<dc:subject>%[4]s</dc:subject>
</item>
`, it.link, it.title, it.date, it.subject)
	}
	b.WriteString(`</rdf:RDF>`)
	return b.String()
}

var fixture = []bookmarkFixture{
	{"https://go.dev/blog/", "Go Blog", "2024-03-03T12:00:00+00:00", "go blog"},
	{"https://pkg.go.dev/", "Packages", "2024-03-02T12:00:00+00:00", "go"},
	{"https://example.com/old", "Old", "2024-03-01T12:00:00+00:00", ""},
}

type fakeFeed struct {
	body   string
	status int
	calls  atomic.Int32
	path   atomic.Value
	count  atomic.Value
}

func (f *fakeFeed) serve(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	f.path.Store(r.URL.Path)
	f.count.Store(r.URL.Query().Get("count"))
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml")
	_, _ = w.Write([]byte(f.body))
}

func creds() adapter.Credentials {
	return adapter.Credentials{adapter.CredUsername: "gopher", adapter.CredFeedToken: "s3cr3t"}
}

func newTestAdapter(t *testing.T, f *fakeFeed) *Adapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	a, err := New(creds(), adapter.Config{
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
		RateLimit:  -1,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return a
}

func TestNew_MissingToken(t *testing.T) {
	_, err := New(adapter.Credentials{adapter.CredUsername: "gopher"}, adapter.Config{})
	assert.True(t, adapter.IsCode(err, adapter.CodeValidationFailed))
}

func TestFetchSavedPosts_Full(t *testing.T) {
	f := &fakeFeed{body: rdfFeed(fixture...)}
	a := newTestAdapter(t, f)

	posts, err := a.FetchSavedPosts(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, "/rss/secret:s3cr3t/u:gopher/", f.path.Load())
	assert.Equal(t, "400", f.count.Load())

	p := posts[0]
	assert.Equal(t, "https://go.dev/blog/", p.URL)
	assert.Equal(t, bookmarkID("https://go.dev/blog/"), p.PlatformPostID)
	assert.Equal(t, "Go Blog", p.Title)
	assert.Equal(t, "notes on Go Blog", p.Content)
	assert.Equal(t, "gopher", p.AuthorName)
	assert.Equal(t, "https://pinboard.in/u:gopher", p.AuthorURL)
	assert.Equal(t, time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC), p.SavedAt)
	assert.Equal(t, []string{"go", "blog"}, p.Metadata["hashtags"])
}

func TestFetchSavedPosts_Since(t *testing.T) {
	f := &fakeFeed{body: rdfFeed(fixture...)}
	a := newTestAdapter(t, f)

	posts, err := a.FetchSavedPosts(context.Background(), time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "https://go.dev/blog/", posts[0].URL)
}

func TestFetchSavedPosts_FullFeedIsTruncated(t *testing.T) {
	f := &fakeFeed{body: rdfFeed(fixture...)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	a, err := New(creds(), adapter.Config{
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
		RateLimit:  -1,
		PageSize:   3,
		MaxPages:   1,
	})
	require.NoError(t, err)

	posts, err := a.FetchSavedPosts(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, posts, 3)
	assert.Equal(t, "3", f.count.Load())
	assert.True(t, a.Truncated(), "a feed filled to count may hide older bookmarks")

	// Reaching the watermark inside a full feed means nothing was cut off.
	posts, err = a.FetchSavedPosts(context.Background(), time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.False(t, a.Truncated())
}

func TestFetchSavedPosts_ShortFeedIsComplete(t *testing.T) {
	f := &fakeFeed{body: rdfFeed(fixture...)}
	a := newTestAdapter(t, f)

	_, err := a.FetchSavedPosts(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.False(t, a.Truncated())
}

func TestFetchSavedPosts_Errors(t *testing.T) {
	tests := []struct {
		status int
		code   adapter.Code
		calls  int32
	}{
		{http.StatusForbidden, adapter.CodeAuthFailed, 1},
		{http.StatusTooManyRequests, adapter.CodeRateLimit, 3},
		{http.StatusBadGateway, adapter.CodeFetchFailed, 3},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f := &fakeFeed{status: tt.status}
			a := newTestAdapter(t, f)
			posts, err := a.FetchSavedPosts(context.Background(), time.Time{})
			assert.Nil(t, posts)
			assert.Equal(t, tt.code, adapter.CodeOf(err))
			assert.Equal(t, tt.calls, f.calls.Load())
		})
	}
}

func TestFetchSavedPosts_GarbageBody(t *testing.T) {
	f := &fakeFeed{body: "<html>not a feed"}
	a := newTestAdapter(t, f)
	_, err := a.FetchSavedPosts(context.Background(), time.Time{})
	assert.Equal(t, adapter.CodeFetchFailed, adapter.CodeOf(err))
}

func TestValidateCredentials(t *testing.T) {
	ok, err := newTestAdapter(t, &fakeFeed{body: rdfFeed(fixture[0])}).ValidateCredentials(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	f := &fakeFeed{status: http.StatusForbidden}
	ok, err = newTestAdapter(t, f).ValidateCredentials(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "1", f.count.Load())
}

func TestBookmarkID_Stable(t *testing.T) {
	a := bookmarkID("https://go.dev/")
	assert.Equal(t, a, bookmarkID("https://go.dev/"))
	assert.NotEqual(t, a, bookmarkID("https://go.dev"))
}
