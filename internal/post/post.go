// Package post defines the platform-agnostic record for one saved item.
package post

import (
	"errors"
	"strings"
	"time"
)

// Post is one saved/bookmarked item normalized from a platform listing.
// (platform, PlatformPostID, account) identifies a bookmark; adapters keep
// PlatformPostID stable across re-fetches.
type Post struct {
	PlatformPostID string         // immutable item id on the platform
	URL            string         // link to the item on the platform
	Title          string         // optional
	Content        string         // body text, or the destination URL for link posts
	AuthorName     string         // empty when the platform reports a deleted author
	AuthorURL      string         // author profile link
	MediaURLs      []string       // deduplicated, first-seen order
	SavedAt        time.Time      // save/create instant, always UTC
	Metadata       map[string]any // platform-specific facts
}

// Fields is the input to New.
type Fields struct {
	PlatformPostID string
	URL            string
	Title          string
	Content        string
	AuthorName     string
	AuthorURL      string
	MediaURLs      []string
	SavedAt        time.Time
	Metadata       map[string]any
}

var (
	ErrMissingID      = errors.New("platform post id is required")
	ErrMissingURL     = errors.New("url is required")
	ErrMissingSavedAt = errors.New("saved_at is required")
)

// New builds a Post, enforcing required fields and defaulting MediaURLs and
// Metadata to empty values.
func New(f Fields) (Post, error) {
	if strings.TrimSpace(f.PlatformPostID) == "" {
		return Post{}, ErrMissingID
	}
	if strings.TrimSpace(f.URL) == "" {
		return Post{}, ErrMissingURL
	}
	if f.SavedAt.IsZero() {
		return Post{}, ErrMissingSavedAt
	}

	meta := f.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	return Post{
		PlatformPostID: f.PlatformPostID,
		URL:            f.URL,
		Title:          f.Title,
		Content:        f.Content,
		AuthorName:     f.AuthorName,
		AuthorURL:      f.AuthorURL,
		MediaURLs:      DedupeURLs(f.MediaURLs),
		SavedAt:        f.SavedAt.UTC(),
		Metadata:       meta,
	}, nil
}

// DedupeURLs drops empty and repeated entries by exact string match,
// preserving first-seen order. The result is never nil.
func DedupeURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
