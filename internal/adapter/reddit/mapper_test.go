package reddit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func child(t *testing.T, kind string, data map[string]any) rawChild {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return rawChild{Kind: kind, Data: raw}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		c    rawChild
		want itemKind
	}{
		{"t1 prefix", child(t, "t1", map[string]any{}), kindComment},
		{"t3 prefix", child(t, "t3", map[string]any{}), kindSubmission},
		{"comment shape", child(t, "", map[string]any{"body": "x", "link_id": "t3_a"}), kindComment},
		{"submission shape", child(t, "", map[string]any{"title": "x"}), kindSubmission},
		{"body without link is not a comment", child(t, "", map[string]any{"body": "x"}), kindUnknown},
		{"subreddit", child(t, "t5", map[string]any{"display_name": "golang"}), kindUnknown},
		{"garbage", rawChild{Data: json.RawMessage(`[1,2]`)}, kindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kindOf(tt.c))
		})
	}
}

func mediaSubmission(t *testing.T) savedItem {
	return decodeItem(child(t, "t3", map[string]any{
		"id":                     "m1",
		"name":                   "t3_m1",
		"title":                  "Cats &amp; dogs",
		"is_self":                false,
		"url":                    "https://i.redd.it/cat.jpg",
		"url_overridden_by_dest": "https://i.redd.it/cat.jpg",
		"permalink":              "/r/aww/comments/m1/cats/",
		"author":                 "[deleted]",
		"subreddit":              "aww",
		"created_utc":            1700000000.5,
		"thumbnail":              "https://b.thumbs.redditmedia.com/t.jpg",
		"preview": map[string]any{
			"images": []any{map[string]any{
				"source": map[string]any{"url": "https://preview.redd.it/cat.jpg?s=1&amp;w=2"},
				"resolutions": []any{
					map[string]any{"url": "https://b.thumbs.redditmedia.com/t.jpg"},
					map[string]any{"url": "https://preview.redd.it/cat.jpg?width=108"},
				},
			}},
		},
		"secure_media": map[string]any{
			"reddit_video": map[string]any{"fallback_url": "https://v.redd.it/x/DASH_720.mp4"},
		},
	}))
}

func TestMapSubmission_Media(t *testing.T) {
	p, err := mapItem(mediaSubmission(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://b.thumbs.redditmedia.com/t.jpg",
		"https://preview.redd.it/cat.jpg?s=1&w=2",
		"https://preview.redd.it/cat.jpg?width=108",
		"https://v.redd.it/x/DASH_720.mp4",
		"https://i.redd.it/cat.jpg",
	}, p.MediaURLs)
	assert.Equal(t, "Cats & dogs", p.Title)
	assert.Equal(t, "https://i.redd.it/cat.jpg", p.Content)
	assert.Empty(t, p.AuthorURL)
	assert.Equal(t, time.Unix(1700000000, 500_000_000).UTC(), p.SavedAt)
}

func TestMapSubmission_Gallery(t *testing.T) {
	item := decodeItem(child(t, "t3", map[string]any{
		"id":          "g1",
		"title":       "Gallery",
		"url":         "https://www.reddit.com/gallery/g1",
		"permalink":   "/r/pics/comments/g1/gallery/",
		"created_utc": 1700000000,
		"gallery_data": map[string]any{"items": []any{
			map[string]any{"media_id": "two"},
			map[string]any{"media_id": "one"},
			map[string]any{"media_id": "missing"},
		}},
		"media_metadata": map[string]any{
			"one": map[string]any{"status": "valid", "s": map[string]any{"u": "https://preview.redd.it/one.jpg"}},
			"two": map[string]any{"status": "valid", "s": map[string]any{"gif": "https://preview.redd.it/two.gif"}},
		},
	}))

	p, err := mapItem(item)
	require.NoError(t, err)
	assert.Equal(t, "t3_g1", p.PlatformPostID)
	assert.Equal(t, []string{"https://preview.redd.it/two.gif", "https://preview.redd.it/one.jpg"}, p.MediaURLs)
	assert.Equal(t, "https://www.reddit.com/gallery/g1", p.Content)
}

func TestMapItem_Idempotent(t *testing.T) {
	item := mediaSubmission(t)
	first, err := mapItem(item)
	require.NoError(t, err)
	second, err := mapItem(item)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	cm := decodeItem(child(t, "t1", map[string]any{
		"id": "c1", "body": "hi", "link_id": "t3_x", "created_utc": 1700000000,
		"link_url": "https://i.imgur.com/abc.png",
	}))
	a, err := mapItem(cm)
	require.NoError(t, err)
	b, err := mapItem(cm)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "t1_c1", a.PlatformPostID)
	assert.Equal(t, []string{"https://i.imgur.com/abc.png"}, a.MediaURLs)
	assert.Equal(t, "https://www.reddit.com/comments/c1/", a.URL)
}

func TestMapItem_Malformed(t *testing.T) {
	_, err := mapItem(decodeItem(child(t, "t3", map[string]any{"title": "no id", "created_utc": 1})))
	assert.Error(t, err)

	_, err = mapItem(decodeItem(child(t, "t3", map[string]any{"id": "x"})))
	assert.ErrorIs(t, err, errNoTimestamp)
}

func TestHasMediaExtension(t *testing.T) {
	assert.True(t, hasMediaExtension("https://i.imgur.com/a.GIFV"))
	assert.True(t, hasMediaExtension("https://example.com/v.mp4?x=1"))
	assert.False(t, hasMediaExtension("https://example.com/article.html"))
	assert.False(t, hasMediaExtension("/r/pics/a.jpg"))
}
