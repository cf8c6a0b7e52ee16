package twitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAndMap_Media(t *testing.T) {
	resp := bookmarksResponse{}
	resp.Data = []tweet{{
		ID:        "100",
		Text:      "cats &amp; dogs\nsecond line",
		AuthorID:  "7",
		CreatedAt: "2024-03-01T12:00:00.000Z",
		Lang:      "en",
	}}
	resp.Data[0].Attachments.MediaKeys = []string{"3_1", "7_2", "missing"}
	resp.Data[0].Entities.Hashtags = append(resp.Data[0].Entities.Hashtags, struct {
		Tag string `json:"tag"`
	}{Tag: "golang"})
	resp.Data[0].ReferencedTweets = append(resp.Data[0].ReferencedTweets, struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}{Type: "quoted", ID: "99"})
	resp.Includes.Users = []user{{ID: "7", Username: "rob"}}
	resp.Includes.Media = []mediaItem{
		{MediaKey: "3_1", Type: "photo", URL: "https://pbs.twimg.com/media/a.jpg"},
		{MediaKey: "7_2", Type: "video", PreviewImageURL: "https://pbs.twimg.com/thumb/b.jpg", Variants: []variant{
			{ContentType: "application/x-mpegURL", URL: "https://video.twimg.com/b.m3u8"},
			{ContentType: "video/mp4", BitRate: 832000, URL: "https://video.twimg.com/b-832.mp4"},
			{ContentType: "video/mp4", BitRate: 2176000, URL: "https://video.twimg.com/b-2176.mp4"},
		}},
	}

	items := resolve(resp)
	require.Len(t, items, 1)
	p, err := mapBookmark(items[0])
	require.NoError(t, err)

	assert.Equal(t, "https://x.com/rob/status/100", p.URL)
	assert.Equal(t, "https://x.com/rob", p.AuthorURL)
	assert.Equal(t, "cats & dogs", p.Title)
	assert.Equal(t, "cats & dogs\nsecond line", p.Content)
	assert.Equal(t, []string{
		"https://pbs.twimg.com/media/a.jpg",
		"https://pbs.twimg.com/thumb/b.jpg",
		"https://video.twimg.com/b-2176.mp4",
	}, p.MediaURLs)
	assert.Equal(t, []string{"golang"}, p.Metadata["hashtags"])
	assert.Equal(t, true, p.Metadata["is_quote"])
	assert.Equal(t, false, p.Metadata["is_retweet"])
	assert.Equal(t, "2024-03-01T12:00:00Z", p.SavedAt.Format("2006-01-02T15:04:05Z07:00"))
}

func TestMapBookmark_UnknownAuthor(t *testing.T) {
	p, err := mapBookmark(bookmark{tweet: tweet{ID: "5", CreatedAt: "2024-03-01T12:00:00Z"}})
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/i/status/5", p.URL)
	assert.Empty(t, p.AuthorName)
	assert.Empty(t, p.MediaURLs)
}

func TestMapBookmark_Malformed(t *testing.T) {
	_, err := mapBookmark(bookmark{tweet: tweet{CreatedAt: "2024-03-01T12:00:00Z"}})
	assert.Error(t, err)

	_, err = mapBookmark(bookmark{tweet: tweet{ID: "5"}})
	assert.ErrorIs(t, err, errNoTimestamp)

	_, err = mapBookmark(bookmark{tweet: tweet{ID: "5", CreatedAt: "yesterday"}})
	assert.Error(t, err)
}

func TestTitle_Truncates(t *testing.T) {
	long := strings.Repeat("é", 150)
	got := title(long)
	assert.Equal(t, maxTitleRunes, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestBestVariant_NoMP4(t *testing.T) {
	assert.Empty(t, bestVariant([]variant{{ContentType: "application/x-mpegURL", URL: "x"}}))
}
