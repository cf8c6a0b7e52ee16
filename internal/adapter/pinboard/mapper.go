package pinboard

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/savedsync/internal/post"
)

const profileURL = "https://pinboard.in/u:"

var errNoTimestamp = errors.New("bookmark without date")

func itemTime(item *gofeed.Item) (time.Time, error) {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC(), nil
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC(), nil
	}
	return time.Time{}, errNoTimestamp
}

// bookmarkID is stable per link because Pinboard stores each URL at most
// once per user.
func bookmarkID(link string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String()
}

// tags flattens categories. Pinboard emits all tags space separated in a
// single dc:subject.
func tags(item *gofeed.Item) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, c := range item.Categories {
		for _, t := range strings.Fields(c) {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func mapItem(item *gofeed.Item, fallbackAuthor string) (post.Post, error) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		return post.Post{}, errors.New("bookmark without link")
	}
	savedAt, err := itemTime(item)
	if err != nil {
		return post.Post{}, err
	}

	author := fallbackAuthor
	if item.Author != nil && item.Author.Name != "" {
		author = item.Author.Name
	}
	var authorURL string
	if author != "" {
		authorURL = profileURL + author
	}

	return post.New(post.Fields{
		PlatformPostID: bookmarkID(link),
		URL:            link,
		Title:          strings.TrimSpace(item.Title),
		Content:        strings.TrimSpace(item.Description),
		AuthorName:     author,
		AuthorURL:      authorURL,
		SavedAt:        savedAt,
		Metadata: map[string]any{
			"hashtags": tags(item),
		},
	})
}
