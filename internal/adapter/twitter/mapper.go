package twitter

import (
	"errors"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/savedsync/internal/post"
)

const maxTitleRunes = 100

func mapBookmark(b bookmark) (post.Post, error) {
	t := b.tweet
	if t.ID == "" {
		return post.Post{}, errors.New("tweet without id")
	}
	savedAt, err := b.createdAt()
	if err != nil {
		return post.Post{}, err
	}

	handle := "i"
	var authorName, authorURL string
	if b.author != nil && b.author.Username != "" {
		handle = b.author.Username
		authorName = b.author.Username
		authorURL = xWebURL + "/" + b.author.Username
	}

	var mediaURLs []string
	for _, m := range b.media {
		switch m.Type {
		case "photo":
			mediaURLs = append(mediaURLs, m.URL)
		case "video", "animated_gif":
			mediaURLs = append(mediaURLs, m.PreviewImageURL, bestVariant(m.Variants))
		}
	}

	hashtags := make([]string, 0, len(t.Entities.Hashtags))
	for _, h := range t.Entities.Hashtags {
		hashtags = append(hashtags, h.Tag)
	}

	text := html.UnescapeString(t.Text)
	return post.New(post.Fields{
		PlatformPostID: t.ID,
		URL:            xWebURL + "/" + handle + "/status/" + t.ID,
		Title:          title(text),
		Content:        text,
		AuthorName:     authorName,
		AuthorURL:      authorURL,
		MediaURLs:      mediaURLs,
		SavedAt:        savedAt,
		Metadata: map[string]any{
			"lang":            t.Lang,
			"hashtags":        hashtags,
			"is_retweet":      referenced(t, "retweeted"),
			"is_quote":        referenced(t, "quoted"),
			"is_reply":        referenced(t, "replied_to"),
			"like_count":      t.PublicMetrics.LikeCount,
			"retweet_count":   t.PublicMetrics.RetweetCount,
			"reply_count":     t.PublicMetrics.ReplyCount,
			"quote_count":     t.PublicMetrics.QuoteCount,
			"author_id":       t.AuthorID,
			"conversation_id": t.ConversationID,
		},
	})
}

// bestVariant picks the highest bitrate mp4. Streaming playlists carry no
// bitrate and are never chosen.
func bestVariant(vs []variant) string {
	best, rate := "", -1
	for _, v := range vs {
		if v.ContentType != "video/mp4" || v.URL == "" {
			continue
		}
		if v.BitRate > rate {
			best, rate = v.URL, v.BitRate
		}
	}
	return best
}

func referenced(t tweet, kind string) bool {
	for _, r := range t.ReferencedTweets {
		if r.Type == kind {
			return true
		}
	}
	return false
}

// title is the first line of the text, cut at maxTitleRunes.
func title(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	r := []rune(line)
	return string(r[:maxTitleRunes-1]) + "…"
}
