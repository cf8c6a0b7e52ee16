package twitter

import (
	"errors"
	"time"
)

type bookmarksResponse struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []user      `json:"users"`
		Media []mediaItem `json:"media"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type tweet struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	AuthorID         string `json:"author_id"`
	CreatedAt        string `json:"created_at"`
	Lang             string `json:"lang"`
	ConversationID   string `json:"conversation_id"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
	Entities struct {
		Hashtags []struct {
			Tag string `json:"tag"`
		} `json:"hashtags"`
		URLs []struct {
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
	} `json:"entities"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type mediaItem struct {
	MediaKey        string    `json:"media_key"`
	Type            string    `json:"type"`
	URL             string    `json:"url"`
	PreviewImageURL string    `json:"preview_image_url"`
	Variants        []variant `json:"variants"`
}

type variant struct {
	BitRate     int    `json:"bit_rate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// bookmark is a tweet with its expansions resolved, so mapping needs
// nothing outside the value itself.
type bookmark struct {
	tweet  tweet
	author *user
	media  []mediaItem
}

var errNoTimestamp = errors.New("missing created_at")

func (b bookmark) createdAt() (time.Time, error) {
	if b.tweet.CreatedAt == "" {
		return time.Time{}, errNoTimestamp
	}
	t, err := time.Parse(time.RFC3339, b.tweet.CreatedAt)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// resolve joins each tweet with its author and media from includes.
func resolve(resp bookmarksResponse) []bookmark {
	users := make(map[string]*user, len(resp.Includes.Users))
	for i := range resp.Includes.Users {
		u := &resp.Includes.Users[i]
		users[u.ID] = u
	}
	media := make(map[string]mediaItem, len(resp.Includes.Media))
	for _, m := range resp.Includes.Media {
		media[m.MediaKey] = m
	}

	out := make([]bookmark, 0, len(resp.Data))
	for _, t := range resp.Data {
		b := bookmark{tweet: t, author: users[t.AuthorID]}
		for _, key := range t.Attachments.MediaKeys {
			if m, ok := media[key]; ok {
				b.media = append(b.media, m)
			}
		}
		out = append(out, b)
	}
	return out
}
