package reddit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string     `json:"after"`
		Children []rawChild `json:"children"`
	} `json:"data"`
}

type rawChild struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type itemKind int

const (
	kindUnknown itemKind = iota
	kindComment
	kindSubmission
)

func (k itemKind) String() string {
	switch k {
	case kindComment:
		return "comment"
	case kindSubmission:
		return "submission"
	}
	return "unknown"
}

// kindOf classifies a listing child. The fullname prefix decides when
// present; otherwise the payload shape does.
func kindOf(c rawChild) itemKind {
	switch c.Kind {
	case "t1":
		return kindComment
	case "t3":
		return kindSubmission
	}

	var probe struct {
		Body   *string `json:"body"`
		LinkID *string `json:"link_id"`
		Title  *string `json:"title"`
	}
	if err := json.Unmarshal(c.Data, &probe); err != nil {
		return kindUnknown
	}
	switch {
	case probe.Body != nil && probe.LinkID != nil:
		return kindComment
	case probe.Title != nil:
		return kindSubmission
	}
	return kindUnknown
}

// savedItem is either a comment or a submission. Exactly one of the
// pointers is set when err is nil.
type savedItem struct {
	kind       itemKind
	comment    *comment
	submission *submission
	err        error
}

func decodeItem(c rawChild) savedItem {
	item := savedItem{kind: kindOf(c)}
	switch item.kind {
	case kindComment:
		var cm comment
		if err := json.Unmarshal(c.Data, &cm); err != nil {
			item.err = fmt.Errorf("decode comment: %w", err)
			return item
		}
		item.comment = &cm
	case kindSubmission:
		var s submission
		if err := json.Unmarshal(c.Data, &s); err != nil {
			item.err = fmt.Errorf("decode submission: %w", err)
			return item
		}
		item.submission = &s
	default:
		item.err = fmt.Errorf("unrecognized item kind %q", c.Kind)
	}
	return item
}

var errNoTimestamp = errors.New("missing created_utc")

func (it savedItem) createdAt() (time.Time, error) {
	if it.err != nil {
		return time.Time{}, it.err
	}
	var secs float64
	switch it.kind {
	case kindComment:
		secs = it.comment.CreatedUTC
	case kindSubmission:
		secs = it.submission.CreatedUTC
	}
	if secs <= 0 {
		return time.Time{}, errNoTimestamp
	}
	whole := int64(secs)
	frac := int64((secs - float64(whole)) * 1e9)
	return time.Unix(whole, frac).UTC(), nil
}

type submission struct {
	ID                  string                  `json:"id"`
	Name                string                  `json:"name"`
	Title               string                  `json:"title"`
	Selftext            string                  `json:"selftext"`
	URL                 string                  `json:"url"`
	URLOverriddenByDest string                  `json:"url_overridden_by_dest"`
	Permalink           string                  `json:"permalink"`
	Author              string                  `json:"author"`
	Subreddit           string                  `json:"subreddit"`
	Score               int                     `json:"score"`
	NumComments         int                     `json:"num_comments"`
	Over18              bool                    `json:"over_18"`
	IsSelf              bool                    `json:"is_self"`
	IsVideo             bool                    `json:"is_video"`
	Domain              string                  `json:"domain"`
	PostHint            string                  `json:"post_hint"`
	CreatedUTC          float64                 `json:"created_utc"`
	Thumbnail           string                  `json:"thumbnail"`
	Preview             *preview                `json:"preview"`
	Media               *media                  `json:"media"`
	SecureMedia         *media                  `json:"secure_media"`
	MediaMetadata       map[string]galleryMedia `json:"media_metadata"`
	GalleryData         *galleryData            `json:"gallery_data"`
}

type preview struct {
	Images []struct {
		Source      imageRef   `json:"source"`
		Resolutions []imageRef `json:"resolutions"`
	} `json:"images"`
}

type imageRef struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type media struct {
	RedditVideo *struct {
		FallbackURL string `json:"fallback_url"`
	} `json:"reddit_video"`
}

type galleryMedia struct {
	Status string `json:"status"`
	Source struct {
		URL string `json:"u"`
		GIF string `json:"gif"`
		MP4 string `json:"mp4"`
	} `json:"s"`
}

type galleryData struct {
	Items []struct {
		MediaID string `json:"media_id"`
	} `json:"items"`
}

type comment struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Body          string  `json:"body"`
	Permalink     string  `json:"permalink"`
	Author        string  `json:"author"`
	Subreddit     string  `json:"subreddit"`
	Score         int     `json:"score"`
	CreatedUTC    float64 `json:"created_utc"`
	LinkID        string  `json:"link_id"`
	LinkTitle     string  `json:"link_title"`
	LinkPermalink string  `json:"link_permalink"`
	LinkURL       string  `json:"link_url"`
}
