package reddit

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/savedsync/internal/post"
)

var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".gifv": true, ".webp": true, ".mp4": true,
}

// mapItem dispatches on the item kind. It is pure: the same item always
// yields the same Post.
func mapItem(it savedItem) (post.Post, error) {
	if it.err != nil {
		return post.Post{}, it.err
	}
	ts, err := it.createdAt()
	if err != nil {
		return post.Post{}, err
	}
	switch it.kind {
	case kindComment:
		return mapComment(*it.comment, ts)
	case kindSubmission:
		return mapSubmission(*it.submission, ts)
	}
	return post.Post{}, errors.New("unrecognized item")
}

func mapSubmission(s submission, savedAt time.Time) (post.Post, error) {
	id := fullname("t3", s.Name, s.ID)
	if id == "" {
		return post.Post{}, errors.New("submission without id")
	}

	dest := html.UnescapeString(firstNonEmpty(s.URLOverriddenByDest, s.URL))
	content := s.Selftext
	if !s.IsSelf && strings.TrimSpace(content) == "" {
		content = dest
	}

	var mediaURLs []string
	if isHTTP(s.Thumbnail) {
		mediaURLs = append(mediaURLs, html.UnescapeString(s.Thumbnail))
	}
	if s.Preview != nil {
		for _, img := range s.Preview.Images {
			mediaURLs = append(mediaURLs, html.UnescapeString(img.Source.URL))
			for _, r := range img.Resolutions {
				mediaURLs = append(mediaURLs, html.UnescapeString(r.URL))
			}
		}
	}
	for _, m := range []*media{s.Media, s.SecureMedia} {
		if m != nil && m.RedditVideo != nil {
			mediaURLs = append(mediaURLs, html.UnescapeString(m.RedditVideo.FallbackURL))
		}
	}
	if s.GalleryData != nil {
		for _, item := range s.GalleryData.Items {
			gm, ok := s.MediaMetadata[item.MediaID]
			if !ok {
				continue
			}
			mediaURLs = append(mediaURLs, html.UnescapeString(firstNonEmpty(gm.Source.URL, gm.Source.GIF, gm.Source.MP4)))
		}
	}
	if hasMediaExtension(dest) {
		mediaURLs = append(mediaURLs, dest)
	}

	return post.New(post.Fields{
		PlatformPostID: id,
		URL:            permalinkURL(s.Permalink, s.ID),
		Title:          html.UnescapeString(s.Title),
		Content:        content,
		AuthorName:     s.Author,
		AuthorURL:      authorURL(s.Author),
		MediaURLs:      mediaURLs,
		SavedAt:        savedAt,
		Metadata: map[string]any{
			"type":         kindSubmission.String(),
			"is_comment":   false,
			"subreddit":    s.Subreddit,
			"score":        s.Score,
			"num_comments": s.NumComments,
			"over_18":      s.Over18,
			"is_self":      s.IsSelf,
			"is_video":     s.IsVideo,
			"domain":       s.Domain,
			"post_hint":    s.PostHint,
		},
	})
}

func mapComment(c comment, savedAt time.Time) (post.Post, error) {
	id := fullname("t1", c.Name, c.ID)
	if id == "" {
		return post.Post{}, errors.New("comment without id")
	}

	var mediaURLs []string
	if link := html.UnescapeString(c.LinkURL); hasMediaExtension(link) {
		mediaURLs = append(mediaURLs, link)
	}

	return post.New(post.Fields{
		PlatformPostID: id,
		URL:            permalinkURL(c.Permalink, c.ID),
		Title:          html.UnescapeString(c.LinkTitle),
		Content:        c.Body,
		AuthorName:     c.Author,
		AuthorURL:      authorURL(c.Author),
		MediaURLs:      mediaURLs,
		SavedAt:        savedAt,
		Metadata: map[string]any{
			"type":           kindComment.String(),
			"is_comment":     true,
			"subreddit":      c.Subreddit,
			"score":          c.Score,
			"link_id":        c.LinkID,
			"link_title":     c.LinkTitle,
			"link_permalink": c.LinkPermalink,
		},
	})
}

func fullname(prefix, name, id string) string {
	if name != "" {
		return name
	}
	if id == "" {
		return ""
	}
	return prefix + "_" + id
}

func permalinkURL(permalink, id string) string {
	if permalink == "" {
		return fmt.Sprintf("%s/comments/%s/", redditWebURL, id)
	}
	if isHTTP(permalink) {
		return permalink
	}
	return redditWebURL + permalink
}

func authorURL(author string) string {
	if author == "" || author == "[deleted]" {
		return ""
	}
	return redditWebURL + "/user/" + url.PathEscape(author)
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func hasMediaExtension(raw string) bool {
	if !isHTTP(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return mediaExtensions[strings.ToLower(path.Ext(u.Path))]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
