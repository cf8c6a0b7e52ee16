package export

import (
	"encoding/json"
	"io"
	"time"
)

type jsonExport struct {
	Meta  jsonMeta   `json:"meta"`
	Posts []jsonPost `json:"posts"`
}

type jsonMeta struct {
	Count int    `json:"count"`
	Total int    `json:"total"`
	Since string `json:"since"`
}

type jsonPost struct {
	Platform       string         `json:"platform"`
	AccountID      string         `json:"account_id"`
	PlatformPostID string         `json:"platform_post_id"`
	URL            string         `json:"url"`
	Title          string         `json:"title,omitempty"`
	Content        string         `json:"content,omitempty"`
	AuthorName     string         `json:"author_name,omitempty"`
	AuthorURL      string         `json:"author_url,omitempty"`
	MediaURLs      []string       `json:"media_urls"`
	SavedAt        time.Time      `json:"saved_at"`
	SyncedAt       time.Time      `json:"synced_at"`
	Metadata       map[string]any `json:"metadata"`
}

// JSONFormatter formats posts as JSON.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes posts as JSON to w.
func (f *JSONFormatter) Format(w io.Writer, input Input) error {
	out := jsonExport{
		Meta: jsonMeta{
			Count: len(input.Records),
			Total: max(input.Total, len(input.Records)),
			Since: formatDuration(input.Since),
		},
		Posts: make([]jsonPost, 0, len(input.Records)),
	}
	for _, r := range input.Records {
		out.Posts = append(out.Posts, jsonPost{
			Platform:       r.Platform,
			AccountID:      r.AccountID,
			PlatformPostID: r.Post.PlatformPostID,
			URL:            r.Post.URL,
			Title:          r.Post.Title,
			Content:        r.Post.Content,
			AuthorName:     r.Post.AuthorName,
			AuthorURL:      r.Post.AuthorURL,
			MediaURLs:      r.Post.MediaURLs,
			SavedAt:        r.Post.SavedAt.UTC(),
			SyncedAt:       r.SyncedAt.UTC(),
			Metadata:       r.Post.Metadata,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
