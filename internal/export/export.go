// Package export renders stored posts for people and other tools.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/savedsync/internal/store"
)

// Input is the full input for a formatter.
type Input struct {
	Records []store.Record // newest saved first
	Total   int            // matching posts before any limit
	Since   time.Duration  // time window; zero means all time
}

// Formatter writes stored posts to w.
type Formatter interface {
	Format(w io.Writer, input Input) error
}

// New returns the formatter for format: terminal, markdown or json.
func New(format string, color bool) (Formatter, error) {
	switch format {
	case "terminal", "":
		return NewTerminal(color), nil
	case "markdown", "md":
		return NewMarkdown(), nil
	case "json":
		return NewJSON(), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want terminal, markdown or json)", format)
	}
}

// platformGroup is one platform's records in input order.
type platformGroup struct {
	Platform string
	Records  []store.Record
}

// groupByPlatform keeps platforms in order of first appearance.
func groupByPlatform(recs []store.Record) []platformGroup {
	var groups []platformGroup
	idx := map[string]int{}
	for _, r := range recs {
		i, ok := idx[r.Platform]
		if !ok {
			i = len(groups)
			idx[r.Platform] = i
			groups = append(groups, platformGroup{Platform: r.Platform})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}

// headline is the title, or the first line of content for untitled posts
// such as comments and tweets.
func headline(r store.Record) string {
	h := r.Post.Title
	if h == "" {
		h = r.Post.Content
		if i := strings.IndexByte(h, '\n'); i >= 0 {
			h = h[:i]
		}
	}
	return truncate(strings.TrimSpace(h), 100)
}

func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "…"
		}
		count++
	}
	return s
}

// hashtags reads the tag list adapters store under metadata.hashtags. After
// a round trip through the store it is []any.
func hashtags(r store.Record) []string {
	switch v := r.Post.Metadata["hashtags"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "all time"
	}
	hours := int(d.Hours())
	if hours >= 24 && hours%24 == 0 {
		return fmt.Sprintf("%dd", hours/24)
	}
	return fmt.Sprintf("%dh", hours)
}

func header(input Input) string {
	groups := groupByPlatform(input.Records)
	s := fmt.Sprintf("%d posts from %d platforms, %s", len(input.Records), len(groups), formatDuration(input.Since))
	if input.Total > len(input.Records) {
		s += fmt.Sprintf(" (showing newest %d of %d)", len(input.Records), input.Total)
	}
	return s
}
