package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/savedsync/internal/store"
)

// MarkdownFormatter formats posts as a Markdown reading list.
type MarkdownFormatter struct{}

// NewMarkdown creates a Markdown formatter.
func NewMarkdown() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format writes posts as Markdown to w.
func (f *MarkdownFormatter) Format(w io.Writer, input Input) error {
	fmt.Fprintf(w, "# Saved posts\n\n")
	fmt.Fprintf(w, "%s\n\n", header(input))

	if len(input.Records) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}

	for _, g := range groupByPlatform(input.Records) {
		fmt.Fprintf(w, "## %s (%d)\n\n", g.Platform, len(g.Records))
		for _, r := range g.Records {
			f.writeItem(w, r)
		}
	}
	return nil
}

func (f *MarkdownFormatter) writeItem(w io.Writer, r store.Record) {
	fmt.Fprintf(w, "### [%s](%s)\n\n", escape(headline(r)), r.Post.URL)

	meta := "Saved " + r.Post.SavedAt.UTC().Format("2006-01-02")
	if r.Post.AuthorName != "" {
		if r.Post.AuthorURL != "" {
			meta += fmt.Sprintf(" by [%s](%s)", escape(r.Post.AuthorName), r.Post.AuthorURL)
		} else {
			meta += " by " + escape(r.Post.AuthorName)
		}
	}
	fmt.Fprintf(w, "*%s*\n\n", meta)

	if tags := hashtags(r); len(tags) > 0 {
		parts := make([]string, len(tags))
		for i, t := range tags {
			parts[i] = "`" + t + "`"
		}
		fmt.Fprintf(w, "Tags: %s\n\n", strings.Join(parts, " "))
	}

	if r.Post.Title != "" && r.Post.Content != "" && !isBareURL(r.Post.Content) {
		for _, line := range strings.Split(truncate(r.Post.Content, 500), "\n") {
			fmt.Fprintf(w, "> %s\n", line)
		}
		fmt.Fprintln(w)
	}

	for _, m := range r.Post.MediaURLs {
		fmt.Fprintf(w, "- %s\n", m)
	}
	if len(r.Post.MediaURLs) > 0 {
		fmt.Fprintln(w)
	}
}

// isBareURL reports content that is only a link, as for link submissions.
func isBareURL(s string) bool {
	s = strings.TrimSpace(s)
	return (strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")) && !strings.ContainsAny(s, " \n\t")
}

var mdEscaper = strings.NewReplacer("[", `\[`, "]", `\]`, "*", `\*`, "_", `\_`, "`", "\\`")

func escape(s string) string {
	return mdEscaper.Replace(s)
}
