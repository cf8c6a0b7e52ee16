package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/savedsync/internal/store"
)

// TerminalFormatter formats posts for terminal output.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

// Format writes posts to w grouped by platform.
func (f *TerminalFormatter) Format(w io.Writer, input Input) error {
	if len(input.Records) == 0 {
		fmt.Fprintln(w, "No posts found. Run 'savedsync sync' first.")
		return nil
	}

	fmt.Fprintln(w, f.bold("savedsync: "+header(input)))
	fmt.Fprintln(w)

	for _, g := range groupByPlatform(input.Records) {
		fmt.Fprintln(w, f.green(f.bold(fmt.Sprintf("--- %s (%d) ---", g.Platform, len(g.Records)))))
		fmt.Fprintln(w)
		for _, r := range g.Records {
			f.writeItem(w, r)
		}
	}
	return nil
}

func (f *TerminalFormatter) writeItem(w io.Writer, r store.Record) {
	by := ""
	if r.Post.AuthorName != "" {
		by = " by " + r.Post.AuthorName
	}
	tags := ""
	if t := hashtags(r); len(t) > 0 {
		tags = " [" + strings.Join(t, ", ") + "]"
	}

	fmt.Fprintf(w, "  %s %s\n", f.dim(r.Post.SavedAt.UTC().Format("2006-01-02 15:04")), headline(r))
	fmt.Fprintf(w, "      %s\n", f.dim(r.AccountID+by+tags))
	fmt.Fprintf(w, "      %s\n", f.dim(r.Post.URL))
	if n := len(r.Post.MediaURLs); n > 0 {
		fmt.Fprintf(w, "      %s\n", f.yellow(fmt.Sprintf("%d media", n)))
	}
	fmt.Fprintln(w)
}

// ANSI helpers, no-op when color=false.

func (f *TerminalFormatter) bold(s string) string {
	if !f.color {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func (f *TerminalFormatter) green(s string) string {
	if !f.color {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func (f *TerminalFormatter) yellow(s string) string {
	if !f.color {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

func (f *TerminalFormatter) dim(s string) string {
	if !f.color {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}
