package privacy

import (
	"fmt"
	"regexp"

	"github.com/ppiankov/savedsync/internal/post"
)

const redactedPlaceholder = "[REDACTED]"

// Compile compiles a list of regex pattern strings into compiled regexps.
// Returns an error if any pattern is invalid.
func Compile(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Apply replaces all matches of the compiled patterns in text with [REDACTED].
func Apply(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		text = re.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// Redactor scrubs post text before it is persisted. A nil Redactor or one
// without patterns leaves posts untouched.
type Redactor struct {
	patterns []*regexp.Regexp
}

func NewRedactor(enabled bool, patterns []string) (*Redactor, error) {
	if !enabled {
		return &Redactor{}, nil
	}
	compiled, err := Compile(patterns)
	if err != nil {
		return nil, err
	}
	return &Redactor{patterns: compiled}, nil
}

// Post returns p with title and content redacted. Identity fields and URLs
// are never changed.
func (r *Redactor) Post(p post.Post) post.Post {
	if r == nil || len(r.patterns) == 0 {
		return p
	}
	p.Title = Apply(p.Title, r.patterns)
	p.Content = Apply(p.Content, r.patterns)
	return p
}

// Posts redacts every post in place and returns the slice.
func (r *Redactor) Posts(posts []post.Post) []post.Post {
	for i := range posts {
		posts[i] = r.Post(posts[i])
	}
	return posts
}
