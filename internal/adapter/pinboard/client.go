package pinboard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/savedsync/internal/adapter"
)

const (
	feedsURL     = "https://feeds.pinboard.in"
	userAgent    = "savedsync/1.0"
	maxErrorBody = 512
	maxFeedBytes = 16 << 20
)

// Client reads a user's private bookmark feed.
type Client struct {
	http     *http.Client
	baseURL  string
	username string
	secret   string
}

func newClient(creds adapter.Credentials, cfg adapter.Config) *Client {
	c := &Client{http: cfg.HTTPClient, baseURL: feedsURL}
	if cfg.BaseURL != "" {
		c.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	c.setCredentials(creds)
	return c
}

func (c *Client) setCredentials(creds adapter.Credentials) {
	c.username = creds[adapter.CredUsername]
	c.secret = creds[adapter.CredFeedToken]
}

func (c *Client) feedURL(count int) string {
	return fmt.Sprintf("%s/rss/secret:%s/u:%s/?count=%s",
		c.baseURL, url.PathEscape(c.secret), url.PathEscape(c.username), strconv.Itoa(count))
}

// Recent fetches and parses the newest count bookmarks. The body is read
// here rather than by gofeed so that HTTP statuses stay classifiable.
func (c *Client) Recent(ctx context.Context, count int) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL(count), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		status := resp.StatusCode
		// A bad feed secret is reported as forbidden.
		if status == http.StatusForbidden {
			status = http.StatusUnauthorized
		}
		return nil, &adapter.StatusError{
			StatusCode: status,
			Header:     resp.Header,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}
