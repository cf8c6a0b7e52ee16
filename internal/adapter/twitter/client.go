package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/savedsync/internal/adapter"
)

const (
	xAPIURL      = "https://api.x.com"
	xTokenPath   = "/2/oauth2/token"
	xWebURL      = "https://x.com"
	userAgent    = "savedsync/1.0"
	maxErrorBody = 512
)

const (
	tweetFields = "created_at,author_id,lang,entities,attachments,public_metrics,referenced_tweets,conversation_id"
	userFields  = "username,name"
	mediaFields = "type,url,preview_image_url,variants"
	expansions  = "author_id,attachments.media_keys"
)

// Client calls the X API v2 for one account. It holds either a fixed bearer
// token or a refreshable OAuth2 user token.
type Client struct {
	http    *http.Client
	authURL string
	baseURL string

	clientID     string
	clientSecret string
	refreshToken string
	userAgent    string

	token     string
	expiresAt time.Time
	userID    string
	now       func() time.Time
}

func newClient(creds adapter.Credentials, cfg adapter.Config) *Client {
	c := &Client{
		http:    cfg.HTTPClient,
		baseURL: xAPIURL,
		now:     time.Now,
	}
	if cfg.BaseURL != "" {
		c.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	c.authURL = c.baseURL + xTokenPath
	if cfg.AuthURL != "" {
		c.authURL = cfg.AuthURL
	}
	c.setCredentials(creds)
	return c
}

func (c *Client) setCredentials(creds adapter.Credentials) {
	c.clientID = creds[adapter.CredClientID]
	c.clientSecret = creds[adapter.CredClientSecret]
	c.refreshToken = creds[adapter.CredRefreshToken]
	c.userAgent = creds[adapter.CredUserAgent]
	if c.userAgent == "" {
		c.userAgent = userAgent
	}
	c.token = creds[adapter.CredAccessToken]
	c.expiresAt = creds.ExpiresAt()
	c.userID = creds[adapter.CredUserID]
}

func (c *Client) canRefresh() bool {
	return c.clientID != "" && c.refreshToken != ""
}

// IsTokenValid reports whether the current token can be used as is. A bearer
// token without a known expiry is trusted until the API rejects it.
func (c *Client) IsTokenValid() bool {
	if c.token == "" {
		return false
	}
	if c.expiresAt.IsZero() {
		return !c.canRefresh()
	}
	return c.now().Add(adapter.TokenExpiryMargin).Before(c.expiresAt)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// Refresh exchanges the refresh token for a new access token. X rotates
// refresh tokens, so the returned one replaces the old.
func (c *Client) Refresh(ctx context.Context) error {
	if !c.canRefresh() {
		return &adapter.StatusError{StatusCode: http.StatusUnauthorized, Body: "no refresh token"}
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.refreshToken},
		"client_id":     {c.clientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	if c.clientSecret != "" {
		req.SetBasicAuth(c.clientID, c.clientSecret)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok tokenResponse
	if err := c.do(req, &tok); err != nil {
		return err
	}
	if tok.AccessToken == "" {
		return &adapter.StatusError{StatusCode: http.StatusUnauthorized, Body: "empty access token"}
	}

	c.token = tok.AccessToken
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	c.expiresAt = time.Time{}
	if tok.ExpiresIn > 0 {
		c.expiresAt = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	if c.IsTokenValid() {
		return nil
	}
	if c.canRefresh() {
		return c.Refresh(ctx)
	}
	if c.token != "" {
		return nil
	}
	return &adapter.StatusError{StatusCode: http.StatusUnauthorized, Body: "no access token"}
}

type meResponse struct {
	Data user `json:"data"`
}

// Me resolves the authenticated user and remembers its id.
func (c *Client) Me(ctx context.Context) (user, error) {
	q := url.Values{"user.fields": {userFields}}
	var resp meResponse
	if err := c.get(ctx, c.baseURL+"/2/users/me?"+q.Encode(), &resp); err != nil {
		return user{}, err
	}
	if resp.Data.ID == "" {
		return user{}, errors.New("users/me returned no id")
	}
	c.userID = resp.Data.ID
	return resp.Data, nil
}

// ListBookmarks fetches one page of bookmarks for the resolved user.
func (c *Client) ListBookmarks(ctx context.Context, limit int, paginationToken string) (bookmarksResponse, error) {
	if c.userID == "" {
		if _, err := c.Me(ctx); err != nil {
			return bookmarksResponse{}, err
		}
	}
	q := url.Values{
		"max_results":  {strconv.Itoa(limit)},
		"expansions":   {expansions},
		"tweet.fields": {tweetFields},
		"user.fields":  {userFields},
		"media.fields": {mediaFields},
	}
	if paginationToken != "" {
		q.Set("pagination_token", paginationToken)
	}
	endpoint := fmt.Sprintf("%s/2/users/%s/bookmarks?%s", c.baseURL, url.PathEscape(c.userID), q.Encode())

	var resp bookmarksResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return bookmarksResponse{}, err
	}
	return resp, nil
}

// get issues an authorized GET. A 401 on a token the client did not just
// refresh triggers one refresh and a single repeat, when refreshing is
// possible at all.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	fresh := !c.IsTokenValid()
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	err := c.getOnce(ctx, endpoint, out)
	var se *adapter.StatusError
	if fresh || !c.canRefresh() || !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		return err
	}

	if err := c.Refresh(ctx); err != nil {
		return err
	}
	return c.getOnce(ctx, endpoint, out)
}

func (c *Client) getOnce(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &adapter.StatusError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
