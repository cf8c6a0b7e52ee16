package reddit

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
	redditAuthURL = "https://www.reddit.com/api/v1/access_token"
	redditAPIURL  = "https://oauth.reddit.com"
	redditWebURL  = "https://www.reddit.com"
	maxErrorBody  = 512
)

// Client talks to the Reddit OAuth API for one account and owns its token.
type Client struct {
	http    *http.Client
	authURL string
	baseURL string

	clientID     string
	clientSecret string
	username     string
	password     string
	userAgent    string

	token     string
	expiresAt time.Time
	now       func() time.Time
}

func newClient(creds adapter.Credentials, cfg adapter.Config) *Client {
	c := &Client{
		http:    cfg.HTTPClient,
		authURL: redditAuthURL,
		baseURL: redditAPIURL,
		now:     time.Now,
	}
	if cfg.AuthURL != "" {
		c.authURL = cfg.AuthURL
	}
	if cfg.BaseURL != "" {
		c.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	c.setCredentials(creds)
	return c
}

func (c *Client) setCredentials(creds adapter.Credentials) {
	c.clientID = creds[adapter.CredClientID]
	c.clientSecret = creds[adapter.CredClientSecret]
	c.username = creds[adapter.CredUsername]
	c.password = creds[adapter.CredPassword]
	c.userAgent = creds[adapter.CredUserAgent]
	if c.userAgent == "" {
		c.userAgent = fmt.Sprintf("savedsync/1.0 (by /u/%s)", c.username)
	}
	c.token = creds[adapter.CredAccessToken]
	c.expiresAt = creds.ExpiresAt()
}

// IsTokenValid is true only when a token exists and outlives the safety margin.
func (c *Client) IsTokenValid() bool {
	return c.token != "" && c.now().Add(adapter.TokenExpiryMargin).Before(c.expiresAt)
}

type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   float64 `json:"expires_in"`
	Scope       string  `json:"scope"`
	Error       string  `json:"error"`
}

// Authenticate exchanges the app and user credentials for a bearer token
// using the password grant.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.username},
		"password":   {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok tokenResponse
	if err := c.do(req, &tok); err != nil {
		return err
	}
	// Reddit answers a wrong password with 200 and an error field.
	if tok.Error != "" || tok.AccessToken == "" {
		reason := tok.Error
		if reason == "" {
			reason = "empty access token"
		}
		return &adapter.StatusError{StatusCode: http.StatusUnauthorized, Body: reason}
	}

	c.token = tok.AccessToken
	c.expiresAt = c.now().Add(time.Duration(tok.ExpiresIn * float64(time.Second)))
	return nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	if c.IsTokenValid() {
		return nil
	}
	return c.Authenticate(ctx)
}

// ListSaved fetches one page of the user's saved listing.
func (c *Client) ListSaved(ctx context.Context, limit int, after string) (listing, error) {
	q := url.Values{
		"limit":    {strconv.Itoa(limit)},
		"raw_json": {"1"},
	}
	if after != "" {
		q.Set("after", after)
	}
	endpoint := fmt.Sprintf("%s/user/%s/saved?%s", c.baseURL, url.PathEscape(c.username), q.Encode())

	var l listing
	if err := c.get(ctx, endpoint, &l); err != nil {
		return listing{}, err
	}
	return l, nil
}

type identity struct {
	Name string `json:"name"`
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (identity, error) {
	var id identity
	if err := c.get(ctx, c.baseURL+"/api/v1/me", &id); err != nil {
		return identity{}, err
	}
	return id, nil
}

// get issues an authorized GET. A 401 on a token the client did not just
// obtain triggers one fresh password grant and a single repeat.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	fresh := !c.IsTokenValid()
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	err := c.getOnce(ctx, endpoint, out)
	var se *adapter.StatusError
	if fresh || !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		return err
	}

	c.token = ""
	if err := c.Authenticate(ctx); err != nil {
		return err
	}
	return c.getOnce(ctx, endpoint, out)
}

func (c *Client) getOnce(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+c.token)
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
