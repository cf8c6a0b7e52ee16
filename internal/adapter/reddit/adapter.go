// Package reddit implements the adapter for a Reddit user's saved posts and
// comments.
package reddit

import (
	"context"
	"time"

	"github.com/ppiankov/savedsync/internal/adapter"
	"github.com/ppiankov/savedsync/internal/post"
)

const (
	// Platform is the registry identifier.
	Platform = "reddit"

	redditRateLimit = 1 * time.Second
	maxPageSize     = 100
)

var requiredCredentials = []string{
	adapter.CredClientID,
	adapter.CredClientSecret,
	adapter.CredUsername,
	adapter.CredPassword,
}

// Metadata describes the adapter for the registry.
var Metadata = adapter.Metadata{
	Platform:    Platform,
	DisplayName: "Reddit",
	Description: "Saved posts and comments via the Reddit OAuth API (script app, password grant).",
	AuthTypes:   []adapter.AuthType{adapter.AuthOAuth2, adapter.AuthUsernamePassword},
	New: func(creds adapter.Credentials, cfg adapter.Config) (adapter.Adapter, error) {
		a, err := New(creds, cfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	},
}

// Adapter fetches saved items for one Reddit account.
type Adapter struct {
	adapter.Base
	client *Client
	creds  adapter.Credentials
}

// New validates credentials and builds the adapter without network access.
func New(creds adapter.Credentials, cfg adapter.Config) (*Adapter, error) {
	base := adapter.NewBase(Platform, cfg, redditRateLimit)
	if err := base.ValidateRequiredCredentials(creds, requiredCredentials...); err != nil {
		return nil, err
	}
	creds = creds.Clone()
	return &Adapter{
		Base:   base,
		client: newClient(creds, base.Settings()),
		creds:  creds,
	}, nil
}

func (a *Adapter) SupportedAuthTypes() []adapter.AuthType {
	return []adapter.AuthType{adapter.AuthOAuth2, adapter.AuthUsernamePassword}
}

func (a *Adapter) Authenticate(ctx context.Context, creds adapter.Credentials) error {
	if err := a.ValidateRequiredCredentials(creds, requiredCredentials...); err != nil {
		return err
	}
	a.creds = creds.Clone()
	a.client.setCredentials(a.creds)
	return a.Retry(ctx, "authenticate", a.client.Authenticate)
}

func (a *Adapter) FetchSavedPosts(ctx context.Context, since time.Time) ([]post.Post, error) {
	return adapter.FetchPages[savedItem](ctx, &a.Base, savedSource{client: a.client}, since)
}

func (a *Adapter) ValidateCredentials(ctx context.Context) (bool, error) {
	err := a.Retry(ctx, "validate credentials", func(ctx context.Context) error {
		_, err := a.client.Me(ctx)
		return err
	})
	if err == nil {
		return true, nil
	}
	if adapter.IsCode(err, adapter.CodeAuthFailed) {
		return false, nil
	}
	return false, err
}

func (a *Adapter) CurrentCredentials() adapter.Credentials {
	out := a.creds.Clone()
	if a.client.token != "" {
		out[adapter.CredAccessToken] = a.client.token
		out[adapter.CredExpiresAt] = a.client.expiresAt.UTC().Format(time.RFC3339)
	}
	return out
}

type savedSource struct {
	client *Client
}

func (s savedSource) ListPage(ctx context.Context, pageSize int, cursor string) (adapter.Page[savedItem], error) {
	l, err := s.client.ListSaved(ctx, min(pageSize, maxPageSize), cursor)
	if err != nil {
		return adapter.Page[savedItem]{}, err
	}
	items := make([]savedItem, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		items = append(items, decodeItem(child))
	}
	return adapter.Page[savedItem]{Items: items, NextCursor: l.Data.After}, nil
}

// CreationStamped: the saved listing is in save order but items only carry
// created_utc. Reddit keeps at most 1000 saved items, so walking all of them
// stays within ten pages.
func (savedSource) CreationStamped() {}

func (s savedSource) Timestamp(it savedItem) (time.Time, error) {
	return it.createdAt()
}

func (s savedSource) MapToPost(it savedItem) (post.Post, error) {
	return mapItem(it)
}
