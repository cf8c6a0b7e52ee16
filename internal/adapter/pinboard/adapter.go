// Package pinboard implements the adapter for Pinboard bookmarks, read from
// the account's private RSS feed.
package pinboard

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/savedsync/internal/adapter"
	"github.com/ppiankov/savedsync/internal/post"
)

const (
	// Platform is the registry identifier.
	Platform = "pinboard"

	pinboardRateLimit = 3 * time.Second
	// The feed serves at most this many items per request and has no
	// paging, so a first sync of a larger account keeps the newest 400.
	maxFeedCount = 400
)

var requiredCredentials = []string{adapter.CredUsername, adapter.CredFeedToken}

var Metadata = adapter.Metadata{
	Platform:    Platform,
	DisplayName: "Pinboard",
	Description: "Newest 400 bookmarks from the private Pinboard RSS feed, addressed by the feed token.",
	AuthTypes:   []adapter.AuthType{adapter.AuthAPIToken},
	New: func(creds adapter.Credentials, cfg adapter.Config) (adapter.Adapter, error) {
		a, err := New(creds, cfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	},
}

type Adapter struct {
	adapter.Base
	client *Client
	creds  adapter.Credentials
}

func New(creds adapter.Credentials, cfg adapter.Config) (*Adapter, error) {
	base := adapter.NewBase(Platform, cfg, pinboardRateLimit)
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
	return []adapter.AuthType{adapter.AuthAPIToken}
}

// Authenticate only stores the feed token. The feed has no session to open.
func (a *Adapter) Authenticate(_ context.Context, creds adapter.Credentials) error {
	if err := a.ValidateRequiredCredentials(creds, requiredCredentials...); err != nil {
		return err
	}
	a.creds = creds.Clone()
	a.client.setCredentials(a.creds)
	return nil
}

func (a *Adapter) FetchSavedPosts(ctx context.Context, since time.Time) ([]post.Post, error) {
	cfg := a.Settings()
	count := min(cfg.PageSize*cfg.MaxPages, maxFeedCount)
	src := feedSource{client: a.client, count: count, username: a.creds[adapter.CredUsername]}
	return adapter.FetchPages[*gofeed.Item](ctx, &a.Base, src, since)
}

func (a *Adapter) ValidateCredentials(ctx context.Context) (bool, error) {
	err := a.Retry(ctx, "validate credentials", func(ctx context.Context) error {
		_, err := a.client.Recent(ctx, 1)
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
	return a.creds.Clone()
}

// feedSource serves the whole feed as a single page.
type feedSource struct {
	client   *Client
	count    int
	username string
}

func (s feedSource) ListPage(ctx context.Context, _ int, _ string) (adapter.Page[*gofeed.Item], error) {
	feed, err := s.client.Recent(ctx, s.count)
	if err != nil {
		return adapter.Page[*gofeed.Item]{}, err
	}
	// A full feed may have older bookmarks behind it.
	return adapter.Page[*gofeed.Item]{Items: feed.Items, More: len(feed.Items) >= s.count}, nil
}

func (s feedSource) Timestamp(item *gofeed.Item) (time.Time, error) {
	return itemTime(item)
}

func (s feedSource) MapToPost(item *gofeed.Item) (post.Post, error) {
	return mapItem(item, s.username)
}
