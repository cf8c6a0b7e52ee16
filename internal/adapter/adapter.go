// Package adapter defines the contract every platform adapter implements,
// the closed error taxonomy, the shared retry/rate-limit helpers, the
// incremental pagination loop and the adapter registry.
package adapter

import (
	"context"
	"time"

	"github.com/ppiankov/savedsync/internal/post"
)

// Adapter fetches a user's saved items from one platform. Instances are
// sequential and hold their own token state; create one per sync.
type Adapter interface {
	// Platform returns the registry identifier, e.g. "reddit".
	Platform() string

	// Authenticate replaces the instance credentials and acquires a token.
	// It returns an *Error with CodeAuthFailed when the platform rejects them.
	Authenticate(ctx context.Context, creds Credentials) error

	// FetchSavedPosts returns saved items newest-first. Items saved at or
	// before since are not returned; a zero since fetches everything up to
	// the page bound. Platforms whose items carry no save time return the
	// whole listing regardless of since. On error the returned slice is nil.
	FetchSavedPosts(ctx context.Context, since time.Time) ([]post.Post, error)

	// ValidateCredentials reports whether the platform accepts the current
	// credentials. A rejection is (false, nil); other failures return an error.
	ValidateCredentials(ctx context.Context) (bool, error)

	SupportedAuthTypes() []AuthType

	// CurrentCredentials returns a copy of the credentials including any
	// token refreshed during this instance's lifetime. Nothing is persisted
	// by the adapter itself.
	CurrentCredentials() Credentials
}

// WebhookSetter is implemented by adapters whose platform can push new
// saves to a callback URL.
type WebhookSetter interface {
	SetupWebhook(ctx context.Context, url string) error
}

// TruncationReporter is implemented by adapters that can tell whether their
// last FetchSavedPosts stopped at the page bound before reaching since or
// the end of the listing. Such a result must not advance a watermark.
type TruncationReporter interface {
	Truncated() bool
}
