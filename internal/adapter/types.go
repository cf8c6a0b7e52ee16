package adapter

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// AuthType is a closed set of authentication mechanisms.
type AuthType string

const (
	AuthOAuth2           AuthType = "OAUTH2"
	AuthAPIToken         AuthType = "API_TOKEN"
	AuthBearerToken      AuthType = "BEARER_TOKEN"
	AuthCookie           AuthType = "COOKIE"
	AuthUsernamePassword AuthType = "USERNAME_PASSWORD"
)

// Well-known credential keys. Each platform documents which it requires.
const (
	CredClientID     = "clientId"
	CredClientSecret = "clientSecret"
	CredUsername     = "username"
	CredPassword     = "password"
	CredAccessToken  = "accessToken"
	CredRefreshToken = "refreshToken"
	CredExpiresAt    = "expiresAt" // RFC 3339
	CredUserID       = "userId"
	CredUserAgent    = "userAgent"
	CredAPIToken     = "apiToken"
	CredFeedToken    = "feedToken" // Pinboard private feed secret, not the v1 API token
)

// Credentials is an opaque per-platform key/value set supplied at
// construction.
type Credentials map[string]string

// Clone returns an independent copy.
func (c Credentials) Clone() Credentials {
	out := make(Credentials, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ExpiresAt parses CredExpiresAt. The zero time means unknown.
func (c Credentials) ExpiresAt() time.Time {
	v := c[CredExpiresAt]
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

const (
	DefaultMaxPages         = 100
	DefaultPageSize         = 100
	DefaultMaxRetries       = 3
	DefaultRetryDelay       = 1 * time.Second
	DefaultTimeout          = 30 * time.Second
	DefaultMaxRateLimitWait = 60 * time.Second
	DefaultRateLimit        = 1 * time.Second

	// TokenExpiryMargin is how long before expiry a token stops being valid.
	TokenExpiryMargin = 5 * time.Minute
)

// Config tunes one adapter instance. Zero values select defaults.
type Config struct {
	HTTPClient *http.Client
	Logger     logrus.FieldLogger

	// BaseURL and AuthURL override the platform API and token endpoints.
	BaseURL string
	AuthURL string

	MaxPages         int
	PageSize         int
	RateLimit        time.Duration // delay between pages; negative disables
	MaxRetries       int
	RetryDelay       time.Duration
	Timeout          time.Duration // per network call
	MaxRateLimitWait time.Duration
}

// WithDefaults fills unset fields. platformDelay is the platform's own pacing.
func (c Config) WithDefaults(platformDelay time.Duration) Config {
	if c.HTTPClient == nil {
		c.HTTPClient = sharedClient
	}
	if c.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		c.Logger = l
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.RateLimit == 0 {
		c.RateLimit = platformDelay
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRateLimitWait <= 0 {
		c.MaxRateLimitWait = DefaultMaxRateLimitWait
	}
	return c
}

// sharedClient pools connections across adapter instances. Per-call
// deadlines come from contexts, so it carries no client-level timeout.
var sharedClient = &http.Client{}
