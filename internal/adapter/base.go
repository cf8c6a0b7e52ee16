package adapter

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Base carries the helpers shared by every adapter. Concrete adapters embed
// it and never reimplement retry, pacing or error classification.
type Base struct {
	platform string
	cfg      Config
	log      logrus.FieldLogger
	now      func() time.Time

	// truncated is set by FetchPages when the page bound cut a listing short.
	truncated bool
}

// NewBase applies config defaults using the platform's own page delay.
func NewBase(platform string, cfg Config, platformDelay time.Duration) Base {
	cfg = cfg.WithDefaults(platformDelay)
	return Base{
		platform: platform,
		cfg:      cfg,
		log:      cfg.Logger.WithFields(logrus.Fields{"component": "adapter", "platform": platform}),
		now:      time.Now,
	}
}

func (b *Base) Platform() string {
	return b.platform
}

// Settings returns the resolved configuration.
func (b *Base) Settings() Config {
	return b.cfg
}

func (b *Base) Logger() logrus.FieldLogger {
	return b.log
}

// Truncated reports whether the last fetch stopped at MaxPages with more
// items still listed.
func (b *Base) Truncated() bool {
	return b.truncated
}

// Now is the adapter clock.
func (b *Base) Now() time.Time {
	return b.now()
}

// RateLimit waits d or until ctx is done.
func (b *Base) RateLimit(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HandleError translates any failure into an *Error. It never returns nil.
// Already classified errors pass through unchanged.
func (b *Base) HandleError(err error, op string) error {
	if err == nil {
		return newError(CodeFetchFailed, b.platform, op+": unknown failure", nil)
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusUnauthorized:
			return newError(CodeAuthFailed, b.platform, op+": credentials rejected", err)
		case http.StatusTooManyRequests:
			e := newError(CodeRateLimit, b.platform, op+": rate limited", err)
			e.ResetAt = resetTime(se.Header, b.now())
			return e
		case http.StatusNotFound:
			return newError(CodeNotFound, b.platform, op+": not found", err)
		}
	}

	return newError(CodeFetchFailed, b.platform, op+" failed", err)
}

// ValidateRequiredCredentials fails with CodeValidationFailed when any key
// is missing or blank. Constructors call it before any network access.
func (b *Base) ValidateRequiredCredentials(creds Credentials, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if strings.TrimSpace(creds[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return newError(CodeValidationFailed, b.platform,
		"missing required credentials: "+strings.Join(missing, ", "), nil)
}

// Retry runs fn through RetryWithBackoff for calls with no result.
func (b *Base) Retry(ctx context.Context, op string, fn func(context.Context) error) error {
	_, err := RetryWithBackoff(ctx, b, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryWithBackoff runs fn up to MaxRetries times, doubling the delay from
// RetryDelay between attempts. Each attempt gets its own Timeout-bounded
// context, so a stalled call becomes an ordinary retryable failure.
// AUTH_FAILED, NOT_FOUND and VALIDATION_FAILED are returned at once, as is
// any failure after ctx is done. A RATE_LIMIT whose reset lies further than
// MaxRateLimitWait ahead surfaces without waiting.
func RetryWithBackoff[T any](ctx context.Context, b *Base, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := b.cfg.RetryDelay
	var lastErr error

	for attempt := 1; attempt <= b.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, b.HandleError(err, op)
		}

		callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
		v, err := fn(callCtx)
		cancel()
		if err == nil {
			return v, nil
		}

		lastErr = b.HandleError(err, op)
		if attempt == b.cfg.MaxRetries || ctx.Err() != nil || !retryable(lastErr) {
			break
		}

		wait := delay
		var ae *Error
		if errors.As(lastErr, &ae) && ae.Code == CodeRateLimit && ae.ResetAt != nil {
			until := ae.ResetAt.Sub(b.now())
			if until > b.cfg.MaxRateLimitWait {
				break
			}
			if until > wait {
				wait = until
			}
		}

		b.log.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"wait":    wait.String(),
		}).WithError(lastErr).Warn("retrying")

		if err := b.RateLimit(ctx, wait); err != nil {
			return zero, b.HandleError(err, op)
		}
		delay *= 2
	}

	return zero, lastErr
}

func retryable(err error) bool {
	switch CodeOf(err) {
	case CodeAuthFailed, CodeNotFound, CodeValidationFailed:
		return false
	}
	return true
}
