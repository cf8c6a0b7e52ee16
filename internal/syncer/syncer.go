// Package syncer drives adapters for the configured accounts and commits
// what they return.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/savedsync/internal/adapter"
	"github.com/ppiankov/savedsync/internal/privacy"
	"github.com/ppiankov/savedsync/internal/store"
)

const defaultConcurrency = 4

// Factory builds adapters. *adapter.Registry satisfies it.
type Factory interface {
	Create(platform string, creds adapter.Credentials, cfg adapter.Config) (adapter.Adapter, error)
}

// Store is the persistence the syncer needs. *store.Store satisfies it.
type Store interface {
	Watermark(ctx context.Context, platform, accountID string) (time.Time, error)
	CommitSync(ctx context.Context, in store.Commit) (store.CommitResult, error)
	RecordFailure(ctx context.Context, platform, accountID, runID string, cause error, at time.Time) error
}

// TokenCache carries refreshed credentials across runs. *tokens.Cache
// satisfies it.
type TokenCache interface {
	Apply(ctx context.Context, platform, account string, creds adapter.Credentials) (adapter.Credentials, error)
	Save(ctx context.Context, platform, account string, creds adapter.Credentials) error
	Delete(ctx context.Context, platform, account string) error
}

// Account is one platform identity to sync.
type Account struct {
	ID          string
	Platform    string
	BaseURL     string
	Credentials adapter.Credentials
}

type Options struct {
	// Concurrency bounds how many accounts sync at once. Each adapter is
	// still driven sequentially.
	Concurrency int
	// Full ignores stored watermarks and walks every listing to its end.
	Full bool
	// Adapter is the template config handed to every adapter.
	Adapter adapter.Config
}

// Result reports one account's run.
type Result struct {
	RunID     string
	AccountID string
	Platform  string
	Since     time.Time
	Fetched   int
	Inserted  int
	Updated   int
	Unchanged int
	// Truncated is set when the fetch stopped at the page bound. Its posts
	// are stored but the watermark is held.
	Truncated bool
	Watermark time.Time
	Duration  time.Duration
	Err       error
}

type Syncer struct {
	factory  Factory
	store    Store
	tokens   TokenCache
	redactor *privacy.Redactor
	log      logrus.FieldLogger
	opts     Options
	now      func() time.Time
}

// New wires a syncer. tokens and redactor may be nil.
func New(factory Factory, st Store, tokens TokenCache, redactor *privacy.Redactor, log logrus.FieldLogger, opts Options) *Syncer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Syncer{
		factory:  factory,
		store:    st,
		tokens:   tokens,
		redactor: redactor,
		log:      log.WithField("component", "syncer"),
		opts:     opts,
		now:      time.Now,
	}
}

// Run syncs every account and returns results in input order. One account
// failing never stops the others.
func (s *Syncer) Run(ctx context.Context, accounts []Account) []Result {
	type job struct {
		idx int
		acc Account
	}

	results := make([]Result, len(accounts))
	jobs := make(chan job, len(accounts))

	workers := s.opts.Concurrency
	if len(accounts) < workers {
		workers = len(accounts)
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = s.SyncAccount(ctx, j.acc)
			}
		}()
	}

	for i, acc := range accounts {
		jobs <- job{idx: i, acc: acc}
	}
	close(jobs)
	wg.Wait()

	return results
}

// SyncAccount runs one account end to end: create, fetch since the stored
// watermark, redact, then commit posts and watermark together. The
// watermark is untouched unless the whole fetch succeeded and reached
// either since or the end of the listing.
func (s *Syncer) SyncAccount(ctx context.Context, acc Account) Result {
	start := s.now()
	res := Result{RunID: uuid.NewString(), AccountID: acc.ID, Platform: acc.Platform}
	log := s.log.WithFields(logrus.Fields{
		"run_id":   res.RunID,
		"account":  acc.ID,
		"platform": acc.Platform,
	})

	fail := func(err error) Result {
		res.Err = err
		res.Duration = s.now().Sub(start)
		log.WithError(err).WithField("code", adapter.CodeOf(err)).Error("sync failed")
		if rerr := s.store.RecordFailure(context.WithoutCancel(ctx), acc.Platform, acc.ID, res.RunID, err, s.now()); rerr != nil {
			log.WithError(rerr).Warn("could not record failure")
		}
		return res
	}

	a, err := s.create(ctx, log, acc)
	if err != nil {
		return fail(err)
	}

	if !s.opts.Full {
		since, err := s.store.Watermark(ctx, acc.Platform, acc.ID)
		if err != nil {
			return fail(err)
		}
		res.Since = since
	}

	log.WithField("since", res.Since).Info("fetching saved posts")
	posts, fetchErr := a.FetchSavedPosts(ctx, res.Since)

	// A refresh may have rotated the token even when the fetch failed.
	s.saveTokens(ctx, log, acc, a)

	if fetchErr != nil {
		if adapter.IsCode(fetchErr, adapter.CodeAuthFailed) {
			s.dropTokens(ctx, log, acc)
		}
		return fail(fetchErr)
	}

	res.Fetched = len(posts)
	if tr, ok := a.(adapter.TruncationReporter); ok && tr.Truncated() {
		res.Truncated = true
		log.Warn("fetch stopped at the page bound, holding watermark")
	}
	posts = s.redactor.Posts(posts)

	commit, err := s.store.CommitSync(ctx, store.Commit{
		Platform:  acc.Platform,
		AccountID: acc.ID,
		RunID:     res.RunID,
		Posts:     posts,
		Partial:   res.Truncated,
		SyncedAt:  s.now(),
	})
	if err != nil {
		return fail(err)
	}

	res.Inserted = commit.Inserted
	res.Updated = commit.Updated
	res.Unchanged = commit.Unchanged
	res.Watermark = commit.Watermark
	res.Duration = s.now().Sub(start)
	log.WithFields(logrus.Fields{
		"fetched":   res.Fetched,
		"inserted":  res.Inserted,
		"updated":   res.Updated,
		"truncated": res.Truncated,
		"watermark": res.Watermark,
		"duration":  res.Duration.String(),
	}).Info("sync complete")
	return res
}

// Validate asks the platform whether the account's credentials are
// accepted. Tokens obtained along the way are cached like in a sync.
func (s *Syncer) Validate(ctx context.Context, acc Account) (bool, error) {
	log := s.log.WithFields(logrus.Fields{"account": acc.ID, "platform": acc.Platform})
	a, err := s.create(ctx, log, acc)
	if err != nil {
		return false, err
	}
	ok, err := a.ValidateCredentials(ctx)
	s.saveTokens(ctx, log, acc, a)
	if err == nil && !ok {
		s.dropTokens(ctx, log, acc)
	}
	return ok, err
}

// create builds the account's adapter from its configured credentials with
// any cached tokens laid over them.
func (s *Syncer) create(ctx context.Context, log logrus.FieldLogger, acc Account) (adapter.Adapter, error) {
	creds := acc.Credentials.Clone()
	if s.tokens != nil {
		cached, err := s.tokens.Apply(ctx, acc.Platform, acc.ID, creds)
		if err != nil {
			log.WithError(err).Warn("token cache unavailable, using configured credentials")
		} else {
			creds = cached
		}
	}

	cfg := s.opts.Adapter
	cfg.Logger = log
	if acc.BaseURL != "" {
		cfg.BaseURL = acc.BaseURL
	}
	return s.factory.Create(acc.Platform, creds, cfg)
}

// tokenKeys are the credentials an adapter may change at runtime.
var tokenKeys = []string{
	adapter.CredAccessToken,
	adapter.CredRefreshToken,
	adapter.CredExpiresAt,
	adapter.CredUserID,
}

// saveTokens caches only the token values that differ from the configured
// credentials, so a static bearer token is never shadowed by a stale copy.
func (s *Syncer) saveTokens(ctx context.Context, log logrus.FieldLogger, acc Account, a adapter.Adapter) {
	if s.tokens == nil {
		return
	}
	current := a.CurrentCredentials()
	delta := adapter.Credentials{}
	for _, k := range tokenKeys {
		if v := current[k]; v != "" && v != acc.Credentials[k] {
			delta[k] = v
		}
	}
	if len(delta) == 0 {
		return
	}
	if err := s.tokens.Save(context.WithoutCancel(ctx), acc.Platform, acc.ID, delta); err != nil {
		log.WithError(err).Warn("could not cache credentials")
	}
}

// dropTokens forgets cached tokens the platform rejected, so the next run
// starts again from the configured credentials.
func (s *Syncer) dropTokens(ctx context.Context, log logrus.FieldLogger, acc Account) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.Delete(context.WithoutCancel(ctx), acc.Platform, acc.ID); err != nil {
		log.WithError(err).Warn("could not drop cached credentials")
	}
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Err joins all account failures, or nil when every account succeeded.
func Err(results []Result) error {
	var errs []error
	for _, r := range Failed(results) {
		errs = append(errs, r.Err)
	}
	return errors.Join(errs...)
}
