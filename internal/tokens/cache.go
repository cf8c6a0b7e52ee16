// Package tokens persists refreshed platform credentials between runs.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/savedsync/internal/adapter"
)

const keyPrefix = "token:"

// Entry is the stored form of one account's token state. Secrets the user
// configures (passwords, client secrets) are never written.
type Entry struct {
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UserID       string    `json:"userId,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (e Entry) credentials() adapter.Credentials {
	out := adapter.Credentials{}
	if e.AccessToken != "" {
		out[adapter.CredAccessToken] = e.AccessToken
	}
	if e.RefreshToken != "" {
		out[adapter.CredRefreshToken] = e.RefreshToken
	}
	if !e.ExpiresAt.IsZero() {
		out[adapter.CredExpiresAt] = e.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if e.UserID != "" {
		out[adapter.CredUserID] = e.UserID
	}
	return out
}

// Cache is a BadgerDB-backed token store keyed by platform and account.
type Cache struct {
	db  *badger.DB
	log logrus.FieldLogger
	now func() time.Time
}

// Open opens (or creates) the cache at dir.
func Open(dir string, logger logrus.FieldLogger) (*Cache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("token cache dir is required")
	}
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a cache that lives only as long as the process.
func OpenInMemory(logger logrus.FieldLogger) (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger logrus.FieldLogger) (*Cache, error) {
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open token cache: %w", err)
	}
	return &Cache{
		db:  db,
		log: logger.WithField("component", "tokens"),
		now: time.Now,
	}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func key(platform, account string) []byte {
	return []byte(keyPrefix + platform + ":" + account)
}

// Save stores the refreshable subset of creds. Nothing is written when creds
// hold none of it. An entry that cannot be refreshed expires with its token.
func (c *Cache) Save(ctx context.Context, platform, account string, creds adapter.Credentials) error {
	e := Entry{
		AccessToken:  creds[adapter.CredAccessToken],
		RefreshToken: creds[adapter.CredRefreshToken],
		ExpiresAt:    creds.ExpiresAt(),
		UserID:       creds[adapter.CredUserID],
		UpdatedAt:    c.now().UTC(),
	}
	if e.AccessToken == "" && e.RefreshToken == "" {
		return nil
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal token entry: %w", err)
	}

	entry := badger.NewEntry(key(platform, account), raw)
	if e.RefreshToken == "" && !e.ExpiresAt.IsZero() {
		ttl := e.ExpiresAt.Sub(c.now())
		if ttl <= 0 {
			return c.Delete(ctx, platform, account)
		}
		entry = entry.WithTTL(ttl)
	}

	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("save token %s/%s: %w", platform, account, err)
	}
	c.log.WithFields(logrus.Fields{"platform": platform, "account": account}).Debug("token cached")
	return nil
}

// Load returns the cached entry, or false when there is none.
func (c *Cache) Load(_ context.Context, platform, account string) (Entry, bool, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(platform, account))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("load token %s/%s: %w", platform, account, err)
	}
	return e, true, nil
}

// Apply overlays the cached token state on configured credentials. Cached
// values win: a rotated refresh token invalidates the configured one.
func (c *Cache) Apply(ctx context.Context, platform, account string, creds adapter.Credentials) (adapter.Credentials, error) {
	out := creds.Clone()
	e, ok, err := c.Load(ctx, platform, account)
	if err != nil || !ok {
		return out, err
	}
	for k, v := range e.credentials() {
		out[k] = v
	}
	return out, nil
}

func (c *Cache) Delete(_ context.Context, platform, account string) error {
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(platform, account))
	}); err != nil {
		return fmt.Errorf("delete token %s/%s: %w", platform, account, err)
	}
	return nil
}

// Keys lists cached entries as "platform:account".
func (c *Cache) Keys(_ context.Context) ([]string, error) {
	var out []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			out = append(out, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return out, nil
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
