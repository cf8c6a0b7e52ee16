package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/savedsync/internal/post"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

type Store struct {
	db *sql.DB
}

// Record is a stored post with its owning account.
type Record struct {
	ID          int64
	Platform    string
	AccountID   string
	Post        post.Post
	ContentHash string
	SyncedAt    time.Time
}

// Commit is the outcome of one successful account sync.
type Commit struct {
	Platform  string
	AccountID string
	RunID     string
	Posts     []post.Post
	// Partial stores the posts without moving the watermark, for a fetch
	// that stopped before reaching the previous one.
	Partial  bool
	SyncedAt time.Time
}

type CommitResult struct {
	Inserted  int
	Updated   int
	Unchanged int
	Watermark time.Time
}

// SyncState is the per-account bookkeeping row.
type SyncState struct {
	Platform     string
	AccountID    string
	Watermark    time.Time
	LastRunID    string
	LastStatus   string
	LastError    string
	LastCount    int
	LastPartial  bool
	LastSyncedAt time.Time
}

// PostFilter narrows ListPosts and CountPosts. Empty fields match all.
type PostFilter struct {
	Platform  string
	AccountID string
	// Since keeps posts saved strictly after it.
	Since time.Time
	Limit int
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Concurrent account syncs share one writer.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CommitSync upserts the posts and advances the account watermark in one
// transaction. The watermark only moves forward: it becomes the newest
// SavedAt among the posts when that is later than the stored value. A
// Partial commit leaves it where it was.
func (s *Store) CommitSync(ctx context.Context, in Commit) (CommitResult, error) {
	if s == nil || s.db == nil {
		return CommitResult{}, errors.New("store is not initialized")
	}
	if strings.TrimSpace(in.Platform) == "" {
		return CommitResult{}, errors.New("platform is required")
	}
	if strings.TrimSpace(in.AccountID) == "" {
		return CommitResult{}, errors.New("account_id is required")
	}
	if in.SyncedAt.IsZero() {
		return CommitResult{}, errors.New("synced_at is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommitResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := watermarkTx(ctx, tx, in.Platform, in.AccountID)
	if err != nil {
		return CommitResult{}, err
	}

	res := CommitResult{Watermark: current}
	for _, p := range in.Posts {
		outcome, err := upsertPost(ctx, tx, in.Platform, in.AccountID, p, in.SyncedAt)
		if err != nil {
			return CommitResult{}, err
		}
		switch outcome {
		case outcomeInserted:
			res.Inserted++
		case outcomeUpdated:
			res.Updated++
		default:
			res.Unchanged++
		}
		if !in.Partial && p.SavedAt.After(res.Watermark) {
			res.Watermark = p.SavedAt.UTC()
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_state (
			platform, account_id, watermark, last_run_id, last_status, last_error, last_count, last_partial, last_synced_at
		) VALUES (?, ?, ?, ?, ?, '', ?, ?, ?)
		ON CONFLICT(platform, account_id) DO UPDATE SET
			watermark = excluded.watermark,
			last_run_id = excluded.last_run_id,
			last_status = excluded.last_status,
			last_error = '',
			last_count = excluded.last_count,
			last_partial = excluded.last_partial,
			last_synced_at = excluded.last_synced_at
	`,
		in.Platform,
		in.AccountID,
		formatTime(res.Watermark),
		in.RunID,
		StatusOK,
		len(in.Posts),
		in.Partial,
		formatTime(in.SyncedAt),
	)
	if err != nil {
		return CommitResult{}, fmt.Errorf("update sync state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return CommitResult{}, fmt.Errorf("commit sync: %w", err)
	}
	return res, nil
}

// RecordFailure notes a failed run without touching the watermark.
func (s *Store) RecordFailure(ctx context.Context, platform, accountID, runID string, cause error, at time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (
			platform, account_id, watermark, last_run_id, last_status, last_error, last_count, last_synced_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(platform, account_id) DO UPDATE SET
			last_run_id = excluded.last_run_id,
			last_status = excluded.last_status,
			last_error = excluded.last_error,
			last_count = 0,
			last_partial = 0,
			last_synced_at = excluded.last_synced_at
	`,
		platform,
		accountID,
		formatTime(time.Time{}),
		runID,
		StatusFailed,
		msg,
		formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// Watermark returns the newest SavedAt committed for the account, or the
// zero time when the account has never synced.
func (s *Store) Watermark(ctx context.Context, platform, accountID string) (time.Time, error) {
	if s == nil || s.db == nil {
		return time.Time{}, errors.New("store is not initialized")
	}
	return watermarkTx(ctx, s.db, platform, accountID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func watermarkTx(ctx context.Context, q querier, platform, accountID string) (time.Time, error) {
	var value string
	err := q.QueryRowContext(ctx,
		"SELECT watermark FROM sync_state WHERE platform = ? AND account_id = ?",
		platform, accountID,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read watermark: %w", err)
	}
	ts, err := parseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark: %w", err)
	}
	if ts.IsZero() {
		return time.Time{}, nil
	}
	return ts, nil
}

// SyncStates lists every account that has synced or failed at least once.
func (s *Store) SyncStates(ctx context.Context) ([]SyncState, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT platform, account_id, watermark, last_run_id, last_status, last_error, last_count, last_partial, last_synced_at
		FROM sync_state
		ORDER BY platform, account_id
	`)
	if err != nil {
		return nil, fmt.Errorf("get sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []SyncState
	for rows.Next() {
		var (
			st                  SyncState
			watermark, syncedAt string
		)
		if err := rows.Scan(&st.Platform, &st.AccountID, &watermark, &st.LastRunID,
			&st.LastStatus, &st.LastError, &st.LastCount, &st.LastPartial, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan sync state: %w", err)
		}
		if st.Watermark, err = parseTime(watermark); err != nil {
			return nil, fmt.Errorf("parse watermark: %w", err)
		}
		if st.LastSyncedAt, err = parseTime(syncedAt); err != nil {
			return nil, fmt.Errorf("parse last_synced_at: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync states: %w", err)
	}
	return states, nil
}

func (s *Store) CountPosts(ctx context.Context, f PostFilter) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	where, args := f.where()
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// ListPosts returns stored posts newest saved first.
func (s *Store) ListPosts(ctx context.Context, f PostFilter) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	where, args := f.where()
	query := `
		SELECT id, platform, account_id, platform_post_id, url, title, content, content_hash,
			author_name, author_url, media_urls, metadata, saved_at, synced_at
		FROM posts` + where + " ORDER BY saved_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}

// PruneOld deletes posts saved more than retainDays ago. Watermarks are
// kept so pruned posts are not fetched again. Returns the number removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))
	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE saved_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune old posts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (f PostFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Platform != "" {
		clauses = append(clauses, "platform = ?")
		args = append(args, f.Platform)
	}
	if f.AccountID != "" {
		clauses = append(clauses, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "saved_at > ?")
		args = append(args, formatTime(f.Since))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type upsertOutcome int

const (
	outcomeUnchanged upsertOutcome = iota
	outcomeInserted
	outcomeUpdated
)

func upsertPost(ctx context.Context, tx *sql.Tx, platform, accountID string, p post.Post, syncedAt time.Time) (upsertOutcome, error) {
	if strings.TrimSpace(p.PlatformPostID) == "" {
		return 0, errors.New("platform_post_id is required")
	}
	if p.SavedAt.IsZero() {
		return 0, fmt.Errorf("post %s: saved_at is required", p.PlatformPostID)
	}

	media := p.MediaURLs
	if media == nil {
		media = []string{}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return 0, fmt.Errorf("encode media urls: %w", err)
	}
	meta := p.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	hash := contentHash(p, string(mediaJSON))

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT content_hash FROM posts WHERE platform = ? AND platform_post_id = ? AND account_id = ?",
		platform, p.PlatformPostID, accountID,
	).Scan(&existing)
	outcome := outcomeUpdated
	switch {
	case errors.Is(err, sql.ErrNoRows):
		outcome = outcomeInserted
	case err != nil:
		return 0, fmt.Errorf("lookup post: %w", err)
	case existing == hash:
		outcome = outcomeUnchanged
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (
			platform, account_id, platform_post_id, url, title, content, content_hash,
			author_name, author_url, media_urls, metadata, saved_at, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform, platform_post_id, account_id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			author_name = excluded.author_name,
			author_url = excluded.author_url,
			media_urls = excluded.media_urls,
			metadata = excluded.metadata,
			saved_at = excluded.saved_at,
			synced_at = excluded.synced_at
	`,
		platform,
		accountID,
		p.PlatformPostID,
		p.URL,
		p.Title,
		p.Content,
		hash,
		p.AuthorName,
		p.AuthorURL,
		string(mediaJSON),
		string(metaJSON),
		formatTime(p.SavedAt),
		formatTime(syncedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert post %s: %w", p.PlatformPostID, err)
	}
	return outcome, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (Record, error) {
	var (
		rec               Record
		mediaJSON         string
		metaJSON          string
		savedAt, syncedAt string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Platform,
		&rec.AccountID,
		&rec.Post.PlatformPostID,
		&rec.Post.URL,
		&rec.Post.Title,
		&rec.Post.Content,
		&rec.ContentHash,
		&rec.Post.AuthorName,
		&rec.Post.AuthorURL,
		&mediaJSON,
		&metaJSON,
		&savedAt,
		&syncedAt,
	); err != nil {
		return Record{}, fmt.Errorf("scan post: %w", err)
	}

	rec.Post.MediaURLs = []string{}
	if err := json.Unmarshal([]byte(mediaJSON), &rec.Post.MediaURLs); err != nil {
		return Record{}, fmt.Errorf("decode media urls: %w", err)
	}
	rec.Post.Metadata = map[string]any{}
	if err := json.Unmarshal([]byte(metaJSON), &rec.Post.Metadata); err != nil {
		return Record{}, fmt.Errorf("decode metadata: %w", err)
	}

	var err error
	rec.Post.SavedAt, err = parseTime(savedAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse saved_at: %w", err)
	}
	rec.SyncedAt, err = parseTime(syncedAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse synced_at: %w", err)
	}
	return rec, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

// contentHash fingerprints the mutable parts of a post so re-syncs can tell
// edited posts from unchanged ones.
func contentHash(p post.Post, mediaJSON string) string {
	h := sha256.New()
	for _, part := range []string{p.URL, p.Title, p.Content, p.AuthorName, p.AuthorURL, mediaJSON} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
