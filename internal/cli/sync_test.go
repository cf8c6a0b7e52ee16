package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const pinboardFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Pinboard (gopher)</title>
<link>https://pinboard.in/u:gopher/</link>
<item>
<title>Go Blog</title>
<link>https://go.dev/blog/</link>
<description>release notes token=abc123</description>
<pubDate>Sun, 03 Mar 2024 12:00:00 +0000</pubDate>
<category>go blog</category>
</item>
<item>
<title>Packages</title>
<link>https://pkg.go.dev/</link>
<description>module index</description>
<pubDate>Sat, 02 Mar 2024 12:00:00 +0000</pubDate>
<category>go</category>
</item>
</channel>
</rss>`

// fakePinboard serves pinboardFeed to the "good" feed token and rejects
// everything else the way Pinboard does.
func fakePinboard(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.Contains(r.URL.Path, "secret:good") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(pinboardFeed))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func pipelineConfig(dir, baseURL string, withBroken bool) string {
	cfg := fmt.Sprintf(`storage:
  path: %[1]s
  token_cache: %[2]s
sync:
  max_retries: 1
  retry_delay: 10ms
log:
  level: error
privacy:
  redact:
    enabled: true
    patterns: ['token=\S+']
accounts:
  - id: pins
    platform: pinboard
    base_url: %[3]s
    credentials:
      username: gopher
      feedToken: good
`, filepath.Join(dir, "savedsync.db"), filepath.Join(dir, "tokens"), baseURL)
	if withBroken {
		cfg += fmt.Sprintf(`  - id: broken
    platform: pinboard
    base_url: %s
    credentials:
      username: gopher
      feedToken: revoked
`, baseURL)
	}
	return cfg
}

func resetSyncFlags(t *testing.T) {
	t.Helper()
	oldAccounts, oldFull := syncAccounts, syncFull
	oldStatus := statusFormat
	oldPlatform, oldAccount, oldSince, oldLimit, oldFormat := postsPlatform, postsAccount, postsSince, postsLimit, postsFormat
	oldNoColor := noColor
	t.Cleanup(func() {
		syncAccounts, syncFull = oldAccounts, oldFull
		statusFormat = oldStatus
		postsPlatform, postsAccount, postsSince, postsLimit, postsFormat = oldPlatform, oldAccount, oldSince, oldLimit, oldFormat
		noColor = oldNoColor
	})
	syncAccounts, syncFull = nil, false
	statusFormat = "terminal"
	postsPlatform, postsAccount, postsSince, postsLimit, postsFormat = "", "", "", 20, "terminal"
}

func TestPipelineSyncStatusPosts(t *testing.T) {
	dir := t.TempDir()
	srv, _ := fakePinboard(t)
	writeConfig(t, dir, pipelineConfig(dir, srv.URL, false))
	useConfigDir(t, dir)
	resetSyncFlags(t)

	out, err := captureStdout(t, func() error { return syncAction(testCommand(), nil) })
	if err != nil {
		t.Fatalf("sync: %v\n%s", err, out)
	}
	requireContains(t, out, "pinboard/pins")
	requireContains(t, out, "Synced 1 accounts: 2 new, 0 updated")
	requireContains(t, out, "2024-03-03T12:00:00Z")

	// Nothing newer than the watermark on the second run.
	out, err = captureStdout(t, func() error { return syncAction(testCommand(), nil) })
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	requireContains(t, out, "Synced 1 accounts: 0 new, 0 updated")

	statusFormat = "json"
	out, err = captureStdout(t, func() error { return statusAction(testCommand(), nil) })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status struct {
		Accounts []accountStatus `json:"accounts"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if len(status.Accounts) != 1 {
		t.Fatalf("accounts = %+v", status.Accounts)
	}
	if got := status.Accounts[0]; got.Posts != 2 || got.LastStatus != "ok" || got.LastRunID == "" {
		t.Errorf("status row = %+v", got)
	}

	postsFormat = "json"
	out, err = captureStdout(t, func() error { return postsAction(testCommand(), nil) })
	if err != nil {
		t.Fatalf("posts: %v", err)
	}
	var listed struct {
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
		Posts []struct {
			URL        string `json:"url"`
			Content    string `json:"content"`
			AuthorName string `json:"author_name"`
		} `json:"posts"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode posts: %v\n%s", err, out)
	}
	if len(listed.Posts) != 2 || listed.Meta.Total != 2 {
		t.Fatalf("posts = %+v", listed)
	}
	first := listed.Posts[0]
	if first.URL != "https://go.dev/blog/" || first.AuthorName != "gopher" {
		t.Errorf("first post = %+v", first)
	}
	if first.Content != "release notes [REDACTED]" {
		t.Errorf("content not redacted: %q", first.Content)
	}

	postsFormat = "terminal"
	noColor = true
	postsLimit = 1
	out, err = captureStdout(t, func() error { return postsAction(testCommand(), nil) })
	if err != nil {
		t.Fatalf("posts terminal: %v", err)
	}
	requireContains(t, out, "Go Blog")
	requireContains(t, out, "showing newest 1 of 2")
	if strings.Contains(out, "Packages") {
		t.Errorf("limit ignored:\n%s", out)
	}
}

func TestSyncOneAccountFails(t *testing.T) {
	dir := t.TempDir()
	srv, _ := fakePinboard(t)
	writeConfig(t, dir, pipelineConfig(dir, srv.URL, true))
	useConfigDir(t, dir)
	resetSyncFlags(t)

	out, err := captureStdout(t, func() error { return syncAction(testCommand(), nil) })
	if err == nil {
		t.Fatal("expected error for rejected account")
	}
	requireContains(t, err.Error(), "1 of 2 accounts failed")
	requireContains(t, out, "pinboard/broken")
	requireContains(t, out, "FAILED")
	requireContains(t, out, "Synced 1 accounts: 2 new, 0 updated (1 failed)")

	statusFormat = "terminal"
	out, err = captureStdout(t, func() error { return statusAction(testCommand(), nil) })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "2 accounts, 2 posts")
	requireContains(t, out, "[WARN] pinboard/broken: last run failed")
}

func TestSyncFullFeedHoldsWatermark(t *testing.T) {
	dir := t.TempDir()
	srv, _ := fakePinboard(t)
	cfg := strings.Replace(pipelineConfig(dir, srv.URL, false), "sync:\n", "sync:\n  page_size: 2\n  max_pages: 1\n", 1)
	writeConfig(t, dir, cfg)
	useConfigDir(t, dir)
	resetSyncFlags(t)

	out, err := captureStdout(t, func() error { return syncAction(testCommand(), nil) })
	if err != nil {
		t.Fatalf("sync: %v\n%s", err, out)
	}
	requireContains(t, out, "2 new")
	requireContains(t, out, "never  (truncated, watermark held)")

	out, err = captureStdout(t, func() error { return statusAction(testCommand(), nil) })
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[WARN] pinboard/pins: last run hit max_pages, watermark held")
}

func TestSyncSelectedAccount(t *testing.T) {
	dir := t.TempDir()
	srv, calls := fakePinboard(t)
	writeConfig(t, dir, pipelineConfig(dir, srv.URL, true))
	useConfigDir(t, dir)
	resetSyncFlags(t)

	syncAccounts = []string{"pins"}
	out, err := captureStdout(t, func() error { return syncAction(testCommand(), nil) })
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if strings.Contains(out, "broken") {
		t.Errorf("unselected account synced:\n%s", out)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("feed calls = %d, want 1", got)
	}

	syncAccounts = []string{"nope"}
	_, err = captureStdout(t, func() error { return syncAction(testCommand(), nil) })
	if err == nil || !strings.Contains(err.Error(), `unknown account "nope"`) {
		t.Errorf("err = %v", err)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	srv, _ := fakePinboard(t)
	writeConfig(t, dir, pipelineConfig(dir, srv.URL, true))
	useConfigDir(t, dir)
	old := checkAccounts
	t.Cleanup(func() { checkAccounts = old })

	checkAccounts = []string{"pins"}
	out, err := captureStdout(t, func() error { return checkAction(testCommand(), nil) })
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "[ OK ] pinboard/pins")

	checkAccounts = nil
	out, err = captureStdout(t, func() error { return checkAction(testCommand(), nil) })
	if err == nil {
		t.Fatal("expected failure for rejected credentials")
	}
	requireContains(t, out, "[FAIL] pinboard/broken: credentials rejected")
}

func TestDoctor(t *testing.T) {
	dir := t.TempDir()
	srv, calls := fakePinboard(t)
	writeConfig(t, dir, pipelineConfig(dir, srv.URL, false)+`  - id: ghost
    platform: myspace
`)
	useConfigDir(t, dir)

	out, err := captureStdout(t, func() error { return doctorAction(testCommand(), nil) })
	if err == nil {
		t.Fatal("expected doctor to flag the unknown platform")
	}
	requireContains(t, out, "[ OK ] config.yaml (2 accounts, 2 enabled)")
	requireContains(t, out, "[ OK ] database")
	requireContains(t, out, "[ OK ] pinboard/pins")
	requireContains(t, out, "[FAIL] myspace/ghost: unknown platform")
	if calls.Load() != 0 {
		t.Error("doctor must not call platforms")
	}
}
