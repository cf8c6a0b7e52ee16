package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/savedsync/internal/config"
	"github.com/ppiankov/savedsync/internal/store"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-account sync state and stored post counts",
	RunE:  statusAction,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "terminal", "output format: terminal, json")
	rootCmd.AddCommand(statusCmd)
}

// staleDays is how long an account may go without a successful sync before
// status flags it.
const staleDays = 7

type accountStatus struct {
	Platform   string    `json:"platform"`
	AccountID  string    `json:"account_id"`
	Configured bool      `json:"configured"`
	Disabled   bool      `json:"disabled"`
	Posts      int       `json:"posts"`
	Watermark  time.Time `json:"watermark"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	LastCount  int       `json:"last_count"`
	Truncated  bool      `json:"truncated"`
	LastSynced time.Time `json:"last_synced_at"`
}

func statusAction(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	rows, err := collectStatus(cmd.Context(), rt.db, rt.cfg)
	if err != nil {
		return err
	}

	switch statusFormat {
	case "json":
		return printStatusJSON(os.Stdout, rows)
	case "terminal", "":
		printStatus(os.Stdout, rows, time.Now())
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", statusFormat)
	}
}

// collectStatus lists configured accounts in file order, then any account
// that still has stored state but is no longer configured.
func collectStatus(ctx context.Context, db *store.Store, cfg *config.Config) ([]accountStatus, error) {
	states, err := db.SyncStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	byKey := make(map[string]store.SyncState, len(states))
	for _, s := range states {
		byKey[accountLabel(s.Platform, s.AccountID)] = s
	}

	var rows []accountStatus
	for _, a := range cfg.Accounts {
		row := accountStatus{Platform: a.Platform, AccountID: a.ID, Configured: true, Disabled: a.Disabled}
		key := accountLabel(a.Platform, a.ID)
		if s, ok := byKey[key]; ok {
			row = withState(row, s)
			delete(byKey, key)
		}
		rows = append(rows, row)
	}
	for _, s := range states {
		if _, ok := byKey[accountLabel(s.Platform, s.AccountID)]; ok {
			rows = append(rows, withState(accountStatus{Platform: s.Platform, AccountID: s.AccountID}, s))
		}
	}

	for i := range rows {
		n, err := db.CountPosts(ctx, store.PostFilter{Platform: rows[i].Platform, AccountID: rows[i].AccountID})
		if err != nil {
			return nil, fmt.Errorf("count posts: %w", err)
		}
		rows[i].Posts = n
	}
	return rows, nil
}

func withState(row accountStatus, s store.SyncState) accountStatus {
	row.Watermark = s.Watermark
	row.LastRunID = s.LastRunID
	row.LastStatus = s.LastStatus
	row.LastError = s.LastError
	row.LastCount = s.LastCount
	row.Truncated = s.LastPartial
	row.LastSynced = s.LastSyncedAt
	return row
}

func printStatusJSON(w io.Writer, rows []accountStatus) error {
	if rows == nil {
		rows = []accountStatus{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"accounts": rows})
}

func printStatus(w io.Writer, rows []accountStatus, now time.Time) {
	total := 0
	width := 7
	for _, r := range rows {
		total += r.Posts
		width = max(width, len(accountLabel(r.Platform, r.AccountID)))
	}
	fmt.Fprintf(w, "savedsync status: %d accounts, %d posts\n\n", len(rows), total)

	fmt.Fprintf(w, "  %-*s  %5s  %-6s  %-20s  %s\n", width, "Account", "Posts", "Status", "Watermark", "Last sync")
	for _, r := range rows {
		status := r.LastStatus
		switch {
		case !r.Configured:
			status = "orphan"
		case r.Disabled:
			status = "off"
		case status == "":
			status = "-"
		}
		last := "never"
		if !r.LastSynced.IsZero() {
			last = humanAgo(now.Sub(r.LastSynced))
		}
		fmt.Fprintf(w, "  %-*s  %5d  %-6s  %-20s  %s\n",
			width, accountLabel(r.Platform, r.AccountID), r.Posts, status, formatWatermark(r.Watermark), last)
	}
	fmt.Fprintln(w)

	stale := now.AddDate(0, 0, -staleDays)
	for _, r := range rows {
		label := accountLabel(r.Platform, r.AccountID)
		switch {
		case r.LastStatus == store.StatusFailed:
			fmt.Fprintf(w, "[WARN] %s: last run failed: %s\n", label, r.LastError)
		case r.Truncated:
			fmt.Fprintf(w, "[WARN] %s: last run hit max_pages, watermark held\n", label)
		case r.Configured && !r.Disabled && !r.LastSynced.IsZero() && r.LastSynced.Before(stale):
			fmt.Fprintf(w, "[INFO] stale: %s last synced %d days ago\n", label, int(now.Sub(r.LastSynced).Hours()/24))
		}
	}
}

func humanAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
