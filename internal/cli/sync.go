package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/savedsync/internal/adapter"
	"github.com/ppiankov/savedsync/internal/config"
	"github.com/ppiankov/savedsync/internal/platforms"
	"github.com/ppiankov/savedsync/internal/privacy"
	"github.com/ppiankov/savedsync/internal/store"
	"github.com/ppiankov/savedsync/internal/syncer"
	"github.com/ppiankov/savedsync/internal/tokens"
)

var (
	syncAccounts []string
	syncFull     bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch newly saved posts for configured accounts",
	RunE:  syncAction,
}

func init() {
	syncCmd.Flags().StringSliceVar(&syncAccounts, "account", nil, "account ids to sync (default: all enabled)")
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "ignore watermarks and walk every listing to its end")
	rootCmd.AddCommand(syncCmd)
}

// runtime is everything a command needs after config is loaded.
type runtime struct {
	cfg    *config.Config
	log    *logrus.Logger
	db     *store.Store
	tokens *tokens.Cache
}

func openRuntime() (*runtime, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	tc, err := tokens.Open(cfg.Storage.TokenCache, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open token cache: %w", err)
	}
	return &runtime{cfg: cfg, log: log, db: db, tokens: tc}, nil
}

func (r *runtime) Close() {
	if err := r.tokens.Close(); err != nil {
		r.log.WithError(err).Warn("close token cache")
	}
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Warn("close store")
	}
}

func (r *runtime) syncer(full bool) (*syncer.Syncer, error) {
	redactor, err := privacy.NewRedactor(r.cfg.Privacy.Redact.Enabled, r.cfg.Privacy.Redact.Patterns)
	if err != nil {
		return nil, fmt.Errorf("compile redact patterns: %w", err)
	}
	return syncer.New(platforms.Registry(), r.db, r.tokens, redactor, r.log, syncer.Options{
		Concurrency: r.cfg.Sync.Concurrency,
		Full:        full,
		Adapter:     adapterConfig(r.cfg.Sync),
	}), nil
}

func adapterConfig(sc config.SyncConfig) adapter.Config {
	return adapter.Config{
		MaxPages:   sc.MaxPages,
		PageSize:   sc.PageSize,
		MaxRetries: sc.MaxRetries,
		RetryDelay: sc.RetryDelay.Duration,
		Timeout:    sc.Timeout.Duration,
	}
}

// selectAccounts returns the named accounts, or every enabled one when ids
// is empty. Naming a disabled account selects it anyway.
func selectAccounts(cfg *config.Config, ids []string) ([]syncer.Account, error) {
	var picked []config.AccountConfig
	if len(ids) == 0 {
		picked = cfg.Enabled()
	} else {
		for _, id := range ids {
			a, ok := cfg.Account(id)
			if !ok {
				return nil, fmt.Errorf("unknown account %q", id)
			}
			picked = append(picked, a)
		}
	}

	out := make([]syncer.Account, 0, len(picked))
	for _, a := range picked {
		out = append(out, syncer.Account{
			ID:          a.ID,
			Platform:    a.Platform,
			BaseURL:     a.BaseURL,
			Credentials: adapter.Credentials(a.Credentials),
		})
	}
	return out, nil
}

func syncAction(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	accounts, err := selectAccounts(rt.cfg, syncAccounts)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No enabled accounts to sync.")
		return nil
	}

	s, err := rt.syncer(syncFull)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	results := s.Run(ctx, accounts)
	printSyncResults(os.Stdout, results)

	if rt.cfg.Storage.RetainDays > 0 {
		pruned, err := rt.db.PruneOld(ctx, rt.cfg.Storage.RetainDays)
		if err != nil {
			return fmt.Errorf("prune old: %w", err)
		}
		if pruned > 0 {
			fmt.Printf("Pruned %d posts older than %d days.\n", pruned, rt.cfg.Storage.RetainDays)
		}
	}

	if failed := syncer.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d accounts failed: %w", len(failed), len(results), syncer.Err(results))
	}
	return nil
}

func printSyncResults(w io.Writer, results []syncer.Result) {
	width := 7
	for _, r := range results {
		width = max(width, len(accountLabel(r.Platform, r.AccountID)))
	}

	var inserted, updated, failed int
	for _, r := range results {
		label := accountLabel(r.Platform, r.AccountID)
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "  %-*s  FAILED  %s\n", width, label, r.Err)
			continue
		}
		inserted += r.Inserted
		updated += r.Updated
		note := ""
		if r.Truncated {
			note = "  (truncated, watermark held)"
		}
		fmt.Fprintf(w, "  %-*s  %4d fetched  %4d new  %4d updated  %s%s\n",
			width, label, r.Fetched, r.Inserted, r.Updated, formatWatermark(r.Watermark), note)
	}

	fmt.Fprintf(w, "Synced %d accounts: %d new, %d updated", len(results)-failed, inserted, updated)
	if failed > 0 {
		fmt.Fprintf(w, " (%d failed)", failed)
	}
	fmt.Fprintln(w)
}

func accountLabel(platform, id string) string {
	return platform + "/" + id
}

func formatWatermark(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
