package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/savedsync/internal/adapter"
	"github.com/ppiankov/savedsync/internal/config"
	"github.com/ppiankov/savedsync/internal/platforms"
	"github.com/ppiankov/savedsync/internal/store"
	"github.com/ppiankov/savedsync/internal/tokens"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, storage and account setup",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config.yaml (%d accounts, %d enabled)", len(cfg.Accounts), len(cfg.Enabled()))

	log, err := newLogger(cfg.Log)
	if err != nil {
		printCheck(false, "logger: %v", err)
		return fmt.Errorf("some checks failed")
	}
	log.SetOutput(io.Discard)

	// Database
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		printCheck(false, "database: %v", err)
		ok = false
	} else {
		defer func() { _ = db.Close() }()
		printCheck(true, "database %s", cfg.Storage.Path)
	}

	// Token cache
	tc, err := tokens.Open(cfg.Storage.TokenCache, log)
	if err != nil {
		printCheck(false, "token cache: %v", err)
		ok = false
	} else {
		defer func() { _ = tc.Close() }()
		printCheck(true, "token cache %s", cfg.Storage.TokenCache)
	}

	// Accounts
	reg := platforms.Registry()
	for _, a := range cfg.Enabled() {
		label := accountLabel(a.Platform, a.ID)
		if !reg.Has(a.Platform) {
			printCheck(false, "%s: unknown platform (supported: %v)", label, reg.Platforms())
			ok = false
			continue
		}
		creds := adapter.Credentials(a.Credentials).Clone()
		if tc != nil {
			if cached, err := tc.Apply(cmd.Context(), a.Platform, a.ID, creds); err == nil {
				creds = cached
			}
		}
		if _, err := reg.Create(a.Platform, creds, adapter.Config{Logger: log}); err != nil {
			printCheck(false, "%s: %v", label, err)
			ok = false
			continue
		}
		printCheck(true, "%s", label)
	}

	// Last run health (info-level, non-fatal)
	if db != nil {
		checkSyncHealth(cmd.Context(), db)
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkSyncHealth(ctx context.Context, db *store.Store) {
	states, err := db.SyncStates(ctx)
	if err != nil || len(states) == 0 {
		return // no data yet, skip
	}
	for _, s := range states {
		if s.LastStatus == store.StatusFailed {
			printInfo("%s: last run %s failed: %s", accountLabel(s.Platform, s.AccountID), s.LastRunID, s.LastError)
		}
	}
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
