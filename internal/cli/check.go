package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/savedsync/internal/adapter"
)

var checkAccounts []string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that each platform accepts the configured credentials",
	RunE:  checkAction,
}

func init() {
	checkCmd.Flags().StringSliceVar(&checkAccounts, "account", nil, "account ids to check (default: all enabled)")
	rootCmd.AddCommand(checkCmd)
}

func checkAction(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	accounts, err := selectAccounts(rt.cfg, checkAccounts)
	if err != nil {
		return err
	}
	s, err := rt.syncer(false)
	if err != nil {
		return err
	}

	failed := 0
	for _, acc := range accounts {
		label := accountLabel(acc.Platform, acc.ID)
		ok, err := s.Validate(cmd.Context(), acc)
		switch {
		case err != nil:
			printCheck(false, "%s: %s", label, adapter.CodeOf(err))
			printInfo("%v", err)
			failed++
		case !ok:
			printCheck(false, "%s: credentials rejected", label)
			failed++
		default:
			printCheck(true, "%s", label)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d accounts failed credential check", failed, len(accounts))
	}
	return nil
}
