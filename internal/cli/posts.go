package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/savedsync/internal/export"
	"github.com/ppiankov/savedsync/internal/store"
)

var (
	postsPlatform string
	postsAccount  string
	postsSince    string
	postsLimit    int
	postsFormat   string
	noColor       bool
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List stored posts, newest saved first",
	RunE:  postsAction,
}

func init() {
	postsCmd.Flags().StringVar(&postsPlatform, "platform", "", "only posts from this platform")
	postsCmd.Flags().StringVar(&postsAccount, "account", "", "only posts from this account id")
	postsCmd.Flags().StringVar(&postsSince, "since", "", "time window (e.g. 7d, 48h)")
	postsCmd.Flags().IntVar(&postsLimit, "limit", 20, "maximum posts to show (0 for all)")
	postsCmd.Flags().StringVar(&postsFormat, "format", "terminal", "output format: terminal, markdown, json")
	postsCmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI colors")
	rootCmd.AddCommand(postsCmd)
}

func postsAction(cmd *cobra.Command, _ []string) error {
	formatter, err := export.New(postsFormat, !noColor)
	if err != nil {
		return err
	}

	filter := store.PostFilter{Platform: postsPlatform, AccountID: postsAccount}
	var window time.Duration
	if postsSince != "" {
		window, err = parseDuration(postsSince)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		filter.Since = time.Now().Add(-window)
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	total, err := rt.db.CountPosts(ctx, filter)
	if err != nil {
		return err
	}
	filter.Limit = postsLimit
	recs, err := rt.db.ListPosts(ctx, filter)
	if err != nil {
		return err
	}

	return formatter.Format(os.Stdout, export.Input{Records: recs, Total: total, Since: window})
}

// parseDuration handles both Go durations and "Nd" day notation.
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
