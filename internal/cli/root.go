// Package cli provides the command-line interface for savedsync.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/savedsync/internal/config"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

const defaultConfigDir = ".savedsync"

// configDir is set by the --config flag.
var configDir = defaultConfigDir

// logOutput is where command logs go. Command results go to stdout.
var logOutput io.Writer = os.Stderr

var rootCmd = &cobra.Command{
	Use:   "savedsync",
	Short: "Mirror saved posts and bookmarks into a local database",
	Long: "savedsync pulls the items you saved on Reddit, X and Pinboard, normalizes them, " +
		"and keeps an incremental local copy in SQLite.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("savedsync %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", defaultConfigDir, "config directory containing config.yaml")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from the log section of the config.
func newLogger(lc config.LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	log := logrus.New()
	log.SetOutput(logOutput)
	log.SetLevel(level)
	switch lc.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
