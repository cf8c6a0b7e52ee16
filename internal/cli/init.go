package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/savedsync/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s. Add credentials, then run 'savedsync check'.\n", configDir)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# savedsync configuration

storage:
  path: .savedsync/savedsync.db
  token_cache: .savedsync/tokens
  retain_days: 0 # keep everything

sync:
  max_pages: 100
  page_size: 100
  timeout: 30s
  max_retries: 3
  retry_delay: 1s
  concurrency: 4

log:
  level: info
  format: text

privacy:
  redact:
    enabled: false
    patterns: []

accounts:
  - id: reddit
    platform: reddit
    credentials_env:
      clientId: REDDIT_CLIENT_ID
      clientSecret: REDDIT_CLIENT_SECRET
      username: REDDIT_USERNAME
      password: REDDIT_PASSWORD

  - id: x
    platform: twitter
    disabled: true
    credentials_env:
      clientId: X_CLIENT_ID
      refreshToken: X_REFRESH_TOKEN

  - id: pinboard
    platform: pinboard
    disabled: true
    credentials:
      username: your_pinboard_user
    credentials_env:
      feedToken: PINBOARD_FEED_TOKEN # the secret in your private RSS feed URL
`
