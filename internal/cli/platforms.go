package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/savedsync/internal/adapter"
	"github.com/ppiankov/savedsync/internal/platforms"
)

var (
	platformsAuthType string
	platformsWebhooks bool
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported platforms and their auth types",
	RunE:  platformsAction,
}

func init() {
	platformsCmd.Flags().StringVar(&platformsAuthType, "auth-type", "", "only platforms supporting this auth type (e.g. OAUTH2)")
	platformsCmd.Flags().BoolVar(&platformsWebhooks, "webhooks", false, "only platforms that support webhooks")
	rootCmd.AddCommand(platformsCmd)
}

func platformsAction(_ *cobra.Command, _ []string) error {
	return listPlatforms(os.Stdout, platforms.Registry(), platformsAuthType, platformsWebhooks)
}

func listPlatforms(w io.Writer, reg *adapter.Registry, authType string, webhooks bool) error {
	names := reg.Platforms()
	if authType != "" {
		names = intersect(names, reg.PlatformsByAuthType(adapter.AuthType(strings.ToUpper(authType))))
	}
	if webhooks {
		names = intersect(names, reg.PlatformsWithWebhooks())
	}

	if len(names) == 0 {
		fmt.Fprintln(w, "No matching platforms.")
		return nil
	}
	for _, name := range names {
		meta, ok := reg.Metadata(name)
		if !ok {
			continue
		}
		auth := make([]string, 0, len(meta.AuthTypes))
		for _, t := range meta.AuthTypes {
			auth = append(auth, string(t))
		}
		fmt.Fprintf(w, "%-10s %-14s %s\n", name, meta.DisplayName, strings.Join(auth, ", "))
		if meta.Description != "" {
			fmt.Fprintf(w, "           %s\n", meta.Description)
		}
	}
	return nil
}

// intersect keeps the elements of a that are also in b, in a's order.
func intersect(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	var out []string
	for _, s := range a {
		if in[s] {
			out = append(out, s)
		}
	}
	return out
}
