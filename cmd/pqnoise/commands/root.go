// Package commands implements the pqnoise CLI.
package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	home     string
	logLevel string
)

// Execute builds and runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:           "pqnoise",
		Short:         "Post-quantum secure transport toolkit",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".pqnoise")
			}
			return os.MkdirAll(home, 0o700)
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default ~/.pqnoise)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(demoCmd(), keysCmd(), selftestCmd(), versionCmd())
	return root.Execute()
}
