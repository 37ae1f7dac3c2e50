package main

import (
	"os"

	"github.com/spf13/cobra"

	"crateslsp/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "crates-lsp",
	Short: "Language server for Cargo.toml version diagnostics",
	Long:  `crates-lsp diagnoses dependency version requirements in Cargo manifests against the crates.io index`,
}

func main() {
	rootCmd.Version = version.Full()

	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "", "path to a crates-lsp.toml config file")
	rootCmd.PersistentFlags().String("endpoint", "", "registry index base URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token for authenticated registries")
	rootCmd.PersistentFlags().Int("concurrency", 0, "max concurrent registry fetches")
	rootCmd.PersistentFlags().Duration("fetch-timeout", 0, "per-request registry timeout (0 uses config)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging on stderr")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
