package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crateslsp/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crates-lsp version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.Full())
	},
}
