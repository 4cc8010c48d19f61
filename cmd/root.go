package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"rosettagw/logx"
)

var rootCmd = &cobra.Command{
	Use:   "rosettagw",
	Short: "Rosetta gateway for the token ledger",
	Long:  "Indexing and query gateway exposing a token ledger through the Rosetta Data and Construction APIs.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
