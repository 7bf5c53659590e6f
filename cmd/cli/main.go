package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/myrjola/doppel/cmd/cli/investigate"
	"github.com/spf13/cobra"
)

func init() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddGroup(investigate.Group)
	rootCmd.AddCommand(investigate.Start)
	rootCmd.AddCommand(investigate.Confirm)
	rootCmd.AddCommand(investigate.Status)
	rootCmd.AddCommand(investigate.Chat)
}

var rootCmd = &cobra.Command{
	Use:  "doppel-cli",
	Long: `Command line client for the doppel investigation server`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
