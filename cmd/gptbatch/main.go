// Command gptbatch sends every line of its input to a chat completion endpoint and prints the answers in input order.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "gptbatch",
		Short:        "Run a batch of chat completion requests",
		Long:         "Run a batch of chat completion requests concurrently over a bounded connection pool and print the answers in input order.",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(NewRunCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
