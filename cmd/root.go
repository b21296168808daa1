package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "streamgate",
	Short: "Frequency gating for streaming records",
	Long: `Streamgate filters a stream of JSON records through configurable
frequency-tracking stages: duplicate suppression, top-key tracking and
count-min sketch rate limits grouped by record fields.

The serve command exposes the pipeline over HTTP; run processes a file of
newline-delimited records on the command line; topk inspects the binary
encoding of a top-key tracker.
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
