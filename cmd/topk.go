package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/streamgate-io/streamgate/topk"
)

// topkCmd represents the topk command
var topkCmd = &cobra.Command{
	Use:   "topk <encoded-file>",
	Short: "Decode an encoded top-key tracker and print its entries",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("path", args[0]).Msg("could not read file")
		}
		topper := topk.New(false)
		if err := topper.BytesDecode(data, 1); err != nil {
			log.Fatal().Err(err).Str("path", args[0]).Msg("could not decode tracker")
		}
		out, err := json.MarshalIndent(topper.SortedEntries(), "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("could not encode entries")
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(topkCmd)
}
