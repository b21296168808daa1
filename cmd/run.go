package cmd

import (
	"bufio"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/streamgate-io/streamgate/filters"
	"github.com/streamgate-io/streamgate/records"
	st "github.com/streamgate-io/streamgate/settings"
)

var runOutputPath string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <records.ndjson>",
	Short: "Filter a file of newline-delimited JSON records",
	Long: `Reads records from the given file (or stdin when the path is -),
applies the configured pipeline and writes accepted records to the output.
Cached sketches are flushed to the data directory when the stream ends.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st.ResetSettings()

		cfg, err := filters.LoadPipelineConfig(st.Gate.PipelineConfig)
		if err != nil {
			log.Fatal().Err(err).Str("path", st.Gate.PipelineConfig).Msg("could not load pipeline config")
		}
		if cfg.CMSLimit != nil && cfg.CMSLimit.DataDir == "" {
			cfg.CMSLimit.DataDir = st.Gate.DataDir
		}
		pipe, limit, _, err := cfg.Build()
		if err != nil {
			log.Fatal().Err(err).Msg("could not build pipeline")
		}

		input := os.Stdin
		if args[0] != "-" {
			input, err = os.Open(args[0])
			if err != nil {
				log.Fatal().Err(err).Str("path", args[0]).Msg("could not open input")
			}
			defer input.Close()
		}
		output := os.Stdout
		outPath := runOutputPath
		if outPath == "" {
			outPath = st.Settings.Run.OutputPath
		}
		if outPath != "" {
			output, err = os.Create(outPath)
			if err != nil {
				log.Fatal().Err(err).Str("path", outPath).Msg("could not create output")
			}
			defer output.Close()
		}

		meta := &filters.Params{Source: args[0]}
		writer := bufio.NewWriter(output)
		scanner := bufio.NewScanner(input)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		totals := map[string]int{}
		var read, accepted int64
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			read++
			rec, err := records.FromJSON(append([]byte{}, line...))
			if err != nil {
				filters.HandleFilterError(meta, "input", nil, err, "skipping malformed record %d", read)
				continue
			}
			states, kept := pipe.Run([]*records.Record{rec}, meta)
			for state, n := range states {
				totals[state] += n
			}
			for _, out := range kept {
				accepted++
				if _, err := writer.Write(append(out.Bytes(), '\n')); err != nil {
					log.Fatal().Err(err).Msg("could not write accepted record")
				}
			}
			if st.Settings.Run.ProgressEvery > 0 && read%st.Settings.Run.ProgressEvery == 0 {
				log.Info().Int64("read", read).Int64("accepted", accepted).Msg("progress")
			}
		}
		if err := scanner.Err(); err != nil {
			log.Fatal().Err(err).Msg("could not read input")
		}
		if err := writer.Flush(); err != nil {
			log.Fatal().Err(err).Msg("could not flush output")
		}
		if limit != nil {
			if err := limit.Close(); err != nil {
				log.Fatal().Err(err).Msg("could not flush sketches")
			}
		}

		summary := log.Info().Int64("read", read).Int64("accepted", accepted)
		for state, n := range totals {
			summary = summary.Int(state, n)
		}
		summary.Msg("run complete")
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "write accepted records here instead of stdout")
	rootCmd.AddCommand(runCmd)
}
