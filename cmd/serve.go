package cmd

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/streamgate-io/streamgate/filters"
	"github.com/streamgate-io/streamgate/restapi"
	st "github.com/streamgate-io/streamgate/settings"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Launch the streamgate server",
	Long:  `Starts the HTTP server that filters posted records and reports top keys.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		st.ResetSettings()

		cfg, err := filters.LoadPipelineConfig(st.Gate.PipelineConfig)
		if err != nil {
			log.Fatal().Err(err).Str("path", st.Gate.PipelineConfig).Msg("could not load pipeline config")
		}
		if cfg.CMSLimit != nil && cfg.CMSLimit.DataDir == "" {
			cfg.CMSLimit.DataDir = st.Gate.DataDir
		}
		pipe, limit, topKeys, err := cfg.Build()
		if err != nil {
			log.Fatal().Err(err).Msg("could not build pipeline")
		}

		gate := restapi.NewGate(pipe, limit, topKeys)

		// flush cached sketches on shutdown
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-stop
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			gate.Stop()
			os.Exit(0)
		}()

		log.Info().Str("addr", st.Settings.ListenAddr).Strs("stages", pipe.Names()).Msg("listening")
		log.Fatal().Err(http.ListenAndServe(st.Settings.ListenAddr, gate.Router)).Msg("server stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
