package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lyricsync/config"
	"lyricsync/logging"
)

type appState struct {
	cfg *config.Config
	log *zap.Logger
}

// NewRootCmd builds the lyricsync command tree. Running it without a
// subcommand starts the HTTP service.
func NewRootCmd() *cobra.Command {
	state := &appState{}

	root := &cobra.Command{
		Use:           "lyricsync",
		Short:         "Transcribe songs with whisper and serve word-timed lyrics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if state.log != nil {
				_ = state.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), state)
		},
	}

	root.AddCommand(
		newServeCmd(state),
		newSegmentsCmd(state),
		newTranscribeCmd(state),
	)
	return root
}

func (s *appState) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	s.cfg = cfg
	s.log = logger
	return nil
}
