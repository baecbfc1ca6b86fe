package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"lyricsync/ffmpeg"
	"lyricsync/transcript"
)

func newSegmentsCmd(state *appState) *cobra.Command {
	var (
		audioPath string
		duration  float64
	)

	cmd := &cobra.Command{
		Use:   "segments <artifact.json>",
		Short: "Build the word timeline from an existing whisper JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read artifact: %w", err)
			}

			var total *float64
			switch {
			case duration > 0:
				total = &duration
			case audioPath != "":
				if d, ok := ffmpeg.NewProber(state.cfg.FFProbeBin, state.log).Duration(cmd.Context(), audioPath); ok {
					total = &d
				}
			}

			res, err := transcript.Build(data, total)
			if err != nil {
				return err
			}
			res.AudioFile = audioPath
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "audio file to probe for the total duration")
	cmd.Flags().Float64Var(&duration, "duration", 0, "total duration in seconds (skips probing)")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
