package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lyricsync/ffmpeg"
	"lyricsync/task"
	"lyricsync/transcript"
	"lyricsync/whisper"
)

func newTranscribeCmd(state *appState) *cobra.Command {
	var (
		outputDir  string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio>",
		Short: "Run whisper on a local file and print the word timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath := args[0]
			if _, err := os.Stat(audioPath); err != nil {
				return fmt.Errorf("audio file: %w", err)
			}

			runner, err := whisper.NewRunner(state.cfg, state.log)
			if err != nil {
				return err
			}

			if outputDir == "" {
				outputDir = filepath.Dir(audioPath)
			}
			base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
			t := task.Task{
				ID:           base,
				AudioPath:    audioPath,
				ArtifactPath: filepath.Join(outputDir, base+".json"),
			}

			showProgress := !noProgress && term.IsTerminal(int(os.Stderr.Fd()))
			if err := runWithProgress(cmd.Context(), runner, t, showProgress); err != nil {
				return err
			}

			data, err := os.ReadFile(t.ArtifactPath)
			if err != nil {
				return fmt.Errorf("whisper finished without output: %w", err)
			}
			var total *float64
			if d, ok := ffmpeg.NewProber(state.cfg.FFProbeBin, state.log).Duration(cmd.Context(), audioPath); ok {
				total = &d
			}
			res, err := transcript.Build(data, total)
			if err != nil {
				return err
			}
			res.AudioFile = audioPath
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for the whisper JSON (default: next to the audio)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

// runWithProgress drives a 0-100 bar from whisper output using the same
// parser the service uses for task progress.
func runWithProgress(ctx context.Context, runner *whisper.Runner, t task.Task, show bool) error {
	var parser task.ProgressParser
	if !show {
		return runner.Run(ctx, t, func(line string) { parser.Feed(line) })
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("transcribing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	return runner.Run(ctx, t, func(line string) {
		if v, ok := parser.Feed(line); ok {
			_ = bar.Set(int(v))
		}
	})
}
