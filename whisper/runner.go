package whisper

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"lyricsync/config"
	"lyricsync/task"
)

// tailLines is how much process output is kept for error reports.
const tailLines = 20

type Runner struct {
	cfg   *config.Config
	log   *zap.Logger
	extra []string
}

func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	// Ensure whisper binary is executable
	if _, err := exec.LookPath(cfg.WhisperBin); err != nil {
		return nil, fmt.Errorf("whisper binary not found or not in PATH: %s", cfg.WhisperBin)
	}

	extra, err := SplitArgs(cfg.WhisperExtraArgs)
	if err != nil {
		return nil, err
	}
	if err := ValidateExtraArgs(extra); err != nil {
		return nil, fmt.Errorf("invalid WHISPER_EXTRA_ARGS: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		cfg:   cfg,
		log:   logger.Named("whisper"),
		extra: extra,
	}, nil
}

// Run executes whisper for a task. stdout and stderr are merged into one
// stream that is handed to onLine line by line while the process runs.
func (r *Runner) Run(ctx context.Context, t task.Task, onLine func(string)) error {
	// 1. Check system resources before starting
	if err := r.checkResources(); err != nil {
		return fmt.Errorf("insufficient system resources: %w", err)
	}

	// 2. Prepare command; whisper appends .json to the -of prefix
	prefix := strings.TrimSuffix(t.ArtifactPath, ".json")
	args := BuildArgs(r.cfg.WhisperModel, r.cfg.WhisperLanguage, t.AudioPath, prefix, r.extra)
	cmd := exec.CommandContext(ctx, r.cfg.WhisperBin, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("could not attach to whisper output: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	log := r.log.With(zap.String("task_id", t.ID))
	log.Debug("executing", zap.String("cmd", cmd.Path), zap.Strings("args", args))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not start whisper: %w", err)
	}

	// 3. Stream output; Wait must only run after the pipe is drained
	tail := streamLines(stdout, func(line string) {
		log.Debug("whisper output", zap.String("line", line))
		if onLine != nil {
			onLine(line)
		}
	})

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("whisper execution failed: %w: %s", err, strings.Join(tail, " | "))
	}
	return nil
}

// streamLines feeds every line of rd to fn and returns the last few lines.
// Both '\n' and '\r' end a line since whisper redraws progress in place.
func streamLines(rd io.Reader, fn func(string)) []string {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(scanLinesOrCR)

	var tail []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fn(line)
		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[1:]
		}
	}
	// Keep the pipe drained if scanning stopped early (overlong line).
	_, _ = io.Copy(io.Discard, rd)
	return tail
}

func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
