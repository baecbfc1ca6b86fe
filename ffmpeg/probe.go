package ffmpeg

import (
	"context"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Prober reads container durations with ffprobe.
type Prober struct {
	bin string
	log *zap.Logger
}

func NewProber(bin string, logger *zap.Logger) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{bin: bin, log: logger.Named("ffprobe")}
}

// Duration returns the audio length in seconds. ok is false when ffprobe is
// missing, fails, or prints something that is not a number; callers treat
// that as an unknown duration rather than an error.
func (p *Prober) Duration(ctx context.Context, audioPath string) (float64, bool) {
	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	out, err := cmd.Output()
	if err != nil {
		p.log.Debug("duration unavailable", zap.String("audio", audioPath), zap.Error(err))
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		p.log.Debug("unparseable duration", zap.String("audio", audioPath), zap.ByteString("output", out))
		return 0, false
	}
	return v, true
}
