package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lyricsync/api"
	"lyricsync/ffmpeg"
	"lyricsync/task"
	"lyricsync/whisper"
)

func newServeCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the transcription HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), state)
		},
	}
}

func runServe(parent context.Context, state *appState) error {
	cfg, log := state.cfg, state.log
	if parent == nil {
		parent = context.Background()
	}

	// 1. Initialize dependencies (Runner first)
	runner, err := whisper.NewRunner(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize whisper runner: %w", err)
	}
	prober := ffmpeg.NewProber(cfg.FFProbeBin, log)

	// 2. Initialize task manager and inject the runner
	taskManager, err := task.NewManager(cfg, runner, prober, log)
	if err != nil {
		return fmt.Errorf("failed to initialize task manager: %w", err)
	}

	// 3. Set up router and server
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.SetupRouter(taskManager, cfg, log),
	}

	// 4. Start background services and HTTP server
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	taskManager.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("upload_dir", cfg.UploadDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// 5. Wait for interrupt signal for graceful shutdown
		<-gctx.Done()
		stop()
		log.Info("shutting down gracefully, press Ctrl+C again to force")

		// The server has 5 seconds to finish the requests it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info("server exiting")
	return err
}
