package task

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"go.uber.org/zap"

	"lyricsync/config"
	"lyricsync/metrics"
	"lyricsync/transcript"
)

// UploadsPrefix is the public path stored audio is served under.
const UploadsPrefix = "/uploads/"

// Runner executes whisper for a task and hands every output line to onLine
// as soon as it is read. It returns nil only on a zero exit status.
type Runner interface {
	Run(ctx context.Context, t Task, onLine func(line string)) error
}

// DurationProber reports an audio file's length in seconds; ok is false
// when it cannot be determined.
type DurationProber interface {
	Duration(ctx context.Context, audioPath string) (seconds float64, ok bool)
}

type Manager struct {
	cfg            *config.Config
	log            *zap.Logger
	tasks          *Store
	concurrencySem chan struct{}
	runner         Runner
	prober         DurationProber
	client         *http.Client

	// ctx is set by Start before started is closed.
	ctx       context.Context
	started   chan struct{}
	startOnce sync.Once
}

func NewManager(cfg *config.Config, runner Runner, prober DurationProber, logger *zap.Logger) (*Manager, error) {
	if cfg.UploadDir == "" {
		return nil, errors.New("upload directory is not configured")
	}
	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max concurrency must be at least 1, got %d", cfg.MaxConcurrency)
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create upload directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		cfg:            cfg,
		log:            logger.Named("task"),
		tasks:          NewStore(),
		concurrencySem: make(chan struct{}, cfg.MaxConcurrency),
		runner:         runner,
		prober:         prober,
		client:         http.DefaultClient,
		started:        make(chan struct{}),
	}
	return m, nil
}

// Start releases submitted tasks to run and starts the cleanup loop.
// Tasks submitted before Start wait for it.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.ctx = ctx
		close(m.started)
		m.log.Info("task manager started", zap.Int("max_concurrency", m.cfg.MaxConcurrency))
		if m.cfg.FileLifetime > 0 {
			go m.cleanupLoop(ctx)
		}
	})
}

// run waits for a free processing slot and then processes t. There is one
// run goroutine per submitted task, so submitting never waits for a slot.
func (m *Manager) run(t Task) {
	<-m.started
	ctx := m.ctx

	select {
	case m.concurrencySem <- struct{}{}:
	case <-ctx.Done():
		m.fail(t.ID, ctx.Err())
		return
	}
	defer func() { <-m.concurrencySem }() // Release slot
	m.processTask(ctx, t)
}

// processTask runs whisper for one task. Its Tracker is the only writer of
// the task record until the terminal state is set.
func (m *Manager) processTask(parentCtx context.Context, t Task) {
	taskCtx := parentCtx
	if m.cfg.WhisperTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(parentCtx, m.cfg.WhisperTimeout)
		defer cancel()
	}

	log := m.log.With(zap.String("task_id", t.ID))
	log.Info("transcription started", zap.String("audio", t.AudioPath))

	metrics.RunningTranscriptions.Inc()
	defer metrics.RunningTranscriptions.Dec()
	started := time.Now()

	tracker := NewTracker(m.tasks, t.ID)
	err := m.runner.Run(taskCtx, t, tracker.Observe)
	if err != nil && taskCtx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("transcription timed out after %s: %w", m.cfg.WhisperTimeout, err)
	}
	final := tracker.Finish(err, t.ArtifactPath)

	elapsed := time.Since(started)
	metrics.RecordFinished(string(final.Status), elapsed.Seconds())
	if final.Status == StatusError {
		log.Warn("transcription failed",
			zap.String("error", final.Error),
			zap.Float64("progress", final.Progress),
			zap.Duration("elapsed", elapsed))
		return
	}
	log.Info("transcription done", zap.Duration("elapsed", elapsed))
}

func (m *Manager) fail(id string, err error) {
	m.tasks.Update(id, func(t Task) Task {
		t.Status = StatusError
		t.Error = err.Error()
		t.CompletedAt = time.Now()
		return t
	})
}

// cleanupLoop periodically removes the files of finished tasks. Task records
// themselves are kept.
func (m *Manager) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.FileLifetime / 4) // Check 4 times per lifetime
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("cleanup loop shutting down")
			return
		case <-ticker.C:
			m.removeExpiredFiles(time.Now())
		}
	}
}

func (m *Manager) removeExpiredFiles(now time.Time) {
	for _, t := range m.tasks.List() {
		if !t.Status.Terminal() || t.FilesRemoved || now.Sub(t.CompletedAt) <= m.cfg.FileLifetime {
			continue
		}
		m.log.Info("removing expired task files", zap.String("task_id", t.ID))
		for _, p := range []string{t.AudioPath, t.ArtifactPath} {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				m.log.Warn("could not remove file", zap.String("path", p), zap.Error(err))
			}
		}
		m.tasks.Update(t.ID, func(t Task) Task {
			t.FilesRemoved = true
			return t
		})
	}
}

// Submit stores the source audio under a fresh task ID and schedules the
// transcription. It returns as soon as the task is registered, however many
// tasks are already waiting for a slot.
func (m *Manager) Submit(ctx context.Context, src Source) (Task, error) {
	if src.File == nil && strings.TrimSpace(src.URL) == "" {
		return Task{}, ErrNoInput
	}
	src.URL = strings.TrimSpace(src.URL)

	id := fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix())
	audioPath := filepath.Join(m.cfg.UploadDir, id+src.extension())
	if err := m.saveSource(ctx, src, audioPath); err != nil {
		return Task{}, err
	}

	t := Task{
		ID:           id,
		Status:       StatusProcessing,
		AudioFile:    PublicPath(audioPath),
		AudioPath:    audioPath,
		ArtifactPath: filepath.Join(m.cfg.UploadDir, id+".json"),
		CreatedAt:    time.Now(),
	}
	m.tasks.Put(t)
	metrics.RecordSubmitted(src.kind())
	go m.run(t)

	m.log.Info("task submitted", zap.String("task_id", t.ID), zap.String("source", src.kind()))
	return t, nil
}

func (m *Manager) Get(taskID string) (Task, bool) {
	return m.tasks.Get(taskID)
}

func (m *Manager) List() []Task {
	return m.tasks.List()
}

// Progress is a pure lookup; unknown IDs yield ErrNotFound.
func (m *Manager) Progress(taskID string) (ProgressReport, error) {
	t, ok := m.tasks.Get(taskID)
	if !ok {
		return ProgressReport{}, ErrNotFound
	}
	return ProgressReport{Status: t.Status, Progress: t.Progress}, nil
}

// Result builds the word timeline from a finished task's artifact. Tasks
// that are still running or failed, and missing artifacts, yield ErrNotReady.
// Artifacts left on disk by a previous process are served too.
func (m *Manager) Result(ctx context.Context, taskID string) (*transcript.Result, error) {
	if !validTaskID(taskID) {
		return nil, ErrNotFound
	}

	audioPath := ""
	if t, ok := m.tasks.Get(taskID); ok {
		if t.Status != StatusDone {
			return nil, ErrNotReady
		}
		audioPath = t.AudioPath
	}

	data, err := os.ReadFile(filepath.Join(m.cfg.UploadDir, taskID+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotReady
		}
		return nil, fmt.Errorf("read transcription artifact: %w", err)
	}
	if audioPath == "" {
		audioPath = m.findAudio(taskID)
	}

	var total *float64
	if audioPath != "" && m.prober != nil {
		if d, ok := m.prober.Duration(ctx, audioPath); ok {
			total = &d
		}
	}

	res, err := transcript.Build(data, total)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", taskID, err)
	}
	res.AudioFile = PublicPath(taskID + defaultAudioExt)
	if audioPath != "" {
		res.AudioFile = PublicPath(audioPath)
	}
	metrics.RecordResult(res.Encoding.String(), res.Denominator)
	return res, nil
}

// findAudio locates <id>.<ext> in the upload directory.
func (m *Manager) findAudio(taskID string) string {
	matches, _ := filepath.Glob(filepath.Join(m.cfg.UploadDir, taskID+".*"))
	for _, p := range matches {
		if filepath.Ext(p) != ".json" {
			return p
		}
	}
	return ""
}

// GetFilePath resolves a stored upload for static serving.
func (m *Manager) GetFilePath(filename string) (string, error) {
	// Security: Prevent path traversal
	cleanFilename := filepath.Base(filename)
	if cleanFilename != filename || cleanFilename == "." || cleanFilename == ".." {
		return "", fmt.Errorf("invalid filename")
	}

	fullPath := filepath.Join(m.cfg.UploadDir, cleanFilename)
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("file not found")
	}
	return fullPath, nil
}

var taskIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validTaskID(id string) bool {
	return taskIDRe.MatchString(id)
}

// PublicPath is the URL path a stored file is served at.
func PublicPath(localPath string) string {
	return UploadsPrefix + filepath.Base(localPath)
}
