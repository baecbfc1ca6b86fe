// lyricsync/task/manager_test.go
package task

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricsync/config"
)

const sampleArtifact = `{"transcription":[
	{"offsets": {"from": 1000, "to": 2000}, "text": " hola"},
	{"offsets": {"from": 2000, "to": 4000}, "text": " que tal"}
]}`

// mockRunner is a mock implementation of the Runner interface for testing.
type mockRunner struct {
	runFunc func(ctx context.Context, t Task, onLine func(string)) error
}

func (m *mockRunner) Run(ctx context.Context, t Task, onLine func(string)) error {
	if m.runFunc != nil {
		return m.runFunc(ctx, t, onLine)
	}
	// Default success behavior
	onLine("main: processing 'a.mp3' (80000 samples, 5.0 sec)")
	onLine("[00:00:01.000 --> 00:00:02.000]  hola")
	return os.WriteFile(t.ArtifactPath, []byte(sampleArtifact), 0o644)
}

type mockProber struct {
	seconds float64
	ok      bool
}

func (m mockProber) Duration(ctx context.Context, audioPath string) (float64, bool) {
	return m.seconds, m.ok
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		MaxConcurrency: 1,
		MaxInputSize:   1024,
		UploadDir:      t.TempDir(),
	}
}

func newTestManager(t *testing.T, runner Runner, prober DurationProber) *Manager {
	t.Helper()
	mgr, err := NewManager(testConfig(t), runner, prober, nil)
	require.NoError(t, err)
	return mgr
}

func fileSource(body string) Source {
	return Source{File: strings.NewReader(body), Filename: "cancion.mp3"}
}

func waitForStatus(t *testing.T, mgr *Manager, id string, want Status) Task {
	t.Helper()
	var got Task
	require.Eventually(t, func() bool {
		got, _ = mgr.Get(id)
		return got.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

func TestTaskManager_Submit(t *testing.T) {
	mgr := newTestManager(t, &mockRunner{}, mockProber{})

	t.Run("file payload", func(t *testing.T) {
		task, err := mgr.Submit(context.Background(), fileSource("ID3audio"))
		require.NoError(t, err)
		assert.NotEmpty(t, task.ID)
		assert.Equal(t, StatusProcessing, task.Status)
		assert.Equal(t, "/uploads/"+task.ID+".mp3", task.AudioFile)

		data, err := os.ReadFile(task.AudioPath)
		require.NoError(t, err)
		assert.Equal(t, "ID3audio", string(data))

		report, err := mgr.Progress(task.ID)
		require.NoError(t, err)
		assert.Equal(t, ProgressReport{Status: StatusProcessing, Progress: 0}, report)
	})

	t.Run("no input", func(t *testing.T) {
		_, err := mgr.Submit(context.Background(), Source{URL: "  "})
		assert.ErrorIs(t, err, ErrNoInput)
		assert.Len(t, mgr.List(), 1)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := mgr.Submit(context.Background(), fileSource(strings.Repeat("x", 2048)))
		assert.ErrorIs(t, err, ErrBadInput)
	})
}

func TestTaskManager_SubmitURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.ogg" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("OggS"))
	}))
	defer srv.Close()

	mgr := newTestManager(t, &mockRunner{}, mockProber{})

	task, err := mgr.Submit(context.Background(), Source{URL: srv.URL + "/song.ogg"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(task.AudioPath, ".ogg"))

	_, err = mgr.Submit(context.Background(), Source{URL: srv.URL + "/missing.ogg"})
	assert.ErrorIs(t, err, ErrDownload)
	assert.Len(t, mgr.List(), 1, "failed downloads must not create tasks")

	_, err = mgr.Submit(context.Background(), Source{URL: "ftp://example.com/a.mp3"})
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestTaskManager_Progress(t *testing.T) {
	mgr := newTestManager(t, &mockRunner{}, mockProber{})
	_, err := mgr.Progress("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskManager_ProcessTask(t *testing.T) {
	t.Run("successful processing", func(t *testing.T) {
		mgr := newTestManager(t, &mockRunner{}, mockProber{seconds: 5, ok: true})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mgr.Start(ctx)

		task, err := mgr.Submit(ctx, fileSource("audio"))
		require.NoError(t, err)

		done := waitForStatus(t, mgr, task.ID, StatusDone)
		assert.Equal(t, 100.0, done.Progress)

		res, err := mgr.Result(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.Offset)
		assert.Equal(t, task.AudioFile, res.AudioFile)
		require.NotNil(t, res.TotalDuration)
		assert.Equal(t, 5.0, *res.TotalDuration)
		require.Len(t, res.Segments, 5)
		assert.Equal(t, "que", res.Segments[2].Text)
		assert.Equal(t, 4.0, res.Segments[4].Start)
		assert.Equal(t, 5.0, res.Segments[4].End)
	})

	t.Run("failed processing keeps progress", func(t *testing.T) {
		runner := &mockRunner{
			runFunc: func(ctx context.Context, t Task, onLine func(string)) error {
				onLine("progress = 30%")
				return errors.New("whisper failed")
			},
		}
		mgr := newTestManager(t, runner, mockProber{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mgr.Start(ctx)

		task, _ := mgr.Submit(ctx, fileSource("audio"))
		failed := waitForStatus(t, mgr, task.ID, StatusError)
		assert.Equal(t, 30.0, failed.Progress)
		assert.Equal(t, "whisper failed", failed.Error)

		_, err := mgr.Result(ctx, task.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("zero exit without artifact is an error", func(t *testing.T) {
		runner := &mockRunner{
			runFunc: func(ctx context.Context, t Task, onLine func(string)) error { return nil },
		}
		mgr := newTestManager(t, runner, mockProber{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mgr.Start(ctx)

		task, _ := mgr.Submit(ctx, fileSource("audio"))
		waitForStatus(t, mgr, task.ID, StatusError)
	})

	t.Run("timeout", func(t *testing.T) {
		runner := &mockRunner{
			runFunc: func(ctx context.Context, t Task, onLine func(string)) error {
				<-ctx.Done() // Block until context is canceled
				return ctx.Err()
			},
		}
		cfg := testConfig(t)
		cfg.WhisperTimeout = 20 * time.Millisecond
		mgr, err := NewManager(cfg, runner, mockProber{}, nil)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mgr.Start(ctx)

		task, _ := mgr.Submit(ctx, fileSource("audio"))
		failed := waitForStatus(t, mgr, task.ID, StatusError)
		assert.Contains(t, failed.Error, "timed out")
	})
}

// blockingRunner holds every run until release is closed.
func blockingRunner(release <-chan struct{}) *mockRunner {
	return &mockRunner{
		runFunc: func(ctx context.Context, t Task, onLine func(string)) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return ctx.Err()
		},
	}
}

func TestNewManager_RejectsConcurrency(t *testing.T) {
	for _, n := range []int{0, -1} {
		cfg := testConfig(t)
		cfg.MaxConcurrency = n
		_, err := NewManager(cfg, &mockRunner{}, mockProber{}, nil)
		assert.Error(t, err, "max concurrency %d", n)
	}
}

func TestTaskManager_SubmitDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	cfg := testConfig(t)
	cfg.MaxConcurrency = 1
	mgr, err := NewManager(cfg, blockingRunner(release), mockProber{}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)

	const total = 150
	done := make(chan error, 1)
	go func() {
		for i := 0; i < total; i++ {
			if _, err := mgr.Submit(context.Background(), fileSource("audio")); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submissions blocked behind the running task")
	}

	tasks := mgr.List()
	require.Len(t, tasks, total)
	for _, tk := range tasks {
		assert.Equal(t, StatusProcessing, tk.Status)
		assert.Equal(t, 0.0, tk.Progress)
	}
}

func TestTaskManager_ResultNotReady(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	mgr := newTestManager(t, blockingRunner(release), mockProber{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)

	task, err := mgr.Submit(ctx, fileSource("audio"))
	require.NoError(t, err)

	_, err = mgr.Result(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = mgr.Result(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = mgr.Result(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskManager_ResultFromDisk(t *testing.T) {
	mgr := newTestManager(t, &mockRunner{}, mockProber{})
	dir := mgr.cfg.UploadDir
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old_1.json"), []byte(sampleArtifact), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old_1.wav"), []byte("RIFF"), 0o644))

	res, err := mgr.Result(context.Background(), "old_1")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/old_1.wav", res.AudioFile)
	assert.Nil(t, res.TotalDuration)
	require.Len(t, res.Segments, 4)
	assert.Equal(t, "tal", res.Segments[3].Text)
}

func TestTaskManager_RemoveExpiredFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.FileLifetime = time.Minute
	mgr, err := NewManager(cfg, &mockRunner{}, mockProber{}, nil)
	require.NoError(t, err)

	audio := filepath.Join(cfg.UploadDir, "a.mp3")
	artifact := filepath.Join(cfg.UploadDir, "a.json")
	require.NoError(t, os.WriteFile(audio, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(artifact, []byte("{}"), 0o644))
	mgr.tasks.Put(Task{ID: "a", Status: StatusDone, AudioPath: audio, ArtifactPath: artifact, CompletedAt: time.Now().Add(-2 * time.Minute)})
	mgr.tasks.Put(Task{ID: "b", Status: StatusProcessing})

	mgr.removeExpiredFiles(time.Now())

	assert.NoFileExists(t, audio)
	assert.NoFileExists(t, artifact)
	kept, ok := mgr.Get("a")
	require.True(t, ok, "task records are never removed")
	assert.True(t, kept.FilesRemoved)
}

func TestTaskManager_GetFilePath(t *testing.T) {
	mgr := newTestManager(t, &mockRunner{}, mockProber{})
	require.NoError(t, os.WriteFile(filepath.Join(mgr.cfg.UploadDir, "a.mp3"), []byte("x"), 0o644))

	p, err := mgr.GetFilePath("a.mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(mgr.cfg.UploadDir, "a.mp3"), p)

	_, err = mgr.GetFilePath("../a.mp3")
	assert.Error(t, err)
	_, err = mgr.GetFilePath("b.mp3")
	assert.Error(t, err)
}
