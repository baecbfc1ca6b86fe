package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lyricsync/config"
	"lyricsync/task"
)

type Handler struct {
	taskManager *task.Manager
	cfg         *config.Config
	log         *zap.Logger
}

func NewHandler(tm *task.Manager, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		taskManager: tm,
		cfg:         cfg,
		log:         logger,
	}
}

// writeError maps domain errors onto HTTP statuses. The body is always
// {"error": "..."}.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, task.ErrNoInput), errors.Is(err, task.ErrBadInput), errors.Is(err, task.ErrDownload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleTranscribe accepts a multipart "file" upload or a "url" form field.
func (h *Handler) handleTranscribe(c *gin.Context) {
	src := task.Source{URL: strings.TrimSpace(c.PostForm("url"))}

	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		if src.URL != "" {
			h.writeError(c, fmt.Errorf("%w: send either a file or a url, not both", task.ErrBadInput))
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.writeError(c, fmt.Errorf("%w: unreadable upload: %v", task.ErrBadInput, err))
			return
		}
		defer f.Close()
		src.File = f
		src.Filename = fh.Filename
		src.ContentType = fh.Header.Get("Content-Type")
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		h.writeError(c, fmt.Errorf("%w: %v", task.ErrBadInput, err))
		return
	}

	t, err := h.taskManager.Submit(c.Request.Context(), src)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": t.ID, "audio_file": t.AudioFile})
}

func (h *Handler) handleGetProgress(c *gin.Context) {
	report, err := h.taskManager.Progress(c.Param("taskId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) handleGetResult(c *gin.Context) {
	res, err := h.taskManager.Result(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleListTasks lists all tasks.
func (h *Handler) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.taskManager.List())
}

// handleGetFile serves stored audio.
func (h *Handler) handleGetFile(c *gin.Context) {
	filePath, err := h.taskManager.GetFilePath(c.Param("filename"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.File(filePath)
}
