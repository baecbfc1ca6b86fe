package task

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const defaultAudioExt = ".mp3"

// Source is the audio a client submits: an uploaded payload or a URL.
type Source struct {
	File        io.Reader
	Filename    string
	ContentType string
	URL         string
}

func (s Source) kind() string {
	if s.File != nil {
		return "file"
	}
	return "url"
}

// extension picks the stored file suffix from the upload name, the content
// type, or the URL path, in that order.
func (s Source) extension() string {
	if s.File != nil {
		if ext := cleanExt(filepath.Ext(s.Filename)); ext != "" {
			return ext
		}
		if s.ContentType != "" {
			if exts, err := mime.ExtensionsByType(s.ContentType); err == nil && len(exts) > 0 {
				return exts[0]
			}
		}
		return defaultAudioExt
	}
	if u, err := url.Parse(s.URL); err == nil {
		if ext := cleanExt(path.Ext(u.Path)); ext != "" {
			return ext
		}
	}
	return defaultAudioExt
}

func cleanExt(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) < 2 || len(ext) > 6 || strings.ContainsAny(ext, `/\ `) {
		return ""
	}
	return ext
}

// saveSource writes the source audio to dst, enforcing MaxInputSize.
func (m *Manager) saveSource(ctx context.Context, src Source, dst string) error {
	body := src.File
	if body == nil {
		u, err := url.Parse(src.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: unsupported url %q", ErrBadInput, src.URL)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDownload, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: status %s", ErrDownload, resp.Status)
		}
		body = resp.Body
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}

	// Use a LimitedReader to enforce max input size
	if m.cfg.MaxInputSize > 0 {
		body = &io.LimitedReader{R: body, N: m.cfg.MaxInputSize + 1}
	}
	written, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && m.cfg.MaxInputSize > 0 && written > m.cfg.MaxInputSize {
		err = fmt.Errorf("%w: input size exceeds limit of %d bytes", ErrBadInput, m.cfg.MaxInputSize)
	}
	if err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
