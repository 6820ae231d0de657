// Package models resolves whisper ggml model names to files on disk and
// downloads missing models from HuggingFace.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/schollz/progressbar/v3"
)

// ErrUnknownModel is returned for a model name that is not in Known.
var ErrUnknownModel = errors.New("unknown model")

// DefaultBaseURL is where ggml models are published.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// Model describes a downloadable whisper ggml model.
type Model struct {
	Name         string
	SizeMB       int
	Multilingual bool
}

// File returns the on-disk file name of the model.
func (m Model) File() string {
	return "ggml-" + m.Name + ".bin"
}

// Known lists the published models, smallest first.
var Known = []Model{
	{Name: "tiny", SizeMB: 75, Multilingual: true},
	{Name: "tiny.en", SizeMB: 75},
	{Name: "base", SizeMB: 142, Multilingual: true},
	{Name: "base.en", SizeMB: 142},
	{Name: "small", SizeMB: 466, Multilingual: true},
	{Name: "small.en", SizeMB: 466},
	{Name: "medium", SizeMB: 1500, Multilingual: true},
	{Name: "medium.en", SizeMB: 1500},
	{Name: "large-v3", SizeMB: 2900, Multilingual: true},
	{Name: "large-v3-turbo", SizeMB: 1600, Multilingual: true},
}

// Lookup finds a known model by name. "ggml-base.en.bin" and "base.en" are
// both accepted.
func Lookup(name string) (Model, error) {
	name = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(name), "ggml-"), ".bin")
	for _, m := range Known {
		if m.Name == name {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("models: %q: %w", name, ErrUnknownModel)
}

// Downloader fetches model files.
type Downloader struct {
	BaseURL string
	Client  *http.Client
	// Progress receives a progress bar while downloading; nil disables it.
	Progress io.Writer
	Logger   *slog.Logger
}

// NewDownloader returns a Downloader for DefaultBaseURL.
func NewDownloader(logger *slog.Logger, progress io.Writer) *Downloader {
	return &Downloader{
		BaseURL:  DefaultBaseURL,
		Client:   http.DefaultClient,
		Progress: progress,
		Logger:   logger,
	}
}

// Resolve maps a model name to its file in dir. A missing model is
// downloaded when download is true; otherwise an error is returned.
func Resolve(ctx context.Context, name, dir string, download bool, d *Downloader) (string, error) {
	m, err := Lookup(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, m.File())
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}
	if !download {
		return "", fmt.Errorf("models: %s not found in %s (run 'vidscribe models download %s')", m.Name, dir, m.Name)
	}
	if d == nil {
		d = NewDownloader(slog.Default(), nil)
	}
	return d.Download(ctx, m.Name, dir)
}

// Download fetches the named model into dir and returns its path. An
// existing non-empty file is left alone. Concurrent downloads into the same
// dir are serialised by a lock file; data is written to a temp file and
// renamed into place.
func (d *Downloader) Download(ctx context.Context, name, dir string) (string, error) {
	m, err := Lookup(name)
	if err != nil {
		return "", err
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("models: creating models dir: %w", err)
	}
	destPath := filepath.Join(dir, m.File())

	// Never remove the lock file; a waiter may already have it open.
	lock := flock.New(destPath + ".lock")
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("models: acquire lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("models: %s is locked by another download", destPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release download lock", "error", err)
		}
	}()

	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		logger.Info("model already present", "model", m.Name, "path", destPath, "size", humanize.Bytes(uint64(info.Size())))
		return destPath, nil
	}

	url := strings.TrimRight(d.BaseURL, "/") + "/" + m.File()
	logger.Info("downloading model", "model", m.Name, "url", url, "dest", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("models: build request: %w", err)
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("models: downloading %s: %w", m.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("models: download %s failed: HTTP %d", m.Name, resp.StatusCode)
	}

	f, err := os.CreateTemp(dir, m.File()+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("models: creating temp file: %w", err)
	}
	tmpPath := f.Name()

	var w io.Writer = f
	var bar *progressbar.ProgressBar
	if d.Progress != nil {
		bar = progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(d.Progress),
			progressbar.OptionSetDescription(m.Name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		w = io.MultiWriter(f, bar)
	}

	written, err := io.Copy(w, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("models: writing model file: %w", err)
	}
	if written == 0 {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("models: download %s: empty response", m.Name)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("models: moving model file: %w", err)
	}
	logger.Info("model downloaded", "model", m.Name, "size", humanize.Bytes(uint64(written)))
	return destPath, nil
}

// Status reports whether a known model is installed in a directory.
type Status struct {
	Model
	Path      string
	Installed bool
	Size      int64
}

// List reports the install status of every known model in dir.
func List(dir string) []Status {
	out := make([]Status, 0, len(Known))
	for _, m := range Known {
		s := Status{Model: m, Path: filepath.Join(dir, m.File())}
		if info, err := os.Stat(s.Path); err == nil && !info.IsDir() && info.Size() > 0 {
			s.Installed = true
			s.Size = info.Size()
		}
		out = append(out, s)
	}
	return out
}
