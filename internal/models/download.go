// Package models fetches whisper.cpp ggml models.
package models

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// BaseURL is the HuggingFace repository the catalog resolves against.
const BaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// DefaultModel is fetched when no name is given.
const DefaultModel = "ggml-base.en.bin"

// Model is an entry in the download catalog.
type Model struct {
	Name  string
	Label string
	Size  string
}

// Catalog lists the models fetch-model knows about.
var Catalog = []Model{
	{Name: "ggml-tiny.en.bin", Label: "Tiny English", Size: "39 MB"},
	{Name: "ggml-tiny.bin", Label: "Tiny Multilingual", Size: "39 MB"},
	{Name: "ggml-base.en.bin", Label: "Base English", Size: "142 MB"},
	{Name: "ggml-base.bin", Label: "Base Multilingual", Size: "142 MB"},
	{Name: "ggml-small.en.bin", Label: "Small English", Size: "466 MB"},
	{Name: "ggml-small.bin", Label: "Small Multilingual", Size: "466 MB"},
	{Name: "ggml-medium.bin", Label: "Medium Multilingual", Size: "1.5 GB"},
	{Name: "ggml-large-v3.bin", Label: "Large V3 Multilingual", Size: "3.0 GB"},
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Model, bool) {
	for _, m := range Catalog {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// Downloader fetches catalog models into a directory.
type Downloader struct {
	BaseURL string
	Client  *http.Client
	// Progress receives a running progress line. nil disables it.
	Progress io.Writer
	Logger   *slog.Logger
}

// Download fetches name into dir and returns the model path. An existing
// non-empty file is kept.
func (d *Downloader) Download(ctx context.Context, name, dir string) (string, error) {
	if name == "" {
		name = DefaultModel
	}
	if _, ok := Lookup(name); !ok {
		return "", fmt.Errorf("models: unknown model %q", name)
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "models", "model", name)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("models: creating models dir: %w", err)
	}
	destPath := filepath.Join(dir, name)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		log.Info("model already present", "path", destPath, "bytes", info.Size())
		return destPath, nil
	}

	base := d.BaseURL
	if base == "" {
		base = BaseURL
	}
	url := base + "/" + name
	log.Info("downloading model", "url", url, "path", destPath)

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
		return "", fmt.Errorf("models: downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("models: download failed: HTTP %d", resp.StatusCode)
	}

	// Write to a temp file first, then rename.
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("models: creating temp file: %w", err)
	}

	var w io.Writer = f
	if d.Progress != nil {
		w = &progressWriter{writer: f, out: d.Progress, total: resp.ContentLength, label: name}
	}
	written, err := io.Copy(w, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("models: writing model file: %w", err)
	}
	if d.Progress != nil {
		fmt.Fprintln(d.Progress)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("models: moving model file: %w", err)
	}
	log.Info("model downloaded", "bytes", written)
	return destPath, nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
