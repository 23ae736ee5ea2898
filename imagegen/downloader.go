package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imagestream/core"
)

// Downloader saves generated images into a local directory, either by
// fetching a URL or decoding inline base64 data.
//
// Thread Safety: Downloader is safe for concurrent use.
type Downloader struct {
	client       *http.Client
	downloadsDir string
}

// DownloaderConfig holds configuration for the Downloader.
type DownloaderConfig struct {
	// HTTPClient is used for URL downloads. If nil, one is created from Timeout.
	HTTPClient *http.Client

	// DownloadsDir is created if missing. Default: "downloads"
	DownloadsDir string

	// Timeout for download operations. Default: 60 seconds
	Timeout time.Duration
}

// DefaultDownloaderConfig returns sensible defaults for downloading images.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		DownloadsDir: "downloads",
		Timeout:      60 * time.Second,
	}
}

// NewDownloader creates a downloader using the directory and TLS settings of cfg.
func NewDownloader(cfg *core.Config) (*Downloader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	return NewDownloaderWithConfig(DownloaderConfig{
		HTTPClient:   core.GetHTTPClient(cfg, 60*time.Second),
		DownloadsDir: cfg.DownloadsDir,
	})
}

// NewDownloaderWithConfig creates a downloader with explicit configuration.
func NewDownloaderWithConfig(cfg DownloaderConfig) (*Downloader, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	downloadsDir := cfg.DownloadsDir
	if downloadsDir == "" {
		downloadsDir = "downloads"
	}
	if err := os.MkdirAll(downloadsDir, 0755); err != nil {
		return nil, fmt.Errorf("imagegen: failed to create downloads directory: %w", err)
	}

	return &Downloader{
		client:       httpClient,
		downloadsDir: downloadsDir,
	}, nil
}

// DownloadResult contains information about a saved image.
type DownloadResult struct {
	Path        string
	Size        int64
	ContentType string
}

// Save stores the image described by d under filename (without extension).
func (d *Downloader) Save(ctx context.Context, desc Descriptor, filename string) (*DownloadResult, error) {
	switch {
	case !desc.Valid():
		return nil, errInvalidDescriptor
	case desc.IsInline():
		return d.SaveInline(desc.B64JSON, filename)
	default:
		return d.Download(ctx, desc.URL, filename)
	}
}

// Download fetches url and saves it under filename, choosing the extension
// from the response Content-Type.
func (d *Downloader) Download(ctx context.Context, url string, filename string) (*DownloadResult, error) {
	if url == "" {
		return nil, fmt.Errorf("imagegen: URL cannot be empty")
	}
	if filename == "" {
		return nil, fmt.Errorf("imagegen: filename cannot be empty")
	}

	// Some providers return data URLs in the url field
	if strings.HasPrefix(url, "data:") {
		mimeType, data, err := ReferenceImage{DataURL: url}.Decode()
		if err != nil {
			return nil, err
		}
		return d.writeFile(filename, extensionFromContentType(mimeType), data, mimeType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imagegen: download failed with status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	fullPath := filepath.Join(d.downloadsDir, sanitizeFilename(filename)+orPNG(extensionFromContentType(contentType)))

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to create image file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, resp.Body)
	if err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("imagegen: failed to write image data: %w", err)
	}

	return &DownloadResult{Path: fullPath, Size: size, ContentType: contentType}, nil
}

// SaveInline decodes base64 image data (raw or data URL) and saves it.
func (d *Downloader) SaveInline(b64 string, filename string) (*DownloadResult, error) {
	if filename == "" {
		return nil, fmt.Errorf("imagegen: filename cannot be empty")
	}
	if strings.HasPrefix(b64, "data:") {
		return d.Download(context.Background(), b64, filename)
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("imagegen: invalid base64 image data: %w", err)
	}
	contentType := http.DetectContentType(data)
	return d.writeFile(filename, extensionFromContentType(contentType), data, contentType)
}

func (d *Downloader) writeFile(filename, ext string, data []byte, contentType string) (*DownloadResult, error) {
	fullPath := filepath.Join(d.downloadsDir, sanitizeFilename(filename)+orPNG(ext))
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return nil, fmt.Errorf("imagegen: failed to write image file: %w", err)
	}
	return &DownloadResult{Path: fullPath, Size: int64(len(data)), ContentType: contentType}, nil
}

// DownloadsDir returns the configured downloads directory.
func (d *Downloader) DownloadsDir() string {
	return d.downloadsDir
}

func orPNG(ext string) string {
	if ext == "" {
		return ".png"
	}
	return ext
}

// extensionFromContentType returns the file extension for a given Content-Type.
func extensionFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}

	lower := strings.ToLower(contentType)
	if idx := strings.Index(lower, ";"); idx != -1 {
		lower = lower[:idx]
	}

	switch strings.TrimSpace(lower) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		if strings.HasPrefix(lower, "image/") {
			return ".png"
		}
		return ""
	}
}

// sanitizeFilename removes or replaces characters that are unsafe for filenames.
func sanitizeFilename(filename string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\n", "\r", "\t"}
	result := filename
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}
	if len(result) > 200 {
		result = result[:200]
	}
	if result == "" {
		result = "image"
	}
	return result
}
