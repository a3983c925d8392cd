package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/songforge/api/internal/client"
	"github.com/songforge/api/internal/model"
)

// ArtifactService downloads completed audio artifacts to durable storage.
// Every invocation writes to a fresh collision-resistant name, so repeated
// materialization of the same URL never corrupts an earlier download, and a
// failed fetch leaves nothing behind.
type ArtifactService struct {
	httpClient *http.Client
	dir        string
	storage    client.StorageClient
	logger     *slog.Logger
}

func NewArtifactService(dir string, timeout time.Duration, storage client.StorageClient, logger *slog.Logger) *ArtifactService {
	return &ArtifactService{
		httpClient: &http.Client{Timeout: timeout},
		dir:        dir,
		storage:    storage,
		logger:     logger,
	}
}

// Materialize streams the remote artifact to the downloads directory and
// returns the final path. When R2 storage is configured the artifact is also
// mirrored there; a mirror failure is logged, not fatal.
func (s *ArtifactService) Materialize(ctx context.Context, audioURL string) (*model.DownloadResponse, error) {
	audioURL = strings.TrimSpace(audioURL)
	parsed, err := url.Parse(audioURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidSource, audioURL)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	name := artifactName(parsed)
	dest := filepath.Join(s.dir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, &model.DownloadError{URL: audioURL, Err: err}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &model.DownloadError{URL: audioURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &model.DownloadError{URL: audioURL, StatusCode: resp.StatusCode}
	}

	// Stream to a temp file first so an interrupted transfer never leaves
	// a partial artifact at the destination path.
	tmp, err := os.CreateTemp(s.dir, ".download-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, &model.DownloadError{URL: audioURL, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, &model.DownloadError{URL: audioURL, Err: err}
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to move artifact into place: %w", err)
	}

	s.logger.Info("artifact materialized", "url", audioURL, "path", dest)

	result := &model.DownloadResponse{Path: dest}

	if s.storage != nil {
		if mirrorURL, err := s.mirror(ctx, dest, name); err != nil {
			s.logger.Warn("artifact mirror failed", "path", dest, "error", err)
		} else {
			result.MirrorURL = mirrorURL
		}
	}

	return result, nil
}

func (s *ArtifactService) mirror(ctx context.Context, localPath, name string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := "artifacts/" + name
	return s.storage.Upload(ctx, key, f, "audio/mpeg")
}

// artifactName derives a timestamped, collision-resistant destination name
func artifactName(source *url.URL) string {
	ext := path.Ext(source.Path)
	if ext == "" {
		ext = ".mp3"
	}
	stamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("suno_track_%s_%s%s", stamp, uuid.New().String()[:8], ext)
}
