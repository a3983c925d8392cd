package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/songforge/api/internal/service"
)

// MaterializeWorker downloads completed artifacts in the background. The
// materializer is idempotent, so asynq retries after a transient download
// failure are safe.
type MaterializeWorker struct {
	artifactService *service.ArtifactService
	logger          *slog.Logger
}

func NewMaterializeWorker(artifactService *service.ArtifactService, logger *slog.Logger) *MaterializeWorker {
	return &MaterializeWorker{
		artifactService: artifactService,
		logger:          logger,
	}
}

// ProcessTask downloads the artifact for a completed song
func (w *MaterializeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.MaterializeTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal materialize payload: %v: %w", err, asynq.SkipRetry)
	}

	result, err := w.artifactService.Materialize(ctx, payload.AudioURL)
	if err != nil {
		w.logger.Warn("background materialization failed",
			"taskId", payload.TaskID,
			"audioUrl", payload.AudioURL,
			"error", err,
		)
		return err
	}

	w.logger.Info("artifact stored",
		"taskId", payload.TaskID,
		"path", result.Path,
		"mirrorUrl", result.MirrorURL,
	)
	return nil
}
