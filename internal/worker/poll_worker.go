package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/songforge/api/internal/model"
	"github.com/songforge/api/internal/service"
)

// PollWorker drives background status polling. Each asynq retry is the next
// poll attempt: while the job is still pending the handler returns an error
// so asynq's backoff schedules the next sweep. A callback arriving in the
// meantime resolves the job and the next attempt observes the terminal state.
type PollWorker struct {
	songService *service.SongService
	logger      *slog.Logger
}

func NewPollWorker(songService *service.SongService, logger *slog.Logger) *PollWorker {
	return &PollWorker{
		songService: songService,
		logger:      logger,
	}
}

// ProcessTask handles one poll attempt for a task
func (w *PollWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.PollTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal poll payload: %v: %w", err, asynq.SkipRetry)
	}

	status, outcome, err := w.songService.PollStatus(ctx, payload.TaskID)
	if err != nil {
		if errors.Is(err, model.ErrSongNotFound) {
			w.logger.Warn("poll for unknown task", "taskId", payload.TaskID)
			return fmt.Errorf("unknown task %s: %w", payload.TaskID, asynq.SkipRetry)
		}
		// Transient upstream failure; retry with backoff.
		return err
	}

	if !status.Status.Terminal() {
		return fmt.Errorf("song %s still pending (outcome %s)", payload.TaskID, outcome)
	}

	w.logger.Info("background poll resolved song",
		"taskId", payload.TaskID,
		"status", status.Status,
		"outcome", outcome,
	)
	return nil
}
