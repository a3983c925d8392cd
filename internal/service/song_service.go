package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/songforge/api/internal/client"
	"github.com/songforge/api/internal/model"
)

// SongService owns the rendering-job lifecycle: submission to the provider,
// status reconciliation from both delivery paths, and dispatch of the
// background work that follows.
type SongService struct {
	store      SongStore
	provider   client.MusicProvider
	lyrics     *LyricsService
	reconciler *Reconciler
	dispatcher TaskDispatcher
	logger     *slog.Logger
	sunoModel  string
	pollDelay  time.Duration
}

func NewSongService(
	store SongStore,
	provider client.MusicProvider,
	lyrics *LyricsService,
	reconciler *Reconciler,
	dispatcher TaskDispatcher,
	logger *slog.Logger,
	sunoModel string,
	pollDelay time.Duration,
) *SongService {
	return &SongService{
		store:      store,
		provider:   provider,
		lyrics:     lyrics,
		reconciler: reconciler,
		dispatcher: dispatcher,
		logger:     logger,
		sunoModel:  sunoModel,
		pollDelay:  pollDelay,
	}
}

// Submit builds the rendering request, sends it to the provider and creates
// exactly one pending song row keyed by the returned task ID. No row is
// created when the provider call fails. Submission is never retried here:
// after an ambiguous failure the provider may already hold the job, and a
// retry would duplicate it.
func (s *SongService) Submit(ctx context.Context, req *model.SongSubmitRequest) (*model.SongSubmitResponse, error) {
	lyrics := strings.TrimSpace(req.Lyrics)
	style := strings.TrimSpace(req.Style)
	title := strings.TrimSpace(req.Title)
	theme := strings.TrimSpace(req.Theme)
	mood := strings.TrimSpace(req.Mood)

	if style == "" || title == "" {
		return nil, fmt.Errorf("%w: style and title are required", model.ErrInvalidRequest)
	}
	if err := validateCallbackURL(req.CallbackURL); err != nil {
		return nil, err
	}

	if lyrics == "" {
		if theme == "" {
			return nil, fmt.Errorf("%w: either lyrics or theme is required", model.ErrInvalidRequest)
		}
		generated, err := s.lyrics.Generate(ctx, &model.LyricsGenerateRequest{
			Theme: theme,
			Genre: style,
			Mood:  mood,
		})
		if err != nil {
			return nil, err
		}
		lyrics = generated.Lyrics
	}

	customMode := true
	if req.CustomMode != nil {
		customMode = *req.CustomMode
	}

	result, err := s.provider.SubmitGeneration(ctx, &client.GenerateRequest{
		Prompt:       lyrics,
		Style:        style,
		Title:        title,
		CustomMode:   customMode,
		Instrumental: req.Instrumental,
		Model:        s.sunoModel,
		CallbackURL:  req.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	song := &model.Song{
		TaskID:    result.TaskID,
		Title:     title,
		Style:     style,
		Mood:      mood,
		Theme:     theme,
		Lyrics:    lyrics,
		Status:    model.SongStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.Create(ctx, song); err != nil {
		return nil, err
	}

	s.logger.Info("song submitted", "taskId", song.TaskID, "title", title, "style", style)

	s.schedulePoll(song.TaskID, s.pollDelay)

	return &model.SongSubmitResponse{
		TaskID:    song.TaskID,
		Status:    song.Status,
		Lyrics:    lyrics,
		Provider:  result.Raw,
		CreatedAt: song.CreatedAt,
	}, nil
}

// PollStatus pulls the provider's view of a task and applies it through the
// reconciler. The stored terminal state short-circuits the provider call.
func (s *SongService) PollStatus(ctx context.Context, taskID string) (*model.SongStatusResponse, Outcome, error) {
	song, err := s.store.FindByTaskID(ctx, taskID)
	if err != nil {
		return nil, "", err
	}
	if song.Status.Terminal() {
		return statusResponse(song), OutcomeAlreadyResolved, nil
	}

	info, err := s.provider.GetRecordInfo(ctx, taskID)
	if err != nil {
		return nil, "", err
	}

	song, outcome, err := s.reconciler.Apply(ctx, taskID, Report{
		Status:   info.Status,
		AudioURL: info.AudioURL,
		Source:   SourcePoll,
	})
	if err != nil {
		return nil, "", err
	}

	s.afterTerminal(song, outcome)
	return statusResponse(song), outcome, nil
}

// HandleCallback applies a provider-pushed report through the reconciler.
// Duplicate and late deliveries resolve to OutcomeAlreadyResolved.
func (s *SongService) HandleCallback(ctx context.Context, req *model.CallbackRequest) (*model.Song, Outcome, error) {
	song, outcome, err := s.reconciler.Apply(ctx, req.TaskID, Report{
		Status:   req.Status,
		AudioURL: req.AudioURL,
		Source:   SourceCallback,
	})
	if err != nil {
		return nil, "", err
	}

	s.afterTerminal(song, outcome)
	return song, outcome, nil
}

// RecoverPending re-schedules background polls for songs that were still
// pending when the process last stopped.
func (s *SongService) RecoverPending(ctx context.Context) (int, error) {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	for _, song := range pending {
		s.schedulePoll(song.TaskID, s.pollDelay)
	}
	return len(pending), nil
}

// afterTerminal schedules artifact materialization once a job completes.
// The download is derived work; failures there never touch the song row.
func (s *SongService) afterTerminal(song *model.Song, outcome Outcome) {
	if outcome != OutcomeCompleted || song.AudioURL == nil {
		return
	}
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.EnqueueMaterialize(song.TaskID, *song.AudioURL); err != nil {
		s.logger.Warn("failed to enqueue materialization", "taskId", song.TaskID, "error", err)
	}
}

func (s *SongService) schedulePoll(taskID string, delay time.Duration) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.EnqueuePoll(taskID, delay); err != nil {
		// The job row exists; a callback can still resolve it.
		s.logger.Warn("failed to schedule background poll", "taskId", taskID, "error", err)
	}
}

func statusResponse(song *model.Song) *model.SongStatusResponse {
	return &model.SongStatusResponse{
		TaskID:   song.TaskID,
		Status:   song.Status,
		AudioURL: song.AudioURL,
	}
}

func validateCallbackURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: callbackUrl must be an absolute http(s) URL", model.ErrInvalidRequest)
	}
	return nil
}
