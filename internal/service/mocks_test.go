package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/songforge/api/internal/client"
	"github.com/songforge/api/internal/model"
	"github.com/songforge/api/internal/service"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory SongStore with the same CAS semantics as the
// Postgres implementation.
type fakeStore struct {
	mu    sync.Mutex
	songs map[string]*model.Song

	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{songs: make(map[string]*model.Song)}
}

func (f *fakeStore) Create(ctx context.Context, song *model.Song) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.songs[song.TaskID]; exists {
		return model.ErrDuplicateTaskID
	}
	cp := *song
	f.songs[song.TaskID] = &cp
	return nil
}

func (f *fakeStore) FindByTaskID(ctx context.Context, taskID string) (*model.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	song, ok := f.songs[taskID]
	if !ok {
		return nil, model.ErrSongNotFound
	}
	cp := *song
	if song.AudioURL != nil {
		u := *song.AudioURL
		cp.AudioURL = &u
	}
	return &cp, nil
}

func (f *fakeStore) ApplyTerminal(ctx context.Context, taskID string, status model.SongStatus, audioURL *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	song, ok := f.songs[taskID]
	if !ok || song.Status != model.SongStatusPending {
		return false, nil
	}
	song.Status = status
	song.AudioURL = audioURL
	return true, nil
}

func (f *fakeStore) ListPending(ctx context.Context) ([]model.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Song
	for _, song := range f.songs {
		if song.Status == model.SongStatusPending {
			out = append(out, *song)
		}
	}
	return out, nil
}

func (f *fakeStore) seed(song *model.Song) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *song
	f.songs[song.TaskID] = &cp
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []*model.Song
}

func (f *fakeNotifier) NotifyTerminal(song *model.Song) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, song)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notified)
}

type fakeProvider struct {
	submitFunc func(ctx context.Context, req *client.GenerateRequest) (*client.GenerateResult, error)
	recordFunc func(ctx context.Context, taskID string) (*client.RecordInfo, error)

	mu          sync.Mutex
	submitted   []*client.GenerateRequest
	recordCalls int
}

func (f *fakeProvider) SubmitGeneration(ctx context.Context, req *client.GenerateRequest) (*client.GenerateResult, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, req)
	f.mu.Unlock()
	return f.submitFunc(ctx, req)
}

func (f *fakeProvider) GetRecordInfo(ctx context.Context, taskID string) (*client.RecordInfo, error) {
	f.mu.Lock()
	f.recordCalls++
	f.mu.Unlock()
	return f.recordFunc(ctx, taskID)
}

type fakeDispatcher struct {
	mu           sync.Mutex
	polls        []string
	materialized []service.MaterializeTaskPayload
}

func (f *fakeDispatcher) EnqueuePoll(taskID string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, taskID)
	return nil
}

func (f *fakeDispatcher) EnqueueMaterialize(taskID, audioURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.materialized = append(f.materialized, service.MaterializeTaskPayload{TaskID: taskID, AudioURL: audioURL})
	return nil
}

type fakeGenerator struct {
	text string
	err  error

	mu      sync.Mutex
	prompts []string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeGenerator) IsConfigured() bool { return true }
