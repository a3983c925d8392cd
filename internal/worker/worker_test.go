package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songforge/api/internal/client"
	"github.com/songforge/api/internal/model"
	"github.com/songforge/api/internal/service"
	"github.com/songforge/api/internal/worker"
)

type memStore struct {
	mu    sync.Mutex
	songs map[string]*model.Song
}

func newMemStore() *memStore {
	return &memStore{songs: make(map[string]*model.Song)}
}

func (m *memStore) Create(ctx context.Context, song *model.Song) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.songs[song.TaskID]; ok {
		return model.ErrDuplicateTaskID
	}
	cp := *song
	m.songs[song.TaskID] = &cp
	return nil
}

func (m *memStore) FindByTaskID(ctx context.Context, taskID string) (*model.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	song, ok := m.songs[taskID]
	if !ok {
		return nil, model.ErrSongNotFound
	}
	cp := *song
	return &cp, nil
}

func (m *memStore) ApplyTerminal(ctx context.Context, taskID string, status model.SongStatus, audioURL *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	song, ok := m.songs[taskID]
	if !ok || song.Status != model.SongStatusPending {
		return false, nil
	}
	song.Status = status
	song.AudioURL = audioURL
	return true, nil
}

func (m *memStore) ListPending(ctx context.Context) ([]model.Song, error) {
	return nil, nil
}

type stubProvider struct {
	record *client.RecordInfo
}

func (p *stubProvider) SubmitGeneration(ctx context.Context, req *client.GenerateRequest) (*client.GenerateResult, error) {
	return nil, errors.New("not used")
}

func (p *stubProvider) GetRecordInfo(ctx context.Context, taskID string) (*client.RecordInfo, error) {
	return p.record, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSongService(store service.SongStore, provider client.MusicProvider) *service.SongService {
	logger := testLogger()
	lyrics := service.NewLyricsService(nil)
	rec := service.NewReconciler(store, nil, logger)
	return service.NewSongService(store, provider, lyrics, rec, nil, logger, "v4", time.Second)
}

func pollTask(t *testing.T, taskID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(service.PollTaskPayload{TaskID: taskID})
	require.NoError(t, err)
	return asynq.NewTask(service.TaskTypePoll, payload)
}

func TestPollWorkerProcessTask(t *testing.T) {
	ctx := context.Background()

	t.Run("still pending returns an error so asynq retries", func(t *testing.T) {
		store := newMemStore()
		store.Create(ctx, &model.Song{TaskID: "t-1", Status: model.SongStatusPending})
		svc := newSongService(store, &stubProvider{record: &client.RecordInfo{TaskID: "t-1", Status: "PENDING"}})
		w := worker.NewPollWorker(svc, testLogger())

		err := w.ProcessTask(ctx, pollTask(t, "t-1"))
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("terminal report finishes the task", func(t *testing.T) {
		store := newMemStore()
		store.Create(ctx, &model.Song{TaskID: "t-1", Status: model.SongStatusPending})
		svc := newSongService(store, &stubProvider{record: &client.RecordInfo{
			TaskID:   "t-1",
			Status:   "SUCCESS",
			AudioURL: "https://cdn.example.com/a.mp3",
		}})
		w := worker.NewPollWorker(svc, testLogger())

		require.NoError(t, w.ProcessTask(ctx, pollTask(t, "t-1")))

		song, err := store.FindByTaskID(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, model.SongStatusCompleted, song.Status)
	})

	t.Run("already resolved task finishes without a provider write", func(t *testing.T) {
		store := newMemStore()
		url := "https://cdn.example.com/a.mp3"
		store.Create(ctx, &model.Song{TaskID: "t-1", Status: model.SongStatusCompleted, AudioURL: &url})
		svc := newSongService(store, &stubProvider{})
		w := worker.NewPollWorker(svc, testLogger())

		require.NoError(t, w.ProcessTask(ctx, pollTask(t, "t-1")))
	})

	t.Run("unknown task skips retries", func(t *testing.T) {
		svc := newSongService(newMemStore(), &stubProvider{})
		w := worker.NewPollWorker(svc, testLogger())

		err := w.ProcessTask(ctx, pollTask(t, "missing"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("malformed payload skips retries", func(t *testing.T) {
		svc := newSongService(newMemStore(), &stubProvider{})
		w := worker.NewPollWorker(svc, testLogger())

		err := w.ProcessTask(ctx, asynq.NewTask(service.TaskTypePoll, []byte("{")))
		require.Error(t, err)
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})
}

func TestMaterializeWorkerProcessTask(t *testing.T) {
	ctx := context.Background()

	newTask := func(t *testing.T, audioURL string) *asynq.Task {
		payload, err := json.Marshal(service.MaterializeTaskPayload{TaskID: "t-1", AudioURL: audioURL})
		require.NoError(t, err)
		return asynq.NewTask(service.TaskTypeMaterialize, payload)
	}

	t.Run("downloads the artifact", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("audio"))
		}))
		defer server.Close()

		artifacts := service.NewArtifactService(t.TempDir(), 5*time.Second, nil, testLogger())
		w := worker.NewMaterializeWorker(artifacts, testLogger())

		require.NoError(t, w.ProcessTask(ctx, newTask(t, server.URL+"/track.mp3")))
	})

	t.Run("download failure returns an error for retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		artifacts := service.NewArtifactService(t.TempDir(), 5*time.Second, nil, testLogger())
		w := worker.NewMaterializeWorker(artifacts, testLogger())

		err := w.ProcessTask(ctx, newTask(t, server.URL+"/gone.mp3"))
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})
}
