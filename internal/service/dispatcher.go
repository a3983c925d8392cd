package service

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task types processed by the asynq worker server
const (
	TaskTypePoll        = "song:poll"
	TaskTypeMaterialize = "song:materialize"
)

// Queue names
const (
	QueuePoll        = "poll"
	QueueMaterialize = "materialize"
)

// PollTaskPayload drives a background status poll for one task
type PollTaskPayload struct {
	TaskID string `json:"taskId"`
}

// MaterializeTaskPayload drives an artifact download for a completed song
type MaterializeTaskPayload struct {
	TaskID   string `json:"taskId"`
	AudioURL string `json:"audioUrl"`
}

// TaskDispatcher schedules background work. Implementations must tolerate
// being absent (callers treat a nil dispatcher as "no background work").
type TaskDispatcher interface {
	EnqueuePoll(taskID string, delay time.Duration) error
	EnqueueMaterialize(taskID, audioURL string) error
}

// AsynqDispatcher dispatches tasks onto the asynq queues. Poll tasks lean on
// asynq's retry backoff: the handler returns an error while the job is still
// pending, so each retry is the next poll attempt.
type AsynqDispatcher struct {
	client       *asynq.Client
	pollMaxRetry int
}

func NewAsynqDispatcher(client *asynq.Client, pollMaxRetry int) *AsynqDispatcher {
	return &AsynqDispatcher{
		client:       client,
		pollMaxRetry: pollMaxRetry,
	}
}

func (d *AsynqDispatcher) EnqueuePoll(taskID string, delay time.Duration) error {
	payload, err := json.Marshal(PollTaskPayload{TaskID: taskID})
	if err != nil {
		return err
	}

	_, err = d.client.Enqueue(asynq.NewTask(TaskTypePoll, payload),
		asynq.Queue(QueuePoll),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(d.pollMaxRetry),
		asynq.Retention(24*time.Hour),
	)
	return err
}

func (d *AsynqDispatcher) EnqueueMaterialize(taskID, audioURL string) error {
	payload, err := json.Marshal(MaterializeTaskPayload{TaskID: taskID, AudioURL: audioURL})
	if err != nil {
		return err
	}

	_, err = d.client.Enqueue(asynq.NewTask(TaskTypeMaterialize, payload),
		asynq.Queue(QueueMaterialize),
		asynq.MaxRetry(5),
		asynq.Retention(24*time.Hour),
	)
	return err
}
