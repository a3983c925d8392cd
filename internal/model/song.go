package model

import (
	"encoding/json"
	"time"
)

// SongStatus is the lifecycle state of a rendering job.
type SongStatus string

const (
	SongStatusPending   SongStatus = "pending"
	SongStatusCompleted SongStatus = "completed"
	SongStatusFailed    SongStatus = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s SongStatus) Terminal() bool {
	return s == SongStatusCompleted || s == SongStatusFailed
}

// Song is one tracked rendering request, keyed by the provider's task ID.
// Descriptive attributes and lyrics are immutable after creation; status and
// audio URL are mutated only through the store's conditional terminal update.
type Song struct {
	TaskID    string     `db:"task_id" json:"taskId"`
	Title     string     `db:"title" json:"title"`
	Style     string     `db:"style" json:"style"`
	Mood      string     `db:"mood" json:"mood,omitempty"`
	Theme     string     `db:"theme" json:"theme,omitempty"`
	Lyrics    string     `db:"lyrics" json:"lyrics"`
	Status    SongStatus `db:"status" json:"status"`
	AudioURL  *string    `db:"audio_url" json:"audioUrl,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// LyricsGenerateRequest represents the request body for lyrics generation
type LyricsGenerateRequest struct {
	Theme      string `json:"theme" validate:"required,min=1"`
	Genre      string `json:"genre" validate:"required,min=1"`
	Mood       string `json:"mood" validate:"required,min=1"`
	VerseCount int    `json:"verseCount" validate:"omitempty,min=1,max=6"`
}

// LyricsGenerateResponse represents the response for lyrics generation
type LyricsGenerateResponse struct {
	Lyrics string `json:"lyrics"`
}

// SongSubmitRequest represents the request body for submitting a rendering job.
// Lyrics may be omitted when theme/style/mood are present; they are then
// generated before submission.
type SongSubmitRequest struct {
	Lyrics       string `json:"lyrics" validate:"omitempty,min=1"`
	Style        string `json:"style" validate:"required,min=1"`
	Title        string `json:"title" validate:"required,min=1"`
	Theme        string `json:"theme" validate:"omitempty,min=1"`
	Mood         string `json:"mood" validate:"omitempty,min=1"`
	CallbackURL  string `json:"callbackUrl" validate:"required,url"`
	CustomMode   *bool  `json:"customMode" validate:"omitempty"`
	Instrumental bool   `json:"instrumental"`
}

// SongSubmitResponse represents the response for a submitted rendering job
type SongSubmitResponse struct {
	TaskID    string          `json:"taskId"`
	Status    SongStatus      `json:"status"`
	Lyrics    string          `json:"lyrics"`
	Provider  json.RawMessage `json:"provider,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SongStatusResponse represents the response for a status poll
type SongStatusResponse struct {
	TaskID   string     `json:"taskId"`
	Status   SongStatus `json:"status"`
	AudioURL *string    `json:"audioUrl,omitempty"`
}

// CallbackRequest is the provider-pushed completion report. It may arrive
// more than once, before any poll has run, or after the job is resolved.
type CallbackRequest struct {
	TaskID   string `json:"taskId" validate:"required,min=1"`
	Status   string `json:"status" validate:"required,min=1"`
	AudioURL string `json:"audioUrl" validate:"omitempty"`
}

// CallbackResponse acknowledges a callback delivery
type CallbackResponse struct {
	Acknowledged bool       `json:"acknowledged"`
	TaskID       string     `json:"taskId"`
	Status       SongStatus `json:"status"`
}

// DownloadRequest represents the request body for artifact materialization
type DownloadRequest struct {
	AudioURL string `json:"audioUrl" validate:"required,url"`
}

// DownloadResponse represents the response for artifact materialization
type DownloadResponse struct {
	Path      string `json:"path"`
	MirrorURL string `json:"mirrorUrl,omitempty"`
}
