package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/songforge/api/internal/model"
	"github.com/songforge/api/internal/service"
	"github.com/songforge/api/pkg/response"
)

type SongHandler struct {
	songs     *service.SongService
	artifacts *service.ArtifactService
	validator *validator.Validate
}

func NewSongHandler(songs *service.SongService, artifacts *service.ArtifactService, v *validator.Validate) *SongHandler {
	return &SongHandler{
		songs:     songs,
		artifacts: artifacts,
		validator: v,
	}
}

// Submit handles POST /api/v1/songs
func (h *SongHandler) Submit(c *fiber.Ctx) error {
	var req model.SongSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.songs.Submit(c.Context(), &req)
	if err != nil {
		return h.mapSubmitError(c, err)
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/v1/songs/:taskId/status. Polling the provider
// updates the song record as a side effect.
func (h *SongHandler) Status(c *fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	result, _, err := h.songs.PollStatus(c.Context(), taskID)
	if err != nil {
		if errors.Is(err, model.ErrSongNotFound) {
			return response.NotFound(c, "Song not found")
		}
		var upstream *model.UpstreamError
		if errors.As(err, &upstream) {
			return response.UpstreamError(c, upstream.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Callback handles POST /api/v1/callback, the provider-pushed completion
// report. The acknowledgement is for delivery only; duplicate or late
// reports are absorbed.
func (h *SongHandler) Callback(c *fiber.Ctx) error {
	var req model.CallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	song, _, err := h.songs.HandleCallback(c.Context(), &req)
	if err != nil {
		if errors.Is(err, model.ErrSongNotFound) {
			return response.NotFound(c, "Unknown task ID")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.CallbackResponse{
		Acknowledged: true,
		TaskID:       song.TaskID,
		Status:       song.Status,
	})
}

// Download handles POST /api/v1/songs/download
func (h *SongHandler) Download(c *fiber.Ctx) error {
	var req model.DownloadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.artifacts.Materialize(c.Context(), req.AudioURL)
	if err != nil {
		if errors.Is(err, model.ErrInvalidSource) {
			return response.ValidationError(c, err.Error(), nil)
		}
		var dl *model.DownloadError
		if errors.As(err, &dl) {
			return response.DownloadError(c, dl.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

func (h *SongHandler) mapSubmitError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, model.ErrDuplicateTaskID):
		return response.DuplicateTask(c, "A job for this task ID already exists")
	}

	var upstream *model.UpstreamError
	if errors.As(err, &upstream) {
		return response.UpstreamError(c, upstream.Error())
	}
	return response.ServiceError(c, err.Error())
}
