package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songforge/api/internal/model"
	"github.com/songforge/api/internal/service"
)

func TestLyricsServiceGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("renders the prompt template and returns the completion", func(t *testing.T) {
		gen := &fakeGenerator{text: "[Intro]\nSome lyrics"}
		svc := service.NewLyricsService(gen)

		resp, err := svc.Generate(ctx, &model.LyricsGenerateRequest{
			Theme: "loss",
			Genre: "folk",
			Mood:  "melancholic",
		})

		require.NoError(t, err)
		assert.Equal(t, "[Intro]\nSome lyrics", resp.Lyrics)

		require.Len(t, gen.prompts, 1)
		prompt := gen.prompts[0]
		assert.Contains(t, prompt, "Theme: loss")
		assert.Contains(t, prompt, "Genre: folk")
		assert.Contains(t, prompt, "Mood: melancholic")
		assert.Contains(t, prompt, "2 verses")
		assert.Contains(t, prompt, "[Verse 1]")
		assert.Contains(t, prompt, "[Outro]")
	})

	t.Run("honours an explicit verse count", func(t *testing.T) {
		gen := &fakeGenerator{text: "lyrics"}
		svc := service.NewLyricsService(gen)

		_, err := svc.Generate(ctx, &model.LyricsGenerateRequest{
			Theme:      "rain",
			Genre:      "jazz",
			VerseCount: 3,
		})

		require.NoError(t, err)
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "3 verses")
	})

	t.Run("collaborator error maps to an upstream generation error", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("quota exceeded")}
		svc := service.NewLyricsService(gen)

		_, err := svc.Generate(ctx, &model.LyricsGenerateRequest{Theme: "loss", Genre: "folk"})

		require.Error(t, err)
		var upstream *model.UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, model.OpGeneration, upstream.Op)
	})

	t.Run("empty completion is an upstream generation error", func(t *testing.T) {
		gen := &fakeGenerator{text: "   \n  "}
		svc := service.NewLyricsService(gen)

		_, err := svc.Generate(ctx, &model.LyricsGenerateRequest{Theme: "loss", Genre: "folk"})

		require.Error(t, err)
		var upstream *model.UpstreamError
		assert.True(t, errors.As(err, &upstream))
	})

	t.Run("falls back to template lyrics without a collaborator", func(t *testing.T) {
		svc := service.NewLyricsService(nil)

		resp, err := svc.Generate(ctx, &model.LyricsGenerateRequest{Theme: "loss", Mood: "heavy"})

		require.NoError(t, err)
		assert.Contains(t, resp.Lyrics, "loss")
		assert.Contains(t, resp.Lyrics, "[Chorus]")
	})
}
