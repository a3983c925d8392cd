package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/songforge/api/internal/client"
	"github.com/songforge/api/internal/model"
)

const defaultVerseCount = 2

// lyricsPromptTemplate is the fixed structural template forwarded to the
// text-generation collaborator. Section tags match what the rendering
// provider expects in a custom-mode prompt.
const lyricsPromptTemplate = `Create original song lyrics with the following specifications:
- Theme: %s
- Genre: %s
- Mood: %s
- Structure: %d verses, chorus, bridge
Format the lyrics with proper structure tags:
[Intro]
[Verse 1]
[Chorus]
[Verse 2]
[Chorus]
[Bridge]
[Chorus]
[Outro]
Make the lyrics creative, original, and emotionally engaging.
Keep verses to 4-6 lines and chorus to 3-4 lines.`

// LyricsService generates song lyrics through the Gemini collaborator. It is
// pure with respect to local state and performs no retries; retry policy
// belongs to the caller.
type LyricsService struct {
	generator client.TextGenerator
}

func NewLyricsService(generator client.TextGenerator) *LyricsService {
	return &LyricsService{generator: generator}
}

// Generate renders the prompt template and invokes the collaborator. Fails
// with an upstream generation error when the collaborator errors or returns
// empty output.
func (s *LyricsService) Generate(ctx context.Context, req *model.LyricsGenerateRequest) (*model.LyricsGenerateResponse, error) {
	verseCount := req.VerseCount
	if verseCount <= 0 {
		verseCount = defaultVerseCount
	}

	// Mock fallback for local development without an API key
	if s.generator == nil || !s.generator.IsConfigured() {
		return &model.LyricsGenerateResponse{Lyrics: mockLyrics(req.Theme, req.Mood)}, nil
	}

	prompt := buildLyricsPrompt(req.Theme, req.Genre, req.Mood, verseCount)

	text, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		return nil, &model.UpstreamError{Op: model.OpGeneration, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &model.UpstreamError{Op: model.OpGeneration, Err: fmt.Errorf("empty completion")}
	}

	return &model.LyricsGenerateResponse{Lyrics: text}, nil
}

func buildLyricsPrompt(theme, genre, mood string, verseCount int) string {
	return fmt.Sprintf(lyricsPromptTemplate, theme, genre, mood, verseCount)
}

func mockLyrics(theme, mood string) string {
	return fmt.Sprintf(`[Intro]
A song about %s

[Verse 1]
Walking through the fading light
Carrying a %s heart tonight
Every shadow knows my name
Nothing here will stay the same

[Chorus]
Hold on to what remains
Through the wind and through the rain

[Verse 2]
Morning breaks on empty streets
Echoes of the old heartbeats
Still I find a reason why
Underneath this open sky

[Chorus]
Hold on to what remains
Through the wind and through the rain

[Bridge]
When the silence calls my name
I will answer all the same

[Chorus]
Hold on to what remains
Through the wind and through the rain

[Outro]
What remains, what remains`, theme, mood)
}
