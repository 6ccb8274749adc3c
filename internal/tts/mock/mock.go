package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jo-hoe/clipcast/internal/config"
	"github.com/jo-hoe/clipcast/internal/tts"
)

var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is a fake TTS engine for development and tests. It produces a
// placeholder payload and an estimated duration from the script length.
type Synthesizer struct {
	delay time.Duration
}

// New creates a mock synthesizer from config.
func New(cfg config.MockSettings) *Synthesizer {
	return &Synthesizer{delay: cfg.Delay}
}

func (s *Synthesizer) Synthesize(ctx context.Context, scriptText string) (tts.Audio, error) {
	if strings.TrimSpace(scriptText) == "" {
		return tts.Audio{}, fmt.Errorf("script is empty")
	}
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return tts.Audio{}, ctx.Err()
		case <-timer.C:
		}
	}
	payload := fmt.Sprintf("MOCK-AUDIO %d chars", len(scriptText))
	return tts.Audio{
		Data:            []byte(payload),
		DurationSeconds: tts.EstimateDuration(scriptText),
	}, nil
}
