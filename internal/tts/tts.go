package tts

import (
	"context"
)

// Audio is the result of one synthesis call.
type Audio struct {
	Data            []byte  // MP3 bytes
	DurationSeconds float64 // measured from the audio, not the script
}

// Synthesizer defines the capability to turn a script into narrated audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, scriptText string) (Audio, error)
}
