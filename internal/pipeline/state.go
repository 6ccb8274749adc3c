package pipeline

import (
	"github.com/jo-hoe/clipcast/internal/clips"
)

// State is the working data for one pipeline run. It is built from a claimed
// clip, flows through the stages, and is translated back into clip fields at
// the end. It is never persisted itself.
type State struct {
	// Input fields, copied from the clip record.
	ClipID             string
	InputType          clips.InputType
	InputContent       string
	ContextInstruction string
	TargetDuration     int // minutes

	// Intermediate fields.
	ExtractedContent string
	PageTitle        string

	// Output fields.
	Script         string
	AudioBytes     []byte
	AudioFilename  string
	AudioURL       string
	ActualDuration float64 // seconds, measured from the audio

	// Err holds the first stage failure. Once set it is never overwritten and
	// all remaining stages are skipped.
	Err string
}

// NewState builds the initial state for a clip.
func NewState(clip *clips.Clip) State {
	st := State{
		ClipID:         clip.ID,
		InputType:      clip.InputType,
		InputContent:   clip.InputContent,
		TargetDuration: clip.TargetDuration,
	}
	if clip.ContextInstruction != nil {
		st.ContextInstruction = *clip.ContextInstruction
	}
	return st
}

// fail records the first error. Later failures are dropped so the message a
// user sees is always the stage that actually broke the run.
func (s *State) fail(msg string) {
	if s.Err == "" {
		s.Err = msg
	}
}

// Failed reports whether the run has hit a stage failure.
func (s *State) Failed() bool {
	return s.Err != ""
}
