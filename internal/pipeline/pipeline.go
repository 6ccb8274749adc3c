package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jo-hoe/clipcast/internal/clips"
	"github.com/jo-hoe/clipcast/internal/scrape"
	"github.com/jo-hoe/clipcast/internal/script"
	"github.com/jo-hoe/clipcast/internal/storage"
	"github.com/jo-hoe/clipcast/internal/tts"
)

// ErrUnsupportedInputType is the stage error recorded when routing fails.
const ErrUnsupportedInputType = "unsupported input type"

// Pipeline is the fixed stage chain a clip passes through:
//
//	route -> (process note | scrape url) -> generate script -> text to speech -> save audio
//
// One branch at the start, one convergence point, no cycles. Stages never
// retry themselves; a retry would silently double LLM and TTS spend, so
// failures are fatal for the run and any retry is a deliberate caller action.
type Pipeline struct {
	log       *slog.Logger
	extractor scrape.Extractor
	writer    script.Writer
	synth     tts.Synthesizer
	artifacts storage.ArtifactStore
}

// New wires the pipeline with its external service handles.
func New(log *slog.Logger, extractor scrape.Extractor, writer script.Writer, synth tts.Synthesizer, artifacts storage.ArtifactStore) *Pipeline {
	return &Pipeline{
		log:       log,
		extractor: extractor,
		writer:    writer,
		synth:     synth,
		artifacts: artifacts,
	}
}

type stage struct {
	name string
	fn   func(ctx context.Context, st State) State
}

// Run drives the state through the stage chain to a terminal outcome. A stage
// failure short-circuits the remaining chain; a panic inside a stage is
// recovered and recorded as a generic failure so the caller always gets a
// terminal state.
func (p *Pipeline) Run(ctx context.Context, st State) (out State) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline panic", "clip_id", st.ClipID, "panic", r)
			out = st
			out.fail("internal processing error")
		}
	}()

	log := p.log.With("clip_id", st.ClipID)

	// Route by input type; both branches converge on generate_script.
	switch st.InputType {
	case clips.InputNote:
		log.Debug("stage start", "stage", "process_note")
		st = p.processNote(st)
	case clips.InputURL:
		log.Debug("stage start", "stage", "scrape_url")
		st = p.scrapeURL(ctx, st)
	default:
		log.Warn("routing failed", "input_type", st.InputType)
		st.fail(ErrUnsupportedInputType)
		return st
	}

	for _, s := range []stage{
		{"generate_script", p.generateScript},
		{"text_to_speech", p.textToSpeech},
		{"save_audio", p.saveAudio},
	} {
		if st.Failed() {
			break
		}
		log.Debug("stage start", "stage", s.name)
		st = s.fn(ctx, st)
		if st.Failed() {
			log.Warn("stage failed", "stage", s.name, "err", st.Err)
		}
	}
	return st
}

// processNote copies the note verbatim; notes are already text.
func (p *Pipeline) processNote(st State) State {
	st.ExtractedContent = st.InputContent
	return st
}

// scrapeURL fetches the URL and extracts readable text and a page title.
func (p *Pipeline) scrapeURL(ctx context.Context, st State) State {
	res, err := p.extractor.Extract(ctx, st.InputContent)
	if err != nil {
		st.fail("content extraction failed: " + err.Error())
		return st
	}
	st.ExtractedContent = res.Text
	st.PageTitle = res.Title
	return st
}

// generateScript turns the extracted content into a spoken-word script. It
// fails closed: with no content to work from the LLM is never called.
func (p *Pipeline) generateScript(ctx context.Context, st State) State {
	if strings.TrimSpace(st.ExtractedContent) == "" {
		st.fail("no content to generate script from")
		return st
	}
	out, err := p.writer.Generate(ctx, script.Request{
		Content:            st.ExtractedContent,
		ContextInstruction: st.ContextInstruction,
		TargetMinutes:      st.TargetDuration,
	})
	if err != nil {
		st.fail("script generation failed: " + err.Error())
		return st
	}
	if strings.TrimSpace(out) == "" {
		st.fail("script generation failed: empty script")
		return st
	}
	st.Script = out
	return st
}

// textToSpeech synthesizes the script and records the measured duration.
func (p *Pipeline) textToSpeech(ctx context.Context, st State) State {
	audio, err := p.synth.Synthesize(ctx, st.Script)
	if err != nil {
		st.fail("speech synthesis failed: " + err.Error())
		return st
	}
	st.AudioBytes = audio.Data
	st.ActualDuration = audio.DurationSeconds
	return st
}

// saveAudio uploads the audio under the clip's deterministic filename.
func (p *Pipeline) saveAudio(ctx context.Context, st State) State {
	url, err := p.artifacts.Upload(ctx, st.ClipID, st.AudioBytes)
	if err != nil {
		st.fail("audio upload failed: " + err.Error())
		return st
	}
	st.AudioFilename = storage.Filename(st.ClipID)
	st.AudioURL = url
	return st
}
