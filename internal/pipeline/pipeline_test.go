package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jo-hoe/clipcast/internal/clips"
	"github.com/jo-hoe/clipcast/internal/scrape"
	"github.com/jo-hoe/clipcast/internal/script"
	"github.com/jo-hoe/clipcast/internal/tts"
)

type fakeExtractor struct {
	calls int
	res   scrape.Result
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, rawURL string) (scrape.Result, error) {
	f.calls++
	if f.err != nil {
		return scrape.Result{}, f.err
	}
	return f.res, nil
}

type fakeWriter struct {
	calls   int
	out     string
	err     error
	gotReq  script.Request
	panicky bool
}

func (f *fakeWriter) Generate(ctx context.Context, req script.Request) (string, error) {
	f.calls++
	f.gotReq = req
	if f.panicky {
		panic("writer exploded")
	}
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

type fakeSynth struct {
	calls int
	audio tts.Audio
	err   error
}

func (f *fakeSynth) Synthesize(ctx context.Context, scriptText string) (tts.Audio, error) {
	f.calls++
	if f.err != nil {
		return tts.Audio{}, f.err
	}
	return f.audio, nil
}

type fakeArtifacts struct {
	calls int
	url   string
	err   error
}

func (f *fakeArtifacts) Upload(ctx context.Context, clipID string, audio []byte) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func (f *fakeArtifacts) Remove(ctx context.Context, clipID string) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	extractor *fakeExtractor
	writer    *fakeWriter
	synth     *fakeSynth
	artifacts *fakeArtifacts
	pipeline  *Pipeline
}

func newFixture() *fixture {
	f := &fixture{
		extractor: &fakeExtractor{res: scrape.Result{Title: "A Page", Text: "page text"}},
		writer:    &fakeWriter{out: "generated script"},
		synth:     &fakeSynth{audio: tts.Audio{Data: []byte("mp3"), DurationSeconds: 301.5}},
		artifacts: &fakeArtifacts{url: "http://localhost:8080/audio/clip-1.mp3"},
	}
	f.pipeline = New(discardLogger(), f.extractor, f.writer, f.synth, f.artifacts)
	return f
}

func noteState() State {
	return NewState(&clips.Clip{
		ID:             "clip-1",
		InputType:      clips.InputNote,
		InputContent:   "my note text",
		TargetDuration: 5,
	})
}

func urlState() State {
	return NewState(&clips.Clip{
		ID:             "clip-1",
		InputType:      clips.InputURL,
		InputContent:   "http://example.com/article",
		TargetDuration: 5,
	})
}

func TestRun_NoteHappyPath(t *testing.T) {
	f := newFixture()
	st := f.pipeline.Run(context.Background(), noteState())

	if st.Failed() {
		t.Fatalf("unexpected failure: %q", st.Err)
	}
	// Notes pass through verbatim, no transformation.
	if st.ExtractedContent != "my note text" {
		t.Fatalf("extracted content = %q", st.ExtractedContent)
	}
	if st.PageTitle != "" {
		t.Fatalf("page title should stay unset for notes, got %q", st.PageTitle)
	}
	if st.Script != "generated script" {
		t.Fatalf("script = %q", st.Script)
	}
	if st.AudioURL != "http://localhost:8080/audio/clip-1.mp3" || st.AudioFilename != "clip-1.mp3" {
		t.Fatalf("audio outputs = %q, %q", st.AudioURL, st.AudioFilename)
	}
	if st.ActualDuration != 301.5 {
		t.Fatalf("duration = %v, want the measured value", st.ActualDuration)
	}
	if f.extractor.calls != 0 {
		t.Fatalf("note input must not hit the extractor")
	}
	if f.writer.gotReq.TargetMinutes != 5 || f.writer.gotReq.Content != "my note text" {
		t.Fatalf("writer request = %+v", f.writer.gotReq)
	}
}

func TestRun_URLHappyPath(t *testing.T) {
	f := newFixture()
	st := f.pipeline.Run(context.Background(), urlState())

	if st.Failed() {
		t.Fatalf("unexpected failure: %q", st.Err)
	}
	if st.ExtractedContent != "page text" || st.PageTitle != "A Page" {
		t.Fatalf("extraction results = %q, %q", st.ExtractedContent, st.PageTitle)
	}
	if f.extractor.calls != 1 || f.writer.calls != 1 || f.synth.calls != 1 || f.artifacts.calls != 1 {
		t.Fatalf("call counts = %d/%d/%d/%d", f.extractor.calls, f.writer.calls, f.synth.calls, f.artifacts.calls)
	}
}

func TestRun_UnsupportedInputType(t *testing.T) {
	f := newFixture()
	st := noteState()
	st.InputType = clips.InputType("carrier-pigeon")

	st = f.pipeline.Run(context.Background(), st)
	if st.Err != ErrUnsupportedInputType {
		t.Fatalf("err = %q", st.Err)
	}
	if f.extractor.calls+f.writer.calls+f.synth.calls+f.artifacts.calls != 0 {
		t.Fatalf("no service may be invoked on a routing error")
	}
}

func TestRun_ExtractionFailureSkipsLLM(t *testing.T) {
	f := newFixture()
	f.extractor.err = errors.New("no readable text extracted from url")

	st := f.pipeline.Run(context.Background(), urlState())
	if !st.Failed() {
		t.Fatalf("expected failure")
	}
	if st.Err != "content extraction failed: no readable text extracted from url" {
		t.Fatalf("err = %q", st.Err)
	}
	if f.writer.calls != 0 || f.synth.calls != 0 || f.artifacts.calls != 0 {
		t.Fatalf("downstream stages ran after extraction failure: %d/%d/%d",
			f.writer.calls, f.synth.calls, f.artifacts.calls)
	}
}

func TestRun_EmptyContentNeverCallsLLM(t *testing.T) {
	f := newFixture()
	st := noteState()
	st.InputContent = "   "

	st = f.pipeline.Run(context.Background(), st)
	if st.Err != "no content to generate script from" {
		t.Fatalf("err = %q", st.Err)
	}
	if f.writer.calls != 0 {
		t.Fatalf("LLM called despite empty content")
	}
}

func TestRun_SynthesisFailureKeepsScript(t *testing.T) {
	f := newFixture()
	f.synth.err = errors.New("voice unavailable")

	st := f.pipeline.Run(context.Background(), noteState())
	if !st.Failed() {
		t.Fatalf("expected failure")
	}
	if st.Script != "generated script" {
		t.Fatalf("script should survive a downstream failure, got %q", st.Script)
	}
	if st.AudioURL != "" || len(st.AudioBytes) != 0 {
		t.Fatalf("failed synthesis must not produce audio outputs")
	}
	if f.artifacts.calls != 0 {
		t.Fatalf("upload ran after synthesis failure")
	}
}

func TestRun_UploadFailure(t *testing.T) {
	f := newFixture()
	f.artifacts.err = errors.New("disk full")

	st := f.pipeline.Run(context.Background(), noteState())
	if st.Err != "audio upload failed: disk full" {
		t.Fatalf("err = %q", st.Err)
	}
	if st.AudioURL != "" {
		t.Fatalf("audio url set despite upload failure")
	}
}

func TestRun_FirstFailureWins(t *testing.T) {
	st := State{}
	st.fail("first")
	st.fail("second")
	if st.Err != "first" {
		t.Fatalf("err = %q, want the first failure preserved", st.Err)
	}
}

func TestRun_PanicIsRecovered(t *testing.T) {
	f := newFixture()
	f.writer.panicky = true

	st := f.pipeline.Run(context.Background(), noteState())
	if st.Err != "internal processing error" {
		t.Fatalf("err = %q", st.Err)
	}
	if f.synth.calls != 0 || f.artifacts.calls != 0 {
		t.Fatalf("stages ran after a panic")
	}
}
