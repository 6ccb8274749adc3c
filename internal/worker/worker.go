package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jo-hoe/clipcast/internal/clips"
	"github.com/jo-hoe/clipcast/internal/config"
	"github.com/jo-hoe/clipcast/internal/pipeline"
)

// Worker polls the clip store for pending clips and drives each one through
// the pipeline to a terminal status. A single worker processes clips
// serially, oldest first, which bounds external API concurrency and spend.
type Worker struct {
	log      *slog.Logger
	store    clips.Store
	pipeline *pipeline.Pipeline
	interval time.Duration
	batch    int
}

// New creates a worker from config.
func New(log *slog.Logger, store clips.Store, p *pipeline.Pipeline, cfg config.WorkerConfig) *Worker {
	return &Worker{
		log:      log,
		store:    store,
		pipeline: p,
		interval: cfg.PollInterval,
		batch:    cfg.PendingBatch,
	}
}

// Run scans for pending clips on a fixed interval until ctx is cancelled.
// A failing clip never stops the loop; its failure is projected onto the
// record and the worker moves on.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker starting", "poll_interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			w.log.Info("worker stopping")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one scan: fetch pending clips oldest first, claim and
// process each in turn.
func (w *Worker) RunOnce(ctx context.Context) {
	pending, err := w.store.FetchPending(ctx, w.batch)
	if err != nil {
		w.log.Error("fetch pending clips", "err", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	w.log.Debug("found pending clips", "count", len(pending))

	for _, clip := range pending {
		if ctx.Err() != nil {
			return
		}
		w.processClip(ctx, clip)
	}
}

// processClip claims one clip and runs it to a terminal status. The claim is
// the mutual-exclusion point: a clip that is already processing or terminal
// is skipped without touching any external service.
func (w *Worker) processClip(ctx context.Context, clip *clips.Clip) {
	log := w.log.With("clip_id", clip.ID)

	claimed, err := w.store.Claim(ctx, clip.ID, time.Now().UTC())
	if err != nil {
		log.Error("claim clip", "err", err)
		return
	}
	if !claimed {
		log.Debug("clip no longer pending, skipping")
		return
	}

	log.Info("processing clip", "input_type", clip.InputType, "target_duration", clip.TargetDuration)
	start := time.Now()

	st := w.pipeline.Run(ctx, pipeline.NewState(clip))
	w.project(ctx, clip.ID, st)

	if st.Failed() {
		log.Warn("clip failed", "err", st.Err, "duration", time.Since(start).String())
	} else {
		log.Info("clip completed", "audio_duration", st.ActualDuration, "duration", time.Since(start).String())
	}
}

// project maps the terminal pipeline state onto the clip record. The store's
// guarded updates keep terminal statuses idempotent, so a duplicate write can
// never change an already terminal clip.
func (w *Worker) project(ctx context.Context, clipID string, st pipeline.State) {
	now := time.Now().UTC()
	if st.Failed() {
		// Keep a script that was generated before the failing stage; audio
		// outputs are never written for a failed clip.
		var generated *string
		if st.Script != "" {
			s := st.Script
			generated = &s
		}
		if err := w.store.SaveError(ctx, clipID, st.Err, generated, now); err != nil {
			w.log.Error("save clip error", "clip_id", clipID, "err", err)
		}
		return
	}

	res := clips.Result{
		GeneratedScript: st.Script,
		AudioURL:        st.AudioURL,
		ActualDuration:  st.ActualDuration,
	}
	if st.PageTitle != "" {
		title := st.PageTitle
		res.PageTitle = &title
	}
	if err := w.store.SaveResult(ctx, clipID, res, now); err != nil {
		w.log.Error("save clip result", "clip_id", clipID, "err", err)
	}
}
