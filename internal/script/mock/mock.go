package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jo-hoe/clipcast/internal/common"
	"github.com/jo-hoe/clipcast/internal/config"
	"github.com/jo-hoe/clipcast/internal/script"
)

var _ script.Writer = (*Writer)(nil)

// Writer is a deterministic script writer for development and tests.
type Writer struct {
	delay time.Duration
}

// New creates a mock writer from config.
func New(cfg config.MockSettings) *Writer {
	return &Writer{delay: cfg.Delay}
}

// Generate produces a short narration referencing the input, after an optional
// configured delay. It respects context cancellation during the delay.
func (w *Writer) Generate(ctx context.Context, req script.Request) (string, error) {
	if w.delay > 0 {
		timer := time.NewTimer(w.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	snippet := req.Content
	if len(snippet) > 120 {
		snippet = snippet[:120]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here's a %d minute take on the following: %s.", req.TargetMinutes, snippet)
	if strings.TrimSpace(req.ContextInstruction) != "" {
		fmt.Fprintf(&sb, " With a special focus on: %s.", req.ContextInstruction)
	}
	// Pad towards the word target so downstream duration estimates look sane.
	target := req.TargetMinutes * common.WordsPerMinute
	for words := len(strings.Fields(sb.String())); words < target; words += 8 {
		sb.WriteString(" And that is worth a moment of your attention today.")
	}
	return sb.String(), nil
}
