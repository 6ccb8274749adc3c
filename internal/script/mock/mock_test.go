package mock

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/clipcast/internal/config"
	"github.com/jo-hoe/clipcast/internal/script"
)

func TestMockWriter_Generate(t *testing.T) {
	w := New(config.MockSettings{Delay: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := w.Generate(ctx, script.Request{
		Content:            "note about compost",
		ContextInstruction: "keep it light",
		TargetMinutes:      2,
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if !strings.Contains(out, "note about compost") {
		t.Fatalf("script missing content snippet: %q", out)
	}
	if !strings.Contains(out, "keep it light") {
		t.Fatalf("script missing context instruction: %q", out)
	}
	if words := len(strings.Fields(out)); words < 2*150 {
		t.Fatalf("script shorter than word target: %d words", words)
	}
}

func TestMockWriter_RespectsContextCancel(t *testing.T) {
	w := New(config.MockSettings{Delay: 200 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	if _, err := w.Generate(ctx, script.Request{Content: "x", TargetMinutes: 2}); err == nil {
		t.Fatalf("expected context cancellation error")
	}
}
