package script

import (
	"context"
)

// Request describes one script generation call.
type Request struct {
	Content            string // extracted text to transform
	ContextInstruction string // optional user focus, may be empty
	TargetMinutes      int    // requested clip length in minutes
}

// Writer defines the capability to turn extracted content into a
// conversational spoken-word script sized for the target duration.
type Writer interface {
	Generate(ctx context.Context, req Request) (string, error)
}
