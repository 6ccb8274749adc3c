package clips

import (
	"context"
	"time"
)

// Status represents the lifecycle status of a clip.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further status transition may occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InputType distinguishes the two kinds of clip input.
type InputType string

const (
	InputURL  InputType = "url"
	InputNote InputType = "note"
)

// TargetDurations lists the valid target durations in minutes.
var TargetDurations = []int{2, 5, 10}

// ValidTargetDuration reports whether minutes is one of the supported values.
func ValidTargetDuration(minutes int) bool {
	for _, d := range TargetDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// Clip describes a single request to turn input content into an audio narration.
type Clip struct {
	ID                  string     // UUIDv4
	InputType           InputType  // url | note
	InputContent        string     // raw URL or note text
	ContextInstruction  *string    // optional user instruction (e.g. "focus on the numbers")
	TargetDuration      int        // target duration in minutes (2, 5, 10)
	PageTitle           *string    // title extracted from the URL (url inputs only)
	GeneratedScript     *string    // spoken-word script produced by the LLM
	AudioURL            *string    // public URL of the stored audio artifact
	ActualDuration      *float64   // measured audio duration in seconds
	ErrorMessage        *string    // last error, if any
	Status              Status     // current status
	IsFavorited         bool       // user flag, never touched by the pipeline
	CreatedAt           time.Time  // creation time
	StartedProcessingAt *time.Time // when the worker claimed the clip
	CompletedAt         *time.Time // when finished (success or failure)
}

// Result carries the output fields written on successful completion.
type Result struct {
	PageTitle       *string
	GeneratedScript string
	AudioURL        string
	ActualDuration  float64
}

// ListFilter narrows List queries.
type ListFilter struct {
	Status    *Status
	Favorited *bool
	Limit     int
	Offset    int
}

// Store defines persistence for clips and their lifecycle.
//
// Claim is the single point of mutual exclusion between the API layer and the
// worker: it atomically moves a pending clip to processing and reports whether
// this caller won the transition.
type Store interface {
	Create(ctx context.Context, clip *Clip) error
	Get(ctx context.Context, id string) (*Clip, error)
	List(ctx context.Context, filter ListFilter) ([]*Clip, int, error)
	FetchPending(ctx context.Context, limit int) ([]*Clip, error)
	Claim(ctx context.Context, id string, startedAt time.Time) (bool, error)
	SaveResult(ctx context.Context, id string, res Result, completedAt time.Time) error
	// SaveError marks the clip failed. generatedScript may carry a script that
	// was produced before a later stage failed; audio outputs are never written.
	SaveError(ctx context.Context, id string, errMsg string, generatedScript *string, completedAt time.Time) error
	ToggleFavorite(ctx context.Context, id string) (*Clip, error)
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}
