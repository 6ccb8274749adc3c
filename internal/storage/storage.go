package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jo-hoe/clipcast/internal/common"
)

// ArtifactStore persists finished clip audio and hands out retrievable URLs.
type ArtifactStore interface {
	// Upload durably stores the audio for a clip and returns its public URL.
	Upload(ctx context.Context, clipID string, audio []byte) (string, error)
	// Remove deletes the stored audio for a clip. Missing artifacts are not an error.
	Remove(ctx context.Context, clipID string) error
}

var _ ArtifactStore = (*LocalStore)(nil)

// LocalStore keeps audio artifacts on disk under baseDir/audio and serves
// them through the HTTP server's /audio path.
type LocalStore struct {
	dir           string
	publicBaseURL string
}

// NewLocalStore creates a store rooted at baseDir. publicBaseURL is the
// externally reachable server base, e.g. "http://localhost:8080".
func NewLocalStore(baseDir, publicBaseURL string) *LocalStore {
	return &LocalStore{
		dir:           filepath.Join(baseDir, common.AudioDirName),
		publicBaseURL: publicBaseURL,
	}
}

// Filename returns the deterministic artifact name for a clip.
func Filename(clipID string) string {
	return clipID + common.AudioFileExt
}

// Dir returns the directory artifacts are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Upload(ctx context.Context, clipID string, audio []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if clipID == "" {
		return "", fmt.Errorf("clip id is required")
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure audio dir: %w", err)
	}

	name := Filename(clipID)
	dst := filepath.Join(s.dir, name)

	// Write to a temp file first so a crash never leaves a partial artifact
	// behind the public URL.
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(audio); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("publish artifact: %w", err)
	}

	return s.publicBaseURL + common.PathAudio + "/" + name, nil
}

func (s *LocalStore) Remove(ctx context.Context, clipID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, Filename(clipID)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}
