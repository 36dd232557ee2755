package sinks

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AutumnsGrove/FableParser/internal/entities"
)

// LocalSink persists rendered documents to the output directory. This is
// the primary sink; mirrors run only after a local write succeeds.
type LocalSink struct{}

func NewLocalSink() *LocalSink {
	return &LocalSink{}
}

// Write stores the document at its identity path. The write is atomic
// (temp file + rename) so an interrupted run never leaves a half-written
// note behind.
func (s *LocalSink) Write(doc entities.RenderedDocument) error {
	dir := filepath.Dir(doc.Identity.Filepath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".fable-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(doc.Content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, doc.Identity.Filepath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("move document into place: %w", err)
	}
	return nil
}
