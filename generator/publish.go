package generator

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/opgen/errors"
)

// Publisher makes a generated file visible to its consumers.
type Publisher interface {
	Publish(ctx context.Context, src []byte) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, src []byte) error

// Publish calls f(ctx, src).
func (f PublisherFunc) Publish(ctx context.Context, src []byte) error {
	return f(ctx, src)
}

// tempPrefix names the staging files FilePublisher creates next to its target.
const tempPrefix = ".opgen-"

// FilePublisher replaces the file at Path. The content is staged in a
// temporary file in the same directory and renamed over Path, so readers
// see either the previous file or the new one in full.
type FilePublisher struct {
	Path string
	// Perm is the mode of the published file, 0644 when zero
	Perm os.FileMode
}

// NewFilePublisher returns a FilePublisher for path.
func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{Path: path}
}

// Publish implements Publisher.
func (p *FilePublisher) Publish(ctx context.Context, src []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	perm := p.Perm
	if perm == 0 {
		perm = 0o644
	}
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to stage %s", p.Path)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(src); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", tmpPath)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return errors.Wrapf(err, "failed to set mode of %s", tmpPath)
	}
	if err := os.Rename(tmpPath, p.Path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", p.Path)
	}
	committed = true
	return nil
}

// isStagingFile reports whether path is a FilePublisher staging file.
func isStagingFile(path string) bool {
	return strings.HasPrefix(filepath.Base(path), tempPrefix)
}

// WriterPublisher writes the generated file to W.
type WriterPublisher struct {
	W io.Writer
}

// Publish implements Publisher.
func (p WriterPublisher) Publish(ctx context.Context, src []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.W.Write(src)
	return errors.Wrap(err, "failed to write registration file")
}
