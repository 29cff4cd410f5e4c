package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// LocalHandler stores artifacts on a filesystem rooted at a base
// directory. It is written against afero.Fs so tests run on an in-memory
// filesystem and production on the OS one.
type LocalHandler struct {
	fs   afero.Fs
	base string
}

// NewLocalHandler creates a handler rooted at basePath, creating the
// directory if needed.
func NewLocalHandler(basePath string) (*LocalHandler, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving base path %s: %v", ErrMisconfigure, basePath, err)
	}
	return newLocalHandler(afero.NewOsFs(), abs)
}

// newLocalHandler is the test seam for injecting an in-memory filesystem.
func newLocalHandler(filesystem afero.Fs, basePath string) (*LocalHandler, error) {
	if err := filesystem.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating base directory %s: %v", ErrMisconfigure, basePath, err)
	}
	return &LocalHandler{fs: filesystem, base: basePath}, nil
}

// resolve joins path onto the base and rejects traversal outside it. A
// leading slash is treated as base-relative; ".." segments that would
// climb past the base are an error, not silently normalized away.
func (h *LocalHandler) resolve(path string) (string, error) {
	rel := filepath.Clean(strings.TrimPrefix(filepath.FromSlash(path), string(filepath.Separator)))
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, path)
	}
	return filepath.Join(h.base, rel), nil
}

func (h *LocalHandler) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Path: path, Transient: true, Err: err}
	}
	dest, err := h.resolve(path)
	if err != nil {
		return &WriteError{Path: path, Transient: false, Err: err}
	}
	if err := h.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return h.classifyWrite(path, err)
	}

	// Same-directory temp file plus rename keeps the publish atomic: a
	// reader sees either nothing or the complete object at dest.
	tmp := filepath.Join(filepath.Dir(dest), ".tmp-"+filepath.Base(dest)+"-"+uuid.NewString()[:8])
	if err := afero.WriteFile(h.fs, tmp, data, 0o644); err != nil {
		h.fs.Remove(tmp)
		return h.classifyWrite(path, err)
	}
	if err := h.fs.Rename(tmp, dest); err != nil {
		h.fs.Remove(tmp)
		return h.classifyWrite(path, err)
	}
	slog.Debug("wrote local object", "path", path, "bytes", len(data))
	return nil
}

func (h *LocalHandler) classifyWrite(path string, err error) error {
	transient := !errors.Is(err, fs.ErrPermission) && !errors.Is(err, ErrPathEscapes)
	return &WriteError{Path: path, Transient: transient, Err: err}
}

func (h *LocalHandler) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := h.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(h.fs, src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func (h *LocalHandler) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := h.resolve(prefix)
	if err != nil {
		return nil, err
	}
	exists, err := afero.DirExists(h.fs, root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	if !exists {
		return nil, nil
	}

	var paths []string
	err = afero.Walk(h.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(h.base, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (h *LocalHandler) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := h.resolve(path)
	if err != nil {
		return false, err
	}
	return afero.Exists(h.fs, p)
}

func (h *LocalHandler) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := h.resolve(path)
	if err != nil {
		return err
	}
	if err := h.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

func (h *LocalHandler) URI(path string) string {
	resolved, err := h.resolve(path)
	if err != nil {
		// No error channel here; pin escaping paths inside the base.
		return "file://" + filepath.ToSlash(filepath.Join(h.base, filepath.Clean("/"+path)))
	}
	return "file://" + filepath.ToSlash(resolved)
}

var _ Handler = (*LocalHandler)(nil)
