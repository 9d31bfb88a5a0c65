// Package filesystem reads note files from a local directory tree and
// watches it for changes.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

var log = logger.For("filesystem")

// Ensure Source implements the interface.
var _ driven.FileSource = (*Source)(nil)

// Source is a directory tree of note files. Hidden files and directories
// below the root are skipped.
type Source struct {
	root string
}

// New creates a source rooted at root.
func New(root string) *Source {
	return &Source{root: filepath.Clean(root)}
}

// Open is a driven.FileSourceFactory that checks root is a directory.
func Open(root string) (driven.FileSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory: %w", root, domain.ErrInvalidInput)
	}
	return New(root), nil
}

// Root returns the directory the source reads.
func (s *Source) Root() string {
	return s.root
}

// Walk calls fn for every visible regular file under the root.
func (s *Source) Walk(ctx context.Context, fn func(path string) error) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == s.root {
				return err
			}
			log.Warn("Skipping %s: %v", path, err)
			return nil
		}
		if s.isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(path)
	})
}

// Watch reports file writes and removals under the root until ctx is
// cancelled. Directories created while watching are watched too.
func (s *Source) Watch(ctx context.Context) (<-chan domain.FileChange, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := s.addTree(watcher, s.root); err != nil {
		watcher.Close()
		return nil, err
	}

	changes := make(chan domain.FileChange)
	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && isDir(event.Name) && !s.isHidden(event.Name) {
					if err := s.addTree(watcher, event.Name); err != nil {
						log.Warn("Failed to watch %s: %v", event.Name, err)
					}
					continue
				}
				change := s.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("Watch error: %v", err)
			}
		}
	}()
	return changes, nil
}

// addTree watches dir and every visible directory below it.
func (s *Source) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if s.isHidden(path) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// handleFsEvent maps a watcher event to a file change, or nil when the
// event is not interesting.
func (s *Source) handleFsEvent(event fsnotify.Event) *domain.FileChange {
	if s.isHidden(event.Name) {
		return nil
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &domain.FileChange{Path: event.Name, Type: domain.FileRemoved}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		return &domain.FileChange{Path: event.Name, Type: domain.FileWritten}
	default:
		return nil
	}
}

// isHidden reports whether any element of path below the root starts
// with a dot.
func (s *Source) isHidden(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		rel = path
	}
	return isHiddenPath(rel)
}

func isHiddenPath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
