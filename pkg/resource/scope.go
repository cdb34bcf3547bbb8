package resource

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ErrScopeClosed is returned when a closed scope is asked for new resources
var ErrScopeClosed = errors.New("resource scope already closed")

// Scope owns the temporary files and streams created while sending one
// message. Close releases everything in reverse creation order.
type Scope struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	files   []string
	closers []io.Closer
	closed  bool
}

// NewScope creates a scope placing temporary files in dir. An empty dir uses
// os.TempDir.
func NewScope(dir string, logger *slog.Logger) *Scope {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scope{dir: dir, logger: logger}
}

// Logger returns the logger bound to this scope
func (s *Scope) Logger() *slog.Logger {
	return s.logger
}

// CreateTempFile creates a file that is deleted when the scope closes. The
// caller must close the returned handle; the scope only removes the path.
func (s *Scope) CreateTempFile(pattern string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrScopeClosed
	}

	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	s.files = append(s.files, f.Name())
	s.logger.Debug("created temporary file", slog.String("path", f.Name()))
	return f, nil
}

// AddCloser registers c to be closed with the scope
func (s *Scope) AddCloser(c io.Closer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrScopeClosed
	}
	s.closers = append(s.closers, c)
	return nil
}

// Files lists the temporary files currently owned by the scope
func (s *Scope) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

// Close closes registered streams and deletes temporary files. It is safe to
// call more than once.
func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(s.files) - 1; i >= 0; i-- {
		if err := os.Remove(s.files[i]); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to delete temporary file", slog.String("path", s.files[i]), slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	s.closers = nil
	s.files = nil
	return errors.Join(errs...)
}
