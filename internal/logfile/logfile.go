// Package logfile writes samples to an append-only CSV log, one durable
// line per sample.
package logfile

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/sample"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
	nameTimeLayout  = "20060102T150405"
)

// Writer owns the log file for the lifetime of the process.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	lines  int
	closed bool
}

// FileName returns the log file name for a run started at start.
func FileName(prefix string, start time.Time) string {
	return prefix + "-" + start.Format(nameTimeLayout) + ".csv"
}

// Open creates (or truncates) the file at path and writes the header.
func Open(path string) (*Writer, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(errors.ErrLogFileOpen, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrLogFileOpen, err)
	}

	w := &Writer{file: f, path: path}
	if err := w.writeLine(sample.Header); err != nil {
		f.Close()
		return nil, errFactory.Wrap(errors.ErrLogFileOpen, err)
	}

	return w, nil
}

func (w *Writer) Path() string {
	return w.path
}

// Lines returns the number of sample lines written, excluding the header.
func (w *Writer) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.lines
}

// Append writes s as one line and syncs it to storage before returning.
func (w *Writer) Append(s sample.Sample) error {
	errFactory := errors.New()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errFactory.New(errors.ErrLogFileClosed)
	}

	if err := w.writeLine(s.Line()); err != nil {
		return errFactory.Wrap(errors.ErrLogFileWrite, err)
	}
	w.lines++

	return nil
}

// writeLine issues a single write so a crash loses at most this line.
func (w *Writer) writeLine(line string) error {
	if _, err := w.file.WriteString(line + "\n"); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close closes the file. Further calls are no-ops.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.file.Close(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}
