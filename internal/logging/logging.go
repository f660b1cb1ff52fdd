package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

// DefaultMaxSize caps the active log file; one backup is kept at path + ".1".
const DefaultMaxSize = 2 * 1024 * 1024 // 2MB

// RotatingWriter appends to a log file and rotates it once it grows past maxSize.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup opens logPath with DefaultMaxSize and tees the standard logger to
// stdout and the file.
func Setup(logPath string) (*RotatingWriter, error) {
	rw, err := Open(logPath, DefaultMaxSize)
	if err != nil {
		return nil, err
	}
	log.SetOutput(rw.Tee(os.Stdout))
	return rw, nil
}

// Open opens logPath for appending. A file already past maxSize is truncated.
func Open(logPath string, maxSize int64) (*RotatingWriter, error) {
	if info, err := os.Stat(logPath); err == nil && info.Size() > maxSize {
		_ = os.Truncate(logPath, 0)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	return &RotatingWriter{
		file:    f,
		path:    logPath,
		size:    size,
		maxSize: maxSize,
	}, nil
}

// Tee returns a writer that writes to w and the log file.
func (w *RotatingWriter) Tee(console io.Writer) io.Writer {
	return io.MultiWriter(console, w)
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		w.rotate()
	}

	return n, err
}

func (w *RotatingWriter) rotate() {
	w.file.Close()

	_ = os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		// Fall back to appending to the backup.
		if f, err = os.OpenFile(w.path+".1", os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			return
		}
	}

	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
