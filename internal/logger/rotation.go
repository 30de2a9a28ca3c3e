package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const backupTimeFormat = "20060102-150405.000000"

// RotatingWriter appends to a log file and moves it aside once a write would
// take it past the size limit. Backups are named "<file>.<timestamp>",
// optionally gzipped, and removed once older than the age limit.
type RotatingWriter struct {
	path     string
	maxBytes int64
	maxAge   time.Duration
	compress bool

	mu   sync.Mutex
	file *os.File
	size int64

	// background gzip and prune jobs
	jobs sync.WaitGroup
}

// NewRotatingWriter opens path for appending. maxSizeMB <= 0 disables
// rotation and maxAgeDays <= 0 keeps backups forever.
func NewRotatingWriter(path string, maxSizeMB, maxAgeDays int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, size, err := openAppend(path)
	if err != nil {
		return nil, err
	}

	w := &RotatingWriter{
		path:     path,
		compress: compress,
		file:     file,
		size:     size,
	}
	if maxSizeMB > 0 {
		w.maxBytes = int64(maxSizeMB) << 20
	}
	if maxAgeDays > 0 {
		w.maxAge = time.Duration(maxAgeDays) * 24 * time.Hour
	}

	w.background(func() { pruneBackups(w.path, w.maxAge, time.Now()) })
	return w, nil
}

func openAppend(path string) (*os.File, int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to stat log file: %w", err)
	}
	return file, info.Size(), nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	// A single oversized write still lands in an empty file.
	if w.maxBytes > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the file and waits for pending gzip and prune jobs.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	var err error
	if w.file != nil {
		err = w.file.Close()
		w.file = nil
	}
	w.mu.Unlock()

	w.jobs.Wait()
	return err
}

// rotate must be called with mu held.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	backup := w.path + "." + time.Now().Format(backupTimeFormat)
	if err := os.Rename(w.path, backup); err != nil {
		return err
	}

	file, _, err := openAppend(w.path)
	if err != nil {
		return err
	}
	w.file = file
	w.size = 0

	w.background(func() {
		if w.compress {
			_ = gzipAndRemove(backup)
		}
		pruneBackups(w.path, w.maxAge, time.Now())
	})
	return nil
}

func (w *RotatingWriter) background(job func()) {
	w.jobs.Add(1)
	go func() {
		defer w.jobs.Done()
		job()
	}()
}

// gzipAndRemove replaces path with path.gz.
func gzipAndRemove(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		dst.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// pruneBackups removes backups of path last modified before now-maxAge and
// returns how many were removed. The live file is never touched.
func pruneBackups(path string, maxAge time.Duration, now time.Time) int {
	if maxAge <= 0 {
		return 0
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), base+".") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			removed++
		}
	}
	return removed
}
