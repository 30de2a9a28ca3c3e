package logger

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates the file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		info, err := os.Stat(logFile)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("creates missing directories", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "subdir", "test.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(filepath.Dir(logFile))
		assert.NoError(t, err)
	})

	t.Run("appends to an existing file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")
		require.NoError(t, os.WriteFile(logFile, []byte("earlier\n"), 0600))

		rw, err := NewRotatingWriter(logFile, 10, 0, false)
		require.NoError(t, err)
		_, err = rw.Write([]byte("later\n"))
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Equal(t, "earlier\nlater\n", string(content))
	})
}

func TestRotatingWriterRotation(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	rw, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	rw.maxBytes = 100

	data := []byte(strings.Repeat("a", 79) + "\n")
	_, err = rw.Write(data)
	require.NoError(t, err)
	_, err = rw.Write(data)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	backups, err := filepath.Glob(filepath.Join(tmpDir, "test.log.*"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestRotatingWriterCompressesBackups(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	rw, err := NewRotatingWriter(logFile, 1, 0, true)
	require.NoError(t, err)
	rw.maxBytes = 10

	_, err = rw.Write([]byte("first line\n"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("second line\n"))
	require.NoError(t, err)
	// Close waits for the gzip job.
	require.NoError(t, rw.Close())

	backups, err := filepath.Glob(filepath.Join(tmpDir, "test.log.*"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.True(t, strings.HasSuffix(backups[0], ".gz"))

	f, err := os.Open(backups[0])
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	content, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "first line\n", string(content))
}

func TestRotatingWriterZeroSizeNeverRotates(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	rw, err := NewRotatingWriter(logFile, 0, 0, false)
	require.NoError(t, err)
	defer rw.Close()

	for i := 0; i < 10; i++ {
		_, err = rw.Write([]byte(strings.Repeat("b", 200)))
		require.NoError(t, err)
	}

	backups, err := filepath.Glob(filepath.Join(tmpDir, "test.log.*"))
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestRotatingWriterWriteAfterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "test.log"), 10, 7, false)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	_, err = rw.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestGzipAndRemove(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test content"), 0600))

	require.NoError(t, gzipAndRemove(testFile))

	_, err := os.Stat(testFile + ".gz")
	assert.NoError(t, err)
	_, err = os.Stat(testFile)
	assert.True(t, os.IsNotExist(err))
}

func TestPruneBackups(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")
	now := time.Now()

	write := func(name string, age time.Duration) string {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
		mtime := now.Add(-age)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
		return path
	}

	old := write("test.log.20200101-120000.000000", 10*24*time.Hour)
	oldGz := write("test.log.20200102-120000.000000.gz", 9*24*time.Hour)
	recent := write("test.log.20200103-120000.000000", time.Hour)
	live := write("test.log", 30*24*time.Hour)
	other := write("other.log.20200101", 30*24*time.Hour)

	removed := pruneBackups(logFile, 7*24*time.Hour, now)
	assert.Equal(t, 2, removed)

	for _, gone := range []string{old, oldGz} {
		_, err := os.Stat(gone)
		assert.True(t, os.IsNotExist(err), gone)
	}
	for _, kept := range []string{recent, live, other} {
		_, err := os.Stat(kept)
		assert.NoError(t, err, kept)
	}

	assert.Zero(t, pruneBackups(logFile, 0, now))
}
