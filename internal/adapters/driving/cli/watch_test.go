package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *uploadRecorder) upload(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
	return nil
}

func (r *uploadRecorder) uploaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func markdownOnly(path string) bool {
	return strings.HasSuffix(path, ".md")
}

func TestNewFileWatcher_Errors(t *testing.T) {
	_, err := newFileWatcher(filepath.Join(t.TempDir(), "missing"), 0, nil, nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
	_, err = newFileWatcher(file, 0, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestFileWatcher_UploadsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &uploadRecorder{}
	w, err := newFileWatcher(dir, 20*time.Millisecond, markdownOnly, rec.upload)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "brief.md"), []byte("# Brief"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.md"), []byte("x"), 0600))

	assert.Eventually(t, func() bool {
		return len(rec.uploaded()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"brief.md"}, rec.uploaded())

	// A new subdirectory is watched too.
	sub := filepath.Join(dir, "more")
	require.NoError(t, os.Mkdir(sub, 0700))
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(sub, "notes.md"), []byte("# Notes"), 0600)
		return len(rec.uploaded()) == 2
	}, 2*time.Second, 50*time.Millisecond)
}

func TestFileWatcher_SkipsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brief.md")
	require.NoError(t, os.WriteFile(path, []byte("# Brief"), 0600))

	rec := &uploadRecorder{}
	w, err := newFileWatcher(dir, time.Millisecond, markdownOnly, rec.upload)
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	w.process(ctx, path)
	w.process(ctx, path)
	assert.Equal(t, []string{"brief.md"}, rec.uploaded())

	require.NoError(t, os.WriteFile(path, []byte("# Brief v2"), 0600))
	w.process(ctx, path)
	assert.Equal(t, []string{"brief.md", "brief.md"}, rec.uploaded())
}

func TestFileWatcher_FlushWaitsForDebounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brief.md")
	require.NoError(t, os.WriteFile(path, []byte("# Brief"), 0600))

	rec := &uploadRecorder{}
	w, err := newFileWatcher(dir, time.Second, markdownOnly, rec.upload)
	require.NoError(t, err)
	defer w.Close()

	now := time.Now()
	w.pending[path] = now

	w.flush(context.Background(), now.Add(500*time.Millisecond))
	assert.Empty(t, rec.uploaded())

	w.flush(context.Background(), now.Add(time.Second))
	assert.Equal(t, []string{"brief.md"}, rec.uploaded())
	assert.Empty(t, w.pending)
}

func TestFileWatcher_UploadExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("b"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("c"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "d.md"), []byte("d"), 0600))

	rec := &uploadRecorder{}
	w, err := newFileWatcher(dir, 0, markdownOnly, rec.upload)
	require.NoError(t, err)
	defer w.Close()

	w.uploadExisting(context.Background())

	assert.Equal(t, []string{"a.md", "b.md"}, rec.uploaded())
}
