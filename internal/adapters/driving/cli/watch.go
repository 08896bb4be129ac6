package cli

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/querynest/internal/logger"
)

const defaultDebounce = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Upload documents as they appear in a directory",
	Long: `Watches a directory and uploads each supported file when it is created
or changes. Partly indexed documents are retried in the background while
the command runs. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var watchOpts struct {
	debounce time.Duration
	existing bool
}

func init() {
	watchCmd.Flags().DurationVar(&watchOpts.debounce, "debounce", defaultDebounce, "Wait this long after the last change before uploading")
	watchCmd.Flags().BoolVar(&watchOpts.existing, "existing", false, "Upload files already in the directory first")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	w, err := newFileWatcher(args[0], watchOpts.debounce, acceptFile, func(ctx context.Context, path string) error {
		doc, err := documentService.ProcessFile(ctx, path)
		view, err := uploadView(doc, err)
		if err != nil {
			return err
		}
		printUploaded(out, &view)
		return nil
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if watchOpts.existing {
		w.uploadExisting(ctx)
	}

	if retryScheduler != nil {
		go func() {
			if err := retryScheduler.Start(ctx); err != nil {
				logger.Warn("Retry scheduler stopped: %v", err)
			}
		}()
		defer func() { _ = retryScheduler.Stop() }()
	}

	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", w.dir)
	w.Run(ctx)
	return nil
}

// uploadFunc uploads one file.
type uploadFunc func(ctx context.Context, path string) error

// fileWatcher debounces file system events in one directory tree and
// uploads files whose content changed.
type fileWatcher struct {
	dir      string
	debounce time.Duration
	accept   func(string) bool
	upload   uploadFunc
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
	hashes  map[string][sha256.Size]byte
}

func newFileWatcher(dir string, debounce time.Duration, accept func(string) bool, upload uploadFunc) (*fileWatcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &fileWatcher{
		dir:      abs,
		debounce: debounce,
		accept:   accept,
		upload:   upload,
		watcher:  fsw,
		pending:  make(map[string]time.Time),
		hashes:   make(map[string][sha256.Size]byte),
	}
	if err := w.addRecursive(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *fileWatcher) Close() error {
	return w.watcher.Close()
}

func (w *fileWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			logger.Warn("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

// Run processes events until ctx ends.
func (w *fileWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("Watcher error: %v", err)

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *fileWatcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addRecursive(event.Name); err != nil {
				logger.Warn("Failed to watch new directory %s: %v", event.Name, err)
			}
		}
		return
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") || !w.accept(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
	logger.Debug("Change detected: %s (%s)", event.Name, event.Op)
}

// flush uploads files whose last change is older than the debounce delay.
func (w *fileWatcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var ready []string
	for path, changed := range w.pending {
		if now.Sub(changed) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	}
}

// process uploads path unless its content is unchanged since the last upload.
func (w *fileWatcher) process(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		logger.Debug("Skipping %s: %v", path, err)
		return
	}
	h := sha256.New()
	_, err = io.Copy(h, f)
	_ = f.Close()
	if err != nil {
		logger.Warn("Failed to read %s: %v", path, err)
		return
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))

	w.mu.Lock()
	prev, seen := w.hashes[path]
	w.mu.Unlock()
	if seen && prev == sum {
		return
	}

	if err := w.upload(ctx, path); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("Upload %s failed: %v", path, err)
		}
		return
	}

	w.mu.Lock()
	w.hashes[path] = sum
	w.mu.Unlock()
}

// uploadExisting uploads every accepted file already in the tree.
func (w *fileWatcher) uploadExisting(ctx context.Context) {
	var paths []string
	_ = filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != w.dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && w.accept(path) {
			paths = append(paths, path)
		}
		return nil
	})
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	}
}
