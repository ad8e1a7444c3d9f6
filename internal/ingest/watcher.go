package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resolvd/internal/store"
)

// ErrWatcherFailed indicates the spool watcher could not start.
var ErrWatcherFailed = errors.New("failed to initialize spool watcher")

const defaultDebounce = 500 * time.Millisecond

// LineIngester consumes one unstructured log line.
type LineIngester interface {
	IngestText(ctx context.Context, logText, serviceName string, metadata map[string]any) (*store.LogEntry, error)
}

var _ LineIngester = (*Service)(nil)

// Watcher ingests log files dropped into a spool directory. Each
// non-empty line of a *.log file becomes one unstructured entry;
// processed files are removed. Writes are debounced so a file is read
// once, after the producer stops appending.
type Watcher struct {
	dir      string
	debounce time.Duration
	ingester LineIngester
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	stop    chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher creates a spool watcher for dir. A non-positive debounce
// uses the default.
func NewWatcher(dir string, debounce time.Duration, ingester LineIngester, logger *zap.Logger) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: spool directory is required", ErrWatcherFailed)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		ingester: ingester,
		logger:   logger,
		watcher:  fsWatcher,
		stop:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the spool directory and schedules files
// already present. Processing runs in a background goroutine until
// Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("%w: watching %s: %v", ErrWatcherFailed, w.dir, err)
	}

	// Pick up files dropped before the watch was established.
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrWatcherFailed, w.dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && isSpoolFile(entry.Name()) {
			w.schedule(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}

	go w.processEvents(ctx)

	w.logger.Info("spool watcher started", zap.String("dir", w.dir))
	return nil
}

// Stop stops the watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()

		w.mu.Lock()
		for _, timer := range w.timers {
			timer.Stop()
		}
		w.mu.Unlock()
	}
}

// processEvents drains filesystem events and schedules spool files.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isSpoolFile(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("spool watcher error", zap.Error(err))
		}
	}
}

// schedule (re)arms the debounce timer for path. Repeated writes keep
// pushing processing back until the file goes quiet.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}
		w.processFile(ctx, path)
	})
}

// processFile ingests each non-empty line and removes the file. Line
// failures are logged and skipped so one bad line never strands the
// rest of the file.
func (w *Watcher) processFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("failed to read spool file",
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}

	metadata := map[string]any{"source_file": filepath.Base(path)}

	var ingested, failed int
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := w.ingester.IngestText(ctx, line, "", metadata); err != nil {
			failed++
			w.logger.Warn("failed to ingest spool line",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		ingested++
	}

	if err := os.Remove(path); err != nil {
		w.logger.Warn("failed to remove spool file",
			zap.String("path", path),
			zap.Error(err),
		)
	}

	w.logger.Info("spool file processed",
		zap.String("path", path),
		zap.Int("ingested", ingested),
		zap.Int("failed", failed),
	)
}

// isSpoolFile reports whether name looks like a droppable log file.
func isSpoolFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".log")
}
