package sync

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/openmined/syftbox-client/internal/aclspec"
)

const (
	DefaultIgnoreTimeout   = time.Second
	defaultCleanupInterval = 15 * time.Second
	eventBufferSize        = 64
	defaultDebounceTimeout = 50 * time.Millisecond
)

// FilterCallback reports whether a raw event path should be dropped before
// it reaches the debouncer.
type FilterCallback func(path string) bool

// FileWatcher watches a directory tree for writes and emits debounced
// events. Paths can be ignored one-shot so the engine's own writes don't
// echo back as local changes.
type FileWatcher struct {
	watchDir        string
	events          chan notify.EventInfo
	rawEvents       chan notify.EventInfo
	cleanupInterval time.Duration
	done            chan struct{}
	wg              sync.WaitGroup

	ignoreMu sync.RWMutex
	ignore   map[string]time.Time

	// one pending event and timer per path while debouncing
	debounceMu      sync.Mutex
	pendingEvents   map[string]notify.EventInfo
	eventTimers     map[string]*time.Timer
	debounceTimeout time.Duration

	callbackMu     sync.RWMutex
	ignoreCallback FilterCallback
}

func NewFileWatcher(watchDir string) *FileWatcher {
	return &FileWatcher{
		watchDir:        watchDir,
		ignore:          make(map[string]time.Time),
		cleanupInterval: defaultCleanupInterval,
		done:            make(chan struct{}),
		pendingEvents:   make(map[string]notify.EventInfo),
		eventTimers:     make(map[string]*time.Timer),
		debounceTimeout: defaultDebounceTimeout,
	}
}

func (fw *FileWatcher) SetCleanupInterval(interval time.Duration) {
	fw.cleanupInterval = interval
}

func (fw *FileWatcher) SetDebounceTimeout(timeout time.Duration) {
	fw.debounceTimeout = timeout
}

// FilterPaths installs a callback that drops raw events before debouncing.
// Returning true from the callback discards the event.
func (fw *FileWatcher) FilterPaths(callback FilterCallback) {
	fw.callbackMu.Lock()
	defer fw.callbackMu.Unlock()
	fw.ignoreCallback = callback
}

func (fw *FileWatcher) Start(ctx context.Context) error {
	slog.Info("file watcher start", "dir", fw.watchDir)

	fw.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	fw.events = make(chan notify.EventInfo, eventBufferSize)

	if err := notify.Watch(fw.watchDir+"/...", fw.rawEvents, notify.Write); err != nil {
		return err
	}

	fw.wg.Add(2)
	go fw.filterEvents(ctx)
	go fw.cleanupExpiredEntries(ctx)

	return nil
}

func (fw *FileWatcher) Stop() {
	slog.Info("file watcher stopping")

	close(fw.done)

	// notify.Stop also closes rawEvents
	if fw.rawEvents != nil {
		notify.Stop(fw.rawEvents)
	}

	fw.wg.Wait()

	slog.Info("file watcher stopped")
}

func (fw *FileWatcher) Events() <-chan notify.EventInfo {
	return fw.events
}

// IgnoreOnce suppresses the next write event for path within the default
// timeout window.
func (fw *FileWatcher) IgnoreOnce(path string) {
	fw.IgnoreOnceWithTimeout(path, DefaultIgnoreTimeout)
}

// IgnoreOnceWithTimeout suppresses the next write event for path within the
// given window.
func (fw *FileWatcher) IgnoreOnceWithTimeout(path string, timeout time.Duration) {
	fw.ignoreMu.Lock()
	defer fw.ignoreMu.Unlock()
	fw.ignore[path] = time.Now().Add(timeout)
}

// consumeIgnore reports whether path has a live one-shot ignore and clears
// the entry either way.
func (fw *FileWatcher) consumeIgnore(path string) bool {
	fw.ignoreMu.Lock()
	defer fw.ignoreMu.Unlock()

	expiry, exists := fw.ignore[path]
	if !exists {
		return false
	}
	delete(fw.ignore, path)

	return !time.Now().After(expiry)
}

func (fw *FileWatcher) shouldDrop(path string) bool {
	fw.callbackMu.RLock()
	cb := fw.ignoreCallback
	fw.callbackMu.RUnlock()
	return cb != nil && cb(path)
}

func (fw *FileWatcher) filterEvents(ctx context.Context) {
	defer func() {
		slog.Debug("file watcher filter events done")
		fw.flushAllPending()
		fw.wg.Done()
		close(fw.events)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case event, ok := <-fw.rawEvents:
			if !ok {
				return
			}

			if fw.shouldDrop(event.Path()) {
				continue
			}

			// inotify fires a burst of WRITE events while a file is being
			// written, so coalesce per path at the cost of the debounce delay
			fw.debounceEvent(event)
		}
	}
}

// flushAllPending stops every timer and pushes still-pending events out on
// shutdown so nothing silently disappears. ACL files go first, same as the
// regular flush path.
func (fw *FileWatcher) flushAllPending() {
	fw.debounceMu.Lock()
	paths := make([]string, 0, len(fw.pendingEvents))
	for path, timer := range fw.eventTimers {
		timer.Stop()
		if _, exists := fw.pendingEvents[path]; exists {
			paths = append(paths, path)
		}
	}
	sortACLFirst(paths)

	events := make([]notify.EventInfo, 0, len(paths))
	for _, path := range paths {
		events = append(events, fw.pendingEvents[path])
		delete(fw.pendingEvents, path)
		delete(fw.eventTimers, path)
	}
	fw.debounceMu.Unlock()

	for _, event := range events {
		select {
		case fw.events <- event:
			slog.Debug("file watcher flushing pending event on exit", "event", event)
		default:
			slog.Warn("file watcher channel full during exit, dropping event", "path", event.Path())
		}
	}
}

func (fw *FileWatcher) debounceEvent(event notify.EventInfo) {
	path := event.Path()

	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.eventTimers[path]; exists {
		timer.Stop()
	}

	fw.pendingEvents[path] = event
	fw.eventTimers[path] = time.AfterFunc(fw.debounceTimeout, func() {
		fw.flushEvent(path)
	})
}

func (fw *FileWatcher) flushEvent(path string) {
	fw.debounceMu.Lock()
	event, exists := fw.pendingEvents[path]
	delete(fw.pendingEvents, path)
	delete(fw.eventTimers, path)

	// a pending ACL file must reach the engine before the data files it
	// guards, so a data flush drags every still-debouncing ACL event along
	// ahead of itself
	var aclEvents []notify.EventInfo
	if exists && !aclspec.IsACLFile(path) {
		aclPaths := make([]string, 0)
		for p := range fw.pendingEvents {
			if aclspec.IsACLFile(p) {
				aclPaths = append(aclPaths, p)
			}
		}
		sort.Strings(aclPaths)
		for _, p := range aclPaths {
			if timer, ok := fw.eventTimers[p]; ok {
				timer.Stop()
			}
			aclEvents = append(aclEvents, fw.pendingEvents[p])
			delete(fw.pendingEvents, p)
			delete(fw.eventTimers, p)
		}
	}
	fw.debounceMu.Unlock()

	if !exists {
		return
	}

	for _, aclEvent := range aclEvents {
		fw.emitEvent(aclEvent)
	}
	fw.emitEvent(event)
}

func (fw *FileWatcher) emitEvent(event notify.EventInfo) {
	path := event.Path()

	// the ignore check runs at flush time, not arrival time, so a burst
	// that began before IgnoreOnce still gets suppressed
	if fw.consumeIgnore(path) {
		return
	}

	select {
	case fw.events <- event:
		slog.Debug("file watcher", "event", event.Event(), "path", path)
	default:
		slog.Warn("file watcher dropped", "reason", "channel full", "path", path)
	}
}

// sortACLFirst orders paths so ACL files precede everything else, each
// group alphabetical.
func sortACLFirst(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		ai, aj := aclspec.IsACLFile(paths[i]), aclspec.IsACLFile(paths[j])
		if ai != aj {
			return ai
		}
		return paths[i] < paths[j]
	})
}

func (fw *FileWatcher) cleanupExpiredEntries(ctx context.Context) {
	defer fw.wg.Done()

	ticker := time.NewTicker(fw.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case <-ticker.C:
			fw.ignoreMu.Lock()
			now := time.Now()
			for path, expiry := range fw.ignore {
				if now.After(expiry) {
					delete(fw.ignore, path)
				}
			}
			fw.ignoreMu.Unlock()
		}
	}
}
