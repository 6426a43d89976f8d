package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zheng/pyflow/internal/namespace"
)

// RenderResult describes one re-render triggered by a change.
type RenderResult struct {
	Nodes   int
	Edges   int
	Outputs []string // 写出的文件
	Skipped bool     // 源码指纹未变，跳过渲染
}

// RenderFunc re-renders after the given .py files changed.
type RenderFunc func(ctx context.Context, changed []string) (RenderResult, error)

// Watcher watches for .py changes and triggers re-rendering
type Watcher struct {
	root      string
	render    RenderFunc
	fsWatcher *fsnotify.Watcher

	// Debouncing
	debounceDelay time.Duration
	pendingFiles  map[string]struct{}
	pendingMu     sync.Mutex
	debounceTimer *time.Timer
	renderMu      sync.Mutex

	// Callbacks
	onRenderStart func(changed []string)
	onRenderDone  func(result RenderResult, duration time.Duration)
	onError       func(error)

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// WatcherOption configures the watcher
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithOnRenderStart sets the callback for when a render starts
func WithOnRenderStart(fn func(changed []string)) WatcherOption {
	return func(w *Watcher) {
		w.onRenderStart = fn
	}
}

// WithOnRenderDone sets the callback for when a render completes
func WithOnRenderDone(fn func(result RenderResult, duration time.Duration)) WatcherOption {
	return func(w *Watcher) {
		w.onRenderDone = fn
	}
}

// WithOnError sets the callback for errors
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a Watcher over every source directory under root.
func New(root string, render RenderFunc, opts ...WatcherOption) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:          root,
		render:        render,
		fsWatcher:     fsWatcher,
		debounceDelay: 500 * time.Millisecond, // Default debounce
		pendingFiles:  make(map[string]struct{}),
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	// Add all directories to watch
	if err := w.addDirs(); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to add directories to watch: %w", err)
	}

	return w, nil
}

// addDirs recursively adds all directories to the watcher
func (w *Watcher) addDirs() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.root && namespace.SkipDir(info.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Start begins watching for changes. Renders run under ctx.
func (w *Watcher) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
	go w.eventLoop()
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	close(w.done)
	if w.cancel != nil {
		w.cancel()
	}
	w.pendingMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

// eventLoop handles file system events
func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return

		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// handleEvent processes a single file system event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories are watched as they appear
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !namespace.SkipDir(info.Name()) {
				w.fsWatcher.Add(event.Name)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".py") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pendingFiles[event.Name] = struct{}{}

	// Reset debounce timer
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.triggerRender)
}

// triggerRender runs the render after debounce
func (w *Watcher) triggerRender() {
	w.pendingMu.Lock()
	files := make([]string, 0, len(w.pendingFiles))
	for f := range w.pendingFiles {
		files = append(files, f)
	}
	w.pendingFiles = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(files) == 0 || w.ctx.Err() != nil {
		return
	}
	sort.Strings(files)

	// One render at a time; a burst arriving mid-render waits its turn.
	w.renderMu.Lock()
	defer w.renderMu.Unlock()

	if w.onRenderStart != nil {
		w.onRenderStart(files)
	}

	startTime := time.Now()
	result, err := w.render(w.ctx, files)
	if err != nil {
		if w.onError != nil {
			w.onError(fmt.Errorf("render failed: %w", err))
		}
		return
	}

	if w.onRenderDone != nil {
		w.onRenderDone(result, time.Since(startTime))
	}
}
