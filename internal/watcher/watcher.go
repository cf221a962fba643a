// Package watcher re-runs the analysis when compiled artifacts change.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/zheng/connviz/internal/analysis"
	"github.com/zheng/connviz/internal/classfile"
	"github.com/zheng/connviz/internal/config"
	"github.com/zheng/connviz/internal/storage"
)

// Watcher watches artifact roots and triggers reanalysis
type Watcher struct {
	roots     []string
	dbPath    string
	cfg       *config.Config
	matcher   *ignore.GitIgnore
	fsWatcher *fsnotify.Watcher

	// Debouncing
	debounceDelay time.Duration
	pendingFiles  map[string]struct{}
	pendingMu     sync.Mutex
	debounceTimer *time.Timer

	// one analysis at a time
	runMu sync.Mutex

	// Callbacks
	onAnalysisStart func(changed []string)
	onAnalysisDone  func(res *analysis.Result)
	onError         func(error)

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WatcherOption configures the watcher
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithDatabase stores every successful result at path
func WithDatabase(path string) WatcherOption {
	return func(w *Watcher) {
		w.dbPath = path
	}
}

// WithOnAnalysisStart sets the callback for when analysis starts
func WithOnAnalysisStart(fn func(changed []string)) WatcherOption {
	return func(w *Watcher) {
		w.onAnalysisStart = fn
	}
}

// WithOnAnalysisDone sets the callback for when analysis completes
func WithOnAnalysisDone(fn func(res *analysis.Result)) WatcherOption {
	return func(w *Watcher) {
		w.onAnalysisDone = fn
	}
}

// WithOnError sets the callback for errors
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a Watcher over the given roots. Directories are watched
// recursively; file roots (.class, .jar, .war) are watched through their
// parent directory.
func New(roots []string, cfg *config.Config, opts ...WatcherOption) (*Watcher, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		roots:         roots,
		cfg:           cfg,
		matcher:       classfile.NewMatcher(cfg.Exclude),
		fsWatcher:     fsWatcher,
		debounceDelay: 500 * time.Millisecond, // Default debounce
		pendingFiles:  make(map[string]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}

	for _, opt := range opts {
		opt(w)
	}

	for _, root := range roots {
		if err := w.addRoot(root); err != nil {
			cancel()
			fsWatcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", root, err)
		}
	}

	return w, nil
}

func (w *Watcher) addRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.fsWatcher.Add(filepath.Dir(root))
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(info.Name(), ".") || w.excluded(path, true)) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// excluded matches path, relative to the root that contains it, against
// the exclude patterns
func (w *Watcher) excluded(path string, dir bool) bool {
	if w.matcher == nil {
		return false
	}
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		if dir {
			rel += "/"
		}
		return w.matcher.MatchesPath(rel)
	}
	return false
}

// Start begins watching for changes
func (w *Watcher) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.eventLoop()
	}()
}

// Stop stops the watcher and cancels a running analysis
func (w *Watcher) Stop() error {
	w.cancel()
	w.pendingMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.pendingMu.Unlock()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	w.runMu.Lock()
	w.runMu.Unlock()
	return err
}

// eventLoop handles file system events
func (w *Watcher) eventLoop() {
	for {
		select {
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
			w.reportError(err)
		}
	}
}

// relevant reports whether an event should schedule a reanalysis
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return classfile.IsArtifactPath(event.Name) && !w.excluded(event.Name, false)
}

// handleEvent processes a single file system event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// new directories (e.g. a fresh build output tree) are watched too
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.excluded(event.Name, true) {
			w.addRoot(event.Name)
			w.schedule(event.Name)
			return
		}
	}
	if w.relevant(event) {
		w.schedule(event.Name)
	}
}

// schedule adds a changed path and resets the debounce timer
func (w *Watcher) schedule(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pendingFiles[path] = struct{}{}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.triggerAnalysis)
}

// triggerAnalysis runs the analysis after debounce
func (w *Watcher) triggerAnalysis() {
	w.pendingMu.Lock()
	files := make([]string, 0, len(w.pendingFiles))
	for f := range w.pendingFiles {
		files = append(files, f)
	}
	w.pendingFiles = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(files) == 0 {
		return
	}

	w.runMu.Lock()
	defer w.runMu.Unlock()
	if w.ctx.Err() != nil {
		return
	}

	if w.onAnalysisStart != nil {
		w.onAnalysisStart(files)
	}

	res, err := w.runAnalysis()
	if err != nil {
		if w.ctx.Err() == nil {
			w.reportError(fmt.Errorf("analysis failed: %w", err))
		}
		return
	}

	if w.onAnalysisDone != nil {
		w.onAnalysisDone(res)
	}
}

// runAnalysis re-scans every root and stores the result when a database is set
func (w *Watcher) runAnalysis() (*analysis.Result, error) {
	res, err := analysis.RunPaths(w.ctx, w.roots, w.cfg)
	if err != nil {
		return nil, err
	}
	if w.dbPath == "" {
		return res, nil
	}

	db, err := storage.Open(w.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.SaveGraph(res.Graph, res.Warnings); err != nil {
		return nil, fmt.Errorf("failed to save graph: %w", err)
	}
	return res, nil
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
