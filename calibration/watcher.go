package calibration

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/sphereloc/logging"
)

// editors often save with several writes in a row; only the last one triggers a reload
const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a calibration file when it changes and installs it in a Provider. A file that
// fails to load or validate is logged and the previous calibration stays in use.
type Watcher struct {
	provider      *Provider
	path          string
	captureWidth  int
	captureHeight int
	logger        logging.Logger

	fsWatcher               *fsnotify.Watcher
	debounced               func(f func())
	reloadRequests          chan struct{}
	cancelCtx               context.Context
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup

	mu       sync.Mutex
	onReload []func(*Calibration, error)
}

// NewWatcher starts watching path. The parent directory is watched so that editors which replace
// the file by renaming are noticed.
func NewWatcher(provider *Provider, path string, captureWidth, captureHeight int, logger logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create file watcher")
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot watch %q", abs), fsWatcher.Close())
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		provider:       provider,
		path:           abs,
		captureWidth:   captureWidth,
		captureHeight:  captureHeight,
		logger:         logger,
		fsWatcher:      fsWatcher,
		debounced:      debounce.New(reloadDebounce),
		reloadRequests: make(chan struct{}, 1),
		cancelCtx:      cancelCtx,
		cancel:         cancel,
	}
	w.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(w.watch, w.activeBackgroundWorkers.Done)
	return w, nil
}

// OnReload registers fn to be called after every reload attempt, with the installed calibration or
// the error that kept it from being installed.
func (w *Watcher) OnReload(fn func(*Calibration, error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.cancelCtx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debugw("calibration file changed", "path", w.path, "op", event.Op.String())
			w.debounced(w.requestReload)
		case <-w.reloadRequests:
			if w.cancelCtx.Err() != nil {
				return
			}
			// failures are logged by Reload
			utils.UncheckedError(w.Reload())
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("calibration file watcher error", "path", w.path, "error", err)
		}
	}
}

// requestReload runs on the debounce timer. The reload itself happens in watch so that Close
// waits for it.
func (w *Watcher) requestReload() {
	select {
	case w.reloadRequests <- struct{}{}:
	default:
	}
}

// Reload loads the calibration file and installs it if it is valid.
func (w *Watcher) Reload() error {
	cal, err := Load(w.path, w.captureWidth, w.captureHeight)
	if err == nil {
		_, err = w.provider.Swap(cal)
	}
	if err != nil {
		w.logger.Warnw("keeping previous calibration", "path", w.path, "error", err)
		cal = nil
	} else {
		refW, refH := cal.ReferenceResolution()
		w.logger.Infow("calibration reloaded", "path", w.path, "reference_width", refW, "reference_height", refH)
	}

	w.mu.Lock()
	callbacks := append([]func(*Calibration, error){}, w.onReload...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(cal, err)
	}
	return err
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.activeBackgroundWorkers.Wait()
	return err
}
