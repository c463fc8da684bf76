// ABOUTME: Config file watcher
// ABOUTME: Reloads the config via fsnotify whenever the file is written or replaced
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher delivers each valid config written to a file
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	updates chan Config
	closed  chan struct{}
}

// Watch starts watching path. The parent directory is watched so that
// atomic replace-by-rename is seen.
func Watch(path string) (*Watcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir %s: %w", dir, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	w := &Watcher{
		path:    filepath.Clean(path),
		watcher: fw,
		updates: make(chan Config, 1),
		closed:  make(chan struct{}),
	}

	go w.loop()

	return w, nil
}

// Updates yields reloaded configs. Only the newest pending one is kept.
func (w *Watcher) Updates() <-chan Config {
	return w.updates
}

// Close stops the watcher
func (w *Watcher) Close() error {
	select {
	case <-w.closed:
		return nil
	default:
	}
	close(w.closed)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.closed:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			cfg, err := Load(w.path)
			if err != nil {
				log.Printf("Config: reload failed: %v", err)
				continue
			}
			w.publish(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Config: watcher error: %v", err)
		}
	}
}

func (w *Watcher) publish(cfg Config) {
	// Drop a stale pending update so the newest always fits
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- cfg:
	default:
	}
}
