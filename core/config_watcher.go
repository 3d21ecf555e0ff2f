package core

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher hot-reloads the policy section of the configuration file
// while the engine runs. Check definitions and storage settings still
// require a restart; alert policy (thresholds, windows, severity map)
// applies live.
type ConfigWatcher struct {
	path     string
	load     func(path string) (Config, error)
	apply    func(Config)
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
}

// NewConfigWatcher creates a watcher for the given config file
func NewConfigWatcher(path string, load func(string) (Config, error), apply func(Config)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace files on save, which would
	// drop a watch placed on the file itself
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &ConfigWatcher{
		path:     path,
		load:     load,
		apply:    apply,
		watcher:  watcher,
		stopChan: make(chan struct{}),
	}, nil
}

// Start launches the watch loop
func (cw *ConfigWatcher) Start() {
	go cw.loop()
	log.Printf("Config watcher started: %s", cw.path)
}

// Stop terminates the watch loop
func (cw *ConfigWatcher) Stop() {
	close(cw.stopChan)
	cw.watcher.Close()
}

func (cw *ConfigWatcher) loop() {
	// Debounce: editors fire several events per save
	var pending <-chan time.Time

	for {
		select {
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(cw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(500 * time.Millisecond)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: config watcher error: %v", err)
		case <-pending:
			pending = nil
			cw.reload()
		}
	}
}

// reload re-parses the file and applies it. A broken config is logged
// and ignored; the engine keeps running on the previous policy.
func (cw *ConfigWatcher) reload() {
	config, err := cw.load(cw.path)
	if err != nil {
		log.Printf("Warning: config reload failed, keeping previous policy: %v", err)
		return
	}
	if err := ValidateConfig(config); err != nil {
		log.Printf("Warning: reloaded config invalid, keeping previous policy: %v", err)
		return
	}
	cw.apply(config)
}
