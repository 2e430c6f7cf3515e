package config

import (
	"path/filepath"

	"tether/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// PromptWatcher applies edits of the system prompt file to open sessions
// without a restart.
type PromptWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	done    chan struct{}
}

// WatchPrompt watches the prompt file and invokes onChange with the new
// prompt after each successful reload. The parent directory is watched so
// editor rename-and-replace saves are seen too.
func WatchPrompt(path string, onChange func(prompt string)) (*PromptWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &PromptWatcher{
		watcher: watcher,
		path:    path,
		done:    make(chan struct{}),
	}
	go w.run(onChange)
	return w, nil
}

func (w *PromptWatcher) run(onChange func(string)) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			prompt, err := LoadSystemPrompt(w.path)
			if err != nil {
				logging.Warn("PromptWatcher", "Ignoring prompt reload: %v", err)
				continue
			}
			logging.Info("PromptWatcher", "System prompt reloaded from %s", w.path)
			onChange(prompt)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("PromptWatcher", err, "Watcher error")
		}
	}
}

// Close stops the watcher.
func (w *PromptWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
