// Package watch reruns a callback whenever watched files change.
package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Options struct {
	// Paths are files or directories to watch. Directories are not watched
	// recursively.
	Paths []string
	// OnChange is called once per relevant event, from the Run goroutine.
	OnChange func(event fsnotify.Event)
	Log      logrus.FieldLogger
	// ready, when set, is closed once all paths are being watched.
	ready chan struct{}
}

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Run blocks until ctx is done, which is not an error, or the watcher fails.
func Run(ctx context.Context, opts Options) error {
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	add, files := plan(opts.Paths)
	for _, p := range add {
		if err := watcher.Add(p); err != nil {
			return errors.Wrapf(err, "watch %s", p)
		}
		log.WithField("path", p).Debug("watching")
	}
	if opts.ready != nil {
		close(opts.ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(relevantOps) {
				continue
			}
			log.WithField("event", event.String()).Debug("watched file changed")
			// Editors that replace files on save drop the watch on the old inode.
			if (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && files[key(event.Name)] {
				if err := watcher.Add(event.Name); err != nil {
					log.WithError(err).WithField("path", event.Name).Debug("re-add watch")
				}
			}
			if opts.OnChange != nil {
				opts.OnChange(event)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "watch")
		}
	}
}

// plan returns the paths to add to the watcher and the set of watched files
// among them. A file inside a watched directory is left out, its events
// already arrive through the directory.
func plan(paths []string) (add []string, files map[string]bool) {
	dirs := map[string]bool{}
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			dirs[key(p)] = true
		}
	}
	files = map[string]bool{}
	seen := map[string]bool{}
	for _, p := range paths {
		k := key(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		if !dirs[k] {
			if dirs[filepath.Dir(k)] {
				continue
			}
			files[k] = true
		}
		add = append(add, p)
	}
	return add, files
}

func key(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
