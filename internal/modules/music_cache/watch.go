package musiccache

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch invalidates the index whenever something outside the store adds or
// removes a cache file. Files the store publishes itself are skipped. It
// follows directory changes made with Configure and returns when ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	s.trackPublished(true)
	defer s.trackPublished(false)

	watched := ""
	follow := func() {
		files := s.currentFiles()
		root := ""
		if files != nil && s.Enabled() {
			root = files.Root()
		}
		if root == watched {
			return
		}
		if watched != "" {
			_ = watcher.Remove(watched)
		}
		watched = ""
		if root == "" {
			return
		}
		if err := watcher.Add(root); err != nil {
			s.log.Warn("watch cache dir failed", zap.String("dir", root), zap.Error(err))
			return
		}
		watched = root
		s.log.Debug("watching cache dir", zap.String("dir", root))
	}
	follow()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.rewatch:
			follow()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.HasSuffix(event.Name, downloadingSuffix) {
				continue
			}
			name := filepath.Base(event.Name)
			if _, _, ok := ParseFileName(name); !ok {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				s.invalidate()
			case event.Has(fsnotify.Create):
				if !s.ownEvent(name) {
					s.invalidate()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("cache watcher error", zap.Error(err))
		}
	}
}
