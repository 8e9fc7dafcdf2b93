package musiccache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mikey-austin/mtogo/internal/media"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type download struct {
	slot  Slot
	temp  string
	final string
	bytes int64
}

// store downloads slots concurrently and publishes them only if every one
// of them succeeded.
func (s *Store) store(ctx context.Context, song media.Song, slots []Slot) (Entry, error) {
	if err := s.active.Acquire(ctx, 1); err != nil {
		return Entry{}, err
	}
	defer s.active.Release(1)
	files := s.currentFiles()
	if files == nil {
		return Entry{}, ErrDisabled
	}

	results := make([]*download, len(slots))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, slot := range slots {
		i, slot := i, slot
		group.Go(func() error {
			if err := s.downloads.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer s.downloads.Release(1)
			dl, err := s.fetchSlot(groupCtx, files, song, slot)
			results[i] = dl
			return err
		})
	}
	err := group.Wait()
	if err != nil {
		s.discard(files, results)
		return Entry{}, err
	}

	if err := s.io.Acquire(ctx, 1); err != nil {
		s.discard(files, results)
		return Entry{}, err
	}
	defer s.io.Release(1)

	entry := Entry{}
	for i, dl := range results {
		s.markPublished(dl.final)
		if err := files.Rename(dl.temp, dl.final); err != nil {
			s.unmarkPublished(dl.final)
			s.discard(files, results[i:])
			return Entry{}, fmt.Errorf("publish %s: %w", dl.slot, err)
		}
		entry.set(dl.slot, files.URI(dl.final))
		s.log.Info("cached",
			zap.String("song", song.Name),
			zap.String("file", dl.final),
			zap.String("size", humanize.Bytes(uint64(dl.bytes))),
		)
	}
	s.remember(song.ID, entry)
	return entry, nil
}

// fetchSlot retries the download of one slot into its temporary file.
func (s *Store) fetchSlot(ctx context.Context, files FileStore, song media.Song, slot Slot) (*download, error) {
	source := song.AudioURI(s.backend)
	if slot == SlotThumbnail {
		source = song.ThumbnailURI(s.backend)
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dl, err := s.fetchOnce(ctx, files, song, slot, source)
		if err == nil {
			return dl, nil
		}
		lastErr = err
		s.log.Debug("download attempt failed",
			zap.String("song", song.Name),
			zap.Stringer("slot", slot),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("%s after %d attempts: %w", slot, s.attempts, lastErr)
}

func (s *Store) fetchOnce(ctx context.Context, files FileStore, song media.Song, slot Slot, source string) (*download, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(s.backend.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: request failed: %s", source, resp.Status)
	}

	final := FileName(sanitizeName(song.Name), song.ID, slot, extension(resp.Header.Get("Content-Type"), slot))
	temp := final + downloadingSuffix
	out, err := files.Create(temp)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", temp, err)
	}
	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = files.Remove(temp)
		return nil, fmt.Errorf("write %s: %w", temp, err)
	}
	return &download{slot: slot, temp: temp, final: final, bytes: written}, nil
}

func (s *Store) discard(files FileStore, downloads []*download) {
	for _, dl := range downloads {
		if dl == nil {
			continue
		}
		if err := files.Remove(dl.temp); err != nil {
			s.log.Warn("remove partial download failed", zap.String("file", dl.temp), zap.Error(err))
		}
	}
}
