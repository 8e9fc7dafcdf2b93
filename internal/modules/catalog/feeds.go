package catalog

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/mikey-austin/mtogo/internal/media"
	"github.com/mmcdole/gofeed"
)

const feedIDLength = 11

// fetchFeed turns every item of a feed that carries an audio enclosure
// into a song tagged with the feed title.
func (p *Provider) fetchFeed(ctx context.Context, feedURL string) ([]media.Song, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "mtogo/1.0")
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("feed fetch failed: %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	category := strings.TrimSpace(feed.Title)
	if category == "" {
		category = feedURL
	}

	songs := make([]media.Song, 0, len(feed.Items))
	for _, item := range feed.Items {
		song, ok := songFromItem(feedURL, feed, item, category)
		if ok {
			songs = append(songs, song)
		}
	}
	return songs, nil
}

func songFromItem(feedURL string, feed *gofeed.Feed, item *gofeed.Item, category string) (media.Song, bool) {
	if item == nil {
		return media.Song{}, false
	}
	enclosure := pickAudioEnclosure(item)
	if enclosure == "" {
		return media.Song{}, false
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = enclosure
	}
	key := strings.TrimSpace(item.GUID)
	if key == "" {
		key = enclosure
	}
	song := media.Song{
		Name:       title,
		ID:         feedSongID(feedURL + ":" + key),
		Link:       enclosure,
		Categories: []string{category},
		Enclosure:  enclosure,
	}
	if item.PublishedParsed != nil {
		song.Time = item.PublishedParsed.Unix()
	}
	if author := itemAuthor(item, feed); author != "" {
		song.Artist = author
	}
	return song, true
}

func pickAudioEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(enc.Type, "audio/") || strings.HasPrefix(enc.Type, "video/") {
			return enc.URL
		}
	}
	return ""
}

func itemAuthor(item *gofeed.Item, feed *gofeed.Feed) string {
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		return strings.TrimSpace(item.Author.Name)
	}
	if feed.Author != nil {
		return strings.TrimSpace(feed.Author.Name)
	}
	return ""
}

// feedSongID derives a stable id that fits the cache file name pattern.
func feedSongID(key string) media.SongID {
	sum := sha1.Sum([]byte(key))
	return media.SongID(base64.RawURLEncoding.EncodeToString(sum[:])[:feedIDLength])
}
