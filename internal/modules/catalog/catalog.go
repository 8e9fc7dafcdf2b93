// Package catalog fetches and indexes the song catalog served by the music
// backend, optionally merged with songs taken from podcast style feeds.
package catalog

import (
	"sort"

	"github.com/mikey-austin/mtogo/internal/media"
	"github.com/samber/lo"
)

// Catalog is an immutable list of songs with lookup indexes.
type Catalog struct {
	songs  []media.Song
	byID   map[media.SongID]int
	byName map[string]int
}

// Category is a tag shared by one or more songs.
type Category struct {
	Name  string
	Songs []media.Song
}

// New indexes songs. Earlier songs win on duplicate ids or names.
func New(songs []media.Song) *Catalog {
	c := &Catalog{
		songs:  append([]media.Song(nil), songs...),
		byID:   make(map[media.SongID]int, len(songs)),
		byName: make(map[string]int, len(songs)),
	}
	for i, song := range c.songs {
		if _, ok := c.byID[song.ID]; !ok && song.ID != "" {
			c.byID[song.ID] = i
		}
		if _, ok := c.byName[song.Name]; !ok {
			c.byName[song.Name] = i
		}
	}
	return c
}

// Songs returns every song in catalog order.
func (c *Catalog) Songs() []media.Song {
	return append([]media.Song(nil), c.songs...)
}

func (c *Catalog) Len() int {
	return len(c.songs)
}

func (c *Catalog) FindByID(id media.SongID) (media.Song, bool) {
	i, ok := c.byID[id]
	if !ok {
		return media.Song{}, false
	}
	return c.songs[i], true
}

// FindByName matches the song name exactly.
func (c *Catalog) FindByName(name string) (media.Song, bool) {
	i, ok := c.byName[name]
	if !ok {
		return media.Song{}, false
	}
	return c.songs[i], true
}

// Categories groups songs by every category they carry, largest first.
func (c *Catalog) Categories() []Category {
	grouped := map[string][]media.Song{}
	for _, song := range c.songs {
		for _, name := range lo.Uniq(song.AllCategories()) {
			grouped[name] = append(grouped[name], song)
		}
	}
	out := lo.MapToSlice(grouped, func(name string, songs []media.Song) Category {
		return Category{Name: name, Songs: songs}
	})
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Songs) != len(out[j].Songs) {
			return len(out[i].Songs) > len(out[j].Songs)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// InCategory returns the songs tagged with name, in catalog order.
func (c *Catalog) InCategory(name string) []media.Song {
	return lo.Filter(c.songs, func(song media.Song, _ int) bool {
		return lo.Contains(song.AllCategories(), name)
	})
}
