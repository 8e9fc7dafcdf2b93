// Package media holds the value types shared by the resolver, the cache
// store and the queue engine.
package media

import (
	"net/url"
	"strings"
)

// SongID identifies a catalog song.
type SongID string

// VideoID identifies an item on the hosted video backend.
type VideoID string

// Item is a resolved, ready to play resource. Items are never mutated once
// built; an upgraded copy replaces the original in the queue instead.
type Item struct {
	URI           string   `json:"uri"`
	Title         string   `json:"title,omitempty"`
	ThumbnailURI  string   `json:"thumbnailUri,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Artist        string   `json:"artist,omitempty"`
	Genre         string   `json:"genre,omitempty"`
	Language      string   `json:"language,omitempty"`
	LikedBy       []string `json:"likedBy,omitempty"`
	RecommendedBy string   `json:"recommendedBy,omitempty"`
	// CacheWith is set when the item points at remote endpoints of a catalog
	// song that may later be swapped for a locally cached copy.
	CacheWith SongID `json:"cacheWith,omitempty"`
}

// DisplayTitle returns the title or a placeholder.
func (i Item) DisplayTitle() string {
	if strings.TrimSpace(i.Title) == "" {
		return "No title"
	}
	return i.Title
}

// AllCategories returns categories plus every attribution field.
func (i Item) AllCategories() []string {
	out := append([]string(nil), i.Categories...)
	for _, v := range []string{i.Artist, i.Genre, i.Language} {
		if v != "" {
			out = append(out, v)
		}
	}
	out = append(out, i.LikedBy...)
	if i.RecommendedBy != "" {
		out = append(out, i.RecommendedBy)
	}
	return out
}

// Ref is an unresolved pointer to something playable.
type Ref interface {
	isRef()
}

// CatalogSong references a song in the catalog by id.
type CatalogSong struct{ ID SongID }

// RawURL references an arbitrary URL.
type RawURL struct{ URL string }

// Video references a hosted video id.
type Video struct{ ID VideoID }

// SearchQuery is free text to be looked up on the search endpoint.
type SearchQuery struct{ Text string }

func (CatalogSong) isRef() {}
func (RawURL) isRef()      {}
func (Video) isRef()       {}
func (SearchQuery) isRef() {}

// Backend builds the remote endpoints for songs and videos.
type Backend struct {
	MusicURL string
	VideoURL string
	Token    string
}

// PlaylistURI is the catalog listing endpoint.
func (b Backend) PlaylistURI() string {
	return trimBase(b.MusicURL) + "/playlist"
}

// SongAudioURI is the canonical audio endpoint of a catalog song.
func (b Backend) SongAudioURI(id SongID) string {
	return trimBase(b.MusicURL) + "/playlist/song/audio/" + string(id)
}

// SongThumbnailURI is the canonical thumbnail endpoint of a catalog song.
func (b Backend) SongThumbnailURI(id SongID) string {
	return trimBase(b.MusicURL) + "/playlist/song/thumb/" + string(id)
}

func (b Backend) VideoAudioURI(id VideoID) string {
	return trimBase(b.VideoURL) + "/api/v1/playlist/audio/" + string(id)
}

func (b Backend) VideoThumbnailURI(id VideoID) string {
	return trimBase(b.VideoURL) + "/api/v1/playlist/thumb/" + string(id)
}

func (b Backend) VideoMetadataURI(id VideoID) string {
	return trimBase(b.VideoURL) + "/api/v1/playlist/metadata/" + string(id)
}

// SearchURI form-encodes the query into the search endpoint.
func (b Backend) SearchURI(query string) string {
	return trimBase(b.VideoURL) + "/api/v1/playlist/search/" + url.QueryEscape(query)
}

func trimBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
