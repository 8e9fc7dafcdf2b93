package media

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
)

// Song is a catalog entry.
type Song struct {
	Name          string   `json:"name"`
	ID            SongID   `json:"id,omitempty"`
	Link          string   `json:"link"`
	Time          int64    `json:"time"`
	Categories    []string `json:"categories"`
	Artist        string   `json:"artist,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Language      string   `json:"language,omitempty"`
	LikedBy       []string `json:"liked_by,omitempty"`
	RecommendedBy string   `json:"recommended_by,omitempty"`
	// Enclosure overrides the canonical audio endpoint. Feed sourced songs
	// carry their own media URL.
	Enclosure string `json:"enclosure,omitempty"`
}

// UnmarshalJSON derives the id from the link when the payload has none.
func (s *Song) UnmarshalJSON(data []byte) error {
	type plain Song
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if decoded.ID == "" {
		decoded.ID = SongIDFromLink(decoded.Link)
	}
	*s = Song(decoded)
	return nil
}

// AllCategories returns categories plus every attribution field.
func (s Song) AllCategories() []string {
	out := append([]string(nil), s.Categories...)
	if s.Artist != "" {
		out = append(out, s.Artist)
	}
	out = append(out, s.Genres...)
	if s.Language != "" {
		out = append(out, s.Language)
	}
	out = append(out, s.LikedBy...)
	if s.RecommendedBy != "" {
		out = append(out, s.RecommendedBy)
	}
	return out
}

// Item builds a playable item for the song with the given URIs.
func (s Song) Item(audioURI string, thumbnailURI string) Item {
	genre := ""
	if len(s.Genres) > 0 {
		genre = s.Genres[0]
	}
	return Item{
		URI:           audioURI,
		Title:         s.Name,
		ThumbnailURI:  thumbnailURI,
		Categories:    append([]string(nil), s.Categories...),
		Artist:        s.Artist,
		Genre:         genre,
		Language:      s.Language,
		LikedBy:       append([]string(nil), s.LikedBy...),
		RecommendedBy: s.RecommendedBy,
	}
}

// SongIDFromLink takes the last path segment of a song link.
func SongIDFromLink(link string) SongID {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if parsed, err := url.Parse(link); err == nil && parsed.Path != "" {
		link = parsed.Path
	}
	return SongID(path.Base(strings.TrimRight(link, "/")))
}

// AudioURI is where the song's audio is served from.
func (s Song) AudioURI(b Backend) string {
	if s.Enclosure != "" {
		return s.Enclosure
	}
	return b.SongAudioURI(s.ID)
}

// ThumbnailURI is where the song's artwork is served from, or "" when the
// song has none.
func (s Song) ThumbnailURI(b Backend) string {
	if s.Enclosure != "" {
		return ""
	}
	return b.SongThumbnailURI(s.ID)
}
