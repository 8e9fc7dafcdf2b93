package mediaresolver

import (
	"net/url"
	"strings"

	"github.com/mikey-austin/mtogo/internal/media"
)

const (
	shortHost  = "youtu.be"
	longHost   = "youtube.com"
	shortsPath = "shorts"
	watchPath  = "watch"
)

// ParseVideoURL extracts a hosted video id from a share link, a watch link
// or a shorts link.
func ParseVideoURL(raw string) (media.VideoID, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	var id string
	switch {
	case strings.Contains(host, shortHost):
		id = strings.Trim(u.Path, "/")
	case strings.Contains(host, longHost):
		segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
		if len(segments) == 0 {
			return "", false
		}
		switch segments[0] {
		case shortsPath:
			id = segments[len(segments)-1]
			if len(segments) == 1 {
				id = ""
			}
		case watchPath:
			id = u.Query().Get("v")
		}
	}
	if id == "" {
		return "", false
	}
	return media.VideoID(id), true
}
