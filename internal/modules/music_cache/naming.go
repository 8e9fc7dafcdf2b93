package musiccache

import (
	"mime"
	"regexp"
	"strings"

	"github.com/mikey-austin/mtogo/internal/media"
)

const downloadingSuffix = ".downloading"

// Slot is one of the files cached per song.
type Slot int

const (
	SlotAudio Slot = iota
	SlotThumbnail
)

func (s Slot) String() string {
	if s == SlotThumbnail {
		return "thumbnail"
	}
	return "audio"
}

func (s Slot) marker() string {
	if s == SlotThumbnail {
		return "mart"
	}
	return "m"
}

func (s Slot) defaultContentType() string {
	if s == SlotThumbnail {
		return "image/webp"
	}
	return "audio/ogg"
}

var (
	cachedFileName      = regexp.MustCompile(`=([A-Za-z0-9_-]+)=m(|art)\.[a-z0-9]{3,5}$`)
	downloadingFileName = regexp.MustCompile(`=[A-Za-z0-9_-]+=m(|art)\.[a-z0-9]{3,5}\.downloading$`)
	validExt            = regexp.MustCompile(`^[a-z0-9]{3,5}$`)
	pathSeparators      = strings.NewReplacer("/", "_", `\`, "_")
)

// FileName builds the final cache file name of a slot.
func FileName(displayName string, id media.SongID, slot Slot, ext string) string {
	return pathSeparators.Replace(displayName) + "=" + string(id) + "=" + slot.marker() + "." + ext
}

// ParseFileName extracts the song id and slot from a cache file name.
func ParseFileName(name string) (media.SongID, Slot, bool) {
	match := cachedFileName.FindStringSubmatch(name)
	if match == nil {
		return "", SlotAudio, false
	}
	slot := SlotAudio
	if match[2] == "art" {
		slot = SlotThumbnail
	}
	return media.SongID(match[1]), slot, true
}

// IsPartial reports whether name is a leftover in-flight download.
func IsPartial(name string) bool {
	return downloadingFileName.MatchString(name)
}

// extension maps a Content-Type onto a file extension, falling back to the
// slot's default type.
func extension(contentType string, slot Slot) string {
	fallback := extFromType(slot.defaultContentType())
	if strings.TrimSpace(contentType) == "" {
		return fallback
	}
	ext := extFromType(contentType)
	if !validExt.MatchString(ext) {
		return fallback
	}
	return ext
}

func extFromType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	_, subtype, ok := strings.Cut(strings.ToLower(mediaType), "/")
	if !ok {
		return ""
	}
	if subtype == "x-matroska" {
		return "mka"
	}
	return subtype
}
