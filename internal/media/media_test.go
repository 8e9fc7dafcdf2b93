package media

import (
	"encoding/json"
	"testing"
)

func TestSongIDFromLink(t *testing.T) {
	tests := []struct {
		link string
		want SongID
	}{
		{"https://music.test/playlist/song/audio/abc123", "abc123"},
		{"https://music.test/playlist/song/audio/abc123/", "abc123"},
		{"abc123", "abc123"},
		{"", ""},
	}
	for _, test := range tests {
		if got := SongIDFromLink(test.link); got != test.want {
			t.Fatalf("link %q: expected %q got %q", test.link, test.want, got)
		}
	}
}

func TestSongUnmarshalDerivesID(t *testing.T) {
	payload := `{"name":"Song A","link":"https://music.test/playlist/song/audio/abc123","time":180,"categories":["chill"],"liked_by":["ana"]}`
	var song Song
	if err := json.Unmarshal([]byte(payload), &song); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if song.ID != "abc123" {
		t.Fatalf("expected id abc123, got %q", song.ID)
	}
	if len(song.LikedBy) != 1 || song.LikedBy[0] != "ana" {
		t.Fatalf("expected liked_by")
	}

	var explicit Song
	if err := json.Unmarshal([]byte(`{"name":"x","id":"feed1234567","link":"http://cdn.test/ep.mp3"}`), &explicit); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if explicit.ID != "feed1234567" {
		t.Fatalf("expected explicit id kept")
	}
}

func TestBackendEndpoints(t *testing.T) {
	b := Backend{MusicURL: "https://music.test/", VideoURL: "https://video.test"}
	if got := b.SongAudioURI("abc123"); got != "https://music.test/playlist/song/audio/abc123" {
		t.Fatalf("unexpected audio uri %s", got)
	}
	if got := b.SearchURI("two words&more"); got != "https://video.test/api/v1/playlist/search/two+words%26more" {
		t.Fatalf("unexpected search uri %s", got)
	}
	if got := b.VideoMetadataURI("dQw4w9WgXcQ"); got != "https://video.test/api/v1/playlist/metadata/dQw4w9WgXcQ" {
		t.Fatalf("unexpected metadata uri %s", got)
	}
}

func TestAllCategories(t *testing.T) {
	song := Song{Categories: []string{"a"}, Artist: "b", Genres: []string{"c"}, Language: "d", LikedBy: []string{"e"}, RecommendedBy: "f"}
	got := song.AllCategories()
	if len(got) != 6 || got[5] != "f" {
		t.Fatalf("unexpected categories %v", got)
	}
}
