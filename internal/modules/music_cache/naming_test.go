package musiccache

import "testing"

func TestFileNameRoundTrip(t *testing.T) {
	name := FileName("AC/DC - Thunder", "abc123", SlotAudio, "ogg")
	if name != "AC_DC - Thunder=abc123=m.ogg" {
		t.Fatalf("unexpected name %q", name)
	}
	id, slot, ok := ParseFileName(name)
	if !ok || id != "abc123" || slot != SlotAudio {
		t.Fatalf("unexpected parse %q %v %v", id, slot, ok)
	}
	id, slot, ok = ParseFileName(FileName("Song A", "dQw4w9WgXcQ", SlotThumbnail, "webp"))
	if !ok || id != "dQw4w9WgXcQ" || slot != SlotThumbnail {
		t.Fatalf("unexpected parse %q %v %v", id, slot, ok)
	}
}

func TestParseFileNameRejects(t *testing.T) {
	for _, name := range []string{
		"Song A=abc123=m.ogg.downloading",
		"Song A.ogg",
		"Song A=abc123=x.ogg",
		"Song A=abc123=m.OGG",
		"Song A=abc123=m.toolongext",
	} {
		if _, _, ok := ParseFileName(name); ok {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestIsPartial(t *testing.T) {
	if !IsPartial("Song=dQw4w9WgXcQ=mart.webp.downloading") {
		t.Fatalf("expected partial")
	}
	if IsPartial("Song=dQw4w9WgXcQ=m.ogg") {
		t.Fatalf("expected complete file")
	}
}

func TestExtension(t *testing.T) {
	cases := []struct {
		contentType string
		slot        Slot
		want        string
	}{
		{"", SlotAudio, "ogg"},
		{"", SlotThumbnail, "webp"},
		{"audio/x-matroska", SlotAudio, "mka"},
		{"audio/webm; codecs=opus", SlotAudio, "webm"},
		{"image/jpeg", SlotThumbnail, "jpeg"},
		{"application/vnd.something+json", SlotAudio, "ogg"},
	}
	for _, tc := range cases {
		if got := extension(tc.contentType, tc.slot); got != tc.want {
			t.Fatalf("%q: got %q want %q", tc.contentType, got, tc.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{"": ModeDisabled, "music_only": ModeMusicOnly, "FULL": ModeFull} {
		got, err := ParseMode(input)
		if err != nil || got != want {
			t.Fatalf("%q: got %v %v", input, got, err)
		}
	}
	if _, err := ParseMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}
