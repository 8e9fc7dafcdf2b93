package spark

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestResponseEncoding(t *testing.T) {
	cases := []struct {
		resp Response
		want string
	}{
		{Ok(Unit{}), `{"Ok":"Unit"}`},
		{Ok(nil), `{"Ok":"Unit"}`},
		{Ok(VersionInfo{Version: "1.2"}), `{"Ok":{"Version":"1.2"}}`},
		{Ok(Title{Title: "Song A"}), `{"Ok":{"MusicResponse":{"Title":{"title":"Song A"}}}}`},
		{Ok(PlayState{Paused: true}), `{"Ok":{"MusicResponse":{"PlayState":{"paused":true}}}}`},
		{Ok(QueueSummary{From: 4, MovedTo: 2, Current: 1}), `{"Ok":{"MusicResponse":{"QueueSummary":{"from":4,"moved_to":2,"current":1}}}}`},
		{Fail(RequestFailed, "Song not in playlist"), `{"Err":{"RequestFailed":"Song not in playlist"}}`},
	}
	for _, tc := range cases {
		data, err := json.Marshal(tc.resp)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != tc.want {
			t.Fatalf("got %s want %s", data, tc.want)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	progress := 50.0
	elapsed := Duration(90*time.Second + 5*time.Millisecond)
	next := "Song B"
	payloads := []Payload{
		Unit{},
		VersionInfo{Version: "dev"},
		Title{Title: "Song A"},
		PlayState{Paused: false},
		Volume{Volume: 93.5},
		CurrentSong{
			Title:        "Song A",
			Chapter:      &Chapter{Number: 2, Name: "Intro"},
			Playing:      true,
			Volume:       60,
			Progress:     &progress,
			PlaybackTime: &elapsed,
			Duration:     Duration(3 * time.Minute),
			Categories:   []string{"rock", "ana"},
			Index:        3,
			Next:         &next,
		},
		QueueSummary{From: 1, MovedTo: 1},
		NowPlaying{Before: []string{"a"}, Current: "b", After: []string{"c", "d"}},
	}
	for _, payload := range payloads {
		data, err := json.Marshal(Ok(payload))
		if err != nil {
			t.Fatalf("marshal %T: %v", payload, err)
		}
		var got Response
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !got.IsOK() || !reflect.DeepEqual(got.Payload, payload) {
			t.Fatalf("round trip %s: got %#v", data, got.Payload)
		}
	}

	for _, kind := range []ErrorKind{DeserializingCommand, ForwardedError, RequestFailed, IoError, RelayError} {
		data, _ := json.Marshal(Fail(kind, "boom"))
		var got Response
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got.Err == nil || got.Err.Kind != kind || got.Err.Detail != "boom" {
			t.Fatalf("round trip %s: got %#v", data, got.Err)
		}
	}
}

func TestDurationEncoding(t *testing.T) {
	data, err := json.Marshal(Duration(2*time.Second + 500*time.Millisecond))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"secs":2,"nanos":500000000}` {
		t.Fatalf("unexpected %s", data)
	}
}

func TestCurrentNullsEncodeAsNull(t *testing.T) {
	data, err := json.Marshal(Ok(CurrentSong{Title: "x", Categories: []string{}}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]map[string]map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	current := raw["Ok"]["MusicResponse"]["Current"]
	for _, key := range []string{"chapter", "progress", "playback_time", "next"} {
		if value, ok := current[key]; !ok || value != nil {
			t.Fatalf("expected %s to be null, got %v", key, value)
		}
	}
}

func TestDecodeBareMusicResponse(t *testing.T) {
	var resp Response
	if err := json.Unmarshal([]byte(`{"Ok":{"Title":{"title":"x"}}}`), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Payload != (Title{Title: "x"}) {
		t.Fatalf("unexpected payload %#v", resp.Payload)
	}
}

func TestDecodeResponseErrors(t *testing.T) {
	inputs := []string{
		`{"Maybe":"Unit"}`,
		`{"Err":{"Nope":"x"}}`,
		`{"Ok":"Nothing"}`,
		`{"Ok":{"MusicResponse":{"Dance":{}}}}`,
	}
	for _, input := range inputs {
		var resp Response
		if err := json.Unmarshal([]byte(input), &resp); err == nil {
			t.Fatalf("%s: expected error", input)
		}
	}
}

func TestErrorNotFound(t *testing.T) {
	tests := []struct {
		err      Error
		expected bool
	}{
		{Error{Kind: RequestFailed, Detail: DetailNotInPlaylist}, true},
		{Error{Kind: RequestFailed, Detail: DetailNothingPlaying}, true},
		{Error{Kind: RequestFailed, Detail: "no songs in category rock"}, false},
		{Error{Kind: IoError, Detail: DetailNothingPlaying}, false},
	}
	for _, test := range tests {
		test := test
		if got := test.err.NotFound(); got != test.expected {
			t.Fatalf("%s(%s): expected %v", test.err.Kind, test.err.Detail, test.expected)
		}
	}
}
