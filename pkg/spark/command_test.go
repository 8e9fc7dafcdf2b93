package spark

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeBareCommands(t *testing.T) {
	cases := map[string]Command{
		`"Heartbeat"`: Heartbeat{},
		`"Reload"`:    Reload{},
		`"Version"`:   Version{},
	}
	for input, want := range cases {
		got, err := DecodeCommand([]byte(input))
		if err != nil {
			t.Fatalf("%s: %v", input, err)
		}
		if got != want {
			t.Fatalf("%s: got %#v", input, got)
		}
	}
}

func TestDecodeMusicCommands(t *testing.T) {
	amount := uint(3)
	cases := []struct {
		input string
		want  MusicCmdKind
	}{
		{`{"Music":{"command":"Frwd"}}`, Frwd{}},
		{`{"Music":{"command":"Back"}}`, Back{}},
		{`{"Music":{"command":"CyclePause"}}`, CyclePause{}},
		{`{"Music":{"command":"Current"}}`, Current{}},
		{`{"Music":{"command":"ResetQueueCursor"}}`, ResetQueueCursor{}},
		{`{"Music":{"command":{"ChangeVolume":{"amount":-5}}}}`, ChangeVolume{Amount: -5}},
		{`{"Music":{"command":{"Queue":{"query":"Song A","search":false}}}}`, Queue{Query: "Song A"}},
		{`{"Music":{"command":{"QueueCategory":{"category":"rock","shuffle":true}}}}`, QueueCategory{Category: "rock", Shuffle: true}},
		{`{"Music":{"command":{"Now":{}}}}`, Now{}},
		{`{"Music":{"command":{"Now":{"amount":null}}}}`, Now{}},
	}
	for _, tc := range cases {
		cmd, err := DecodeCommand([]byte(tc.input))
		if err != nil {
			t.Fatalf("%s: %v", tc.input, err)
		}
		music, ok := cmd.(Music)
		if !ok {
			t.Fatalf("%s: expected music, got %T", tc.input, cmd)
		}
		if music.Command != tc.want {
			t.Fatalf("%s: got %#v want %#v", tc.input, music.Command, tc.want)
		}
	}

	cmd, err := DecodeCommand([]byte(`{"Music":{"command":{"Now":{"amount":3}},"index":1,"username":"ana"}}`))
	if err != nil {
		t.Fatalf("decode now: %v", err)
	}
	music := cmd.(Music)
	now := music.Command.(Now)
	if now.Amount == nil || *now.Amount != amount {
		t.Fatalf("expected amount 3")
	}
	if music.Index == nil || *music.Index != 1 || music.Username == nil || *music.Username != "ana" {
		t.Fatalf("expected index and username")
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	inputs := []string{
		``,
		`"Dance"`,
		`{"Music":{}}`,
		`{"Music":{"command":"Jump"}}`,
		`{"Music":{"command":{"ChangeVolume":{}}}}`,
		`{"Music":{"command":{"Queue":{"search":true}}}}`,
		`{"Music":{"command":{"Queue":{"query":1}}}}`,
		`{"Music":{"command":{"Frwd":{},"Back":{}}}}`,
		`{"Other":{}}`,
		`[1,2]`,
	}
	for _, input := range inputs {
		_, err := DecodeCommand([]byte(input))
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("%q: expected DecodeError, got %v", input, err)
		}
	}
}

func TestDecodeErrorCarriesInput(t *testing.T) {
	_, err := DecodeCommand([]byte(` "Dance" `))
	if err == nil || !strings.Contains(err.Error(), `"Dance"`) {
		t.Fatalf("expected input in error, got %v", err)
	}
}

func TestEncodeDecodeCommands(t *testing.T) {
	index := 2
	user := "ana"
	amount := uint(7)
	cmds := []Command{
		Heartbeat{},
		Version{},
		Music{Command: Frwd{}},
		Music{Command: ChangeVolume{Amount: 10}, Index: &index},
		Music{Command: Queue{Query: "https://youtu.be/abc", Search: true}, Username: &user},
		Music{Command: Now{Amount: &amount}},
		Music{Command: QueueCategory{Category: "jazz"}},
	}
	for _, cmd := range cmds {
		data, err := EncodeCommand(cmd)
		if err != nil {
			t.Fatalf("encode %#v: %v", cmd, err)
		}
		got, err := DecodeCommand(data)
		if err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if got.CommandName() != cmd.CommandName() {
			t.Fatalf("%s: got %s", data, got.CommandName())
		}
		if music, ok := cmd.(Music); ok {
			if got.(Music).Command.KindName() != music.Command.KindName() {
				t.Fatalf("%s: kind mismatch", data)
			}
		}
	}

	data, _ := EncodeCommand(Music{Command: Current{}})
	if string(data) != `{"Music":{"command":"Current"}}` {
		t.Fatalf("unexpected encoding %s", data)
	}
	data, _ = EncodeCommand(Music{Command: ChangeVolume{Amount: 5}})
	if string(data) != `{"Music":{"command":{"ChangeVolume":{"amount":5}}}}` {
		t.Fatalf("unexpected encoding %s", data)
	}
}
