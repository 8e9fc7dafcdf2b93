package spark

import "testing"

func FuzzDecodeCommand(f *testing.F) {
	f.Add(`"Heartbeat"`)
	f.Add(`{"Music":{"command":"Frwd"}}`)
	f.Add(`{"Music":{"command":{"Queue":{"query":"x","search":true}}}}`)
	f.Add(`{"Music":{"command":{"Now":null}}}`)
	f.Add(``)

	f.Fuzz(func(t *testing.T, input string) {
		cmd, err := DecodeCommand([]byte(input))
		if err != nil {
			return
		}
		data, err := EncodeCommand(cmd)
		if err != nil {
			t.Fatalf("re-encode %#v: %v", cmd, err)
		}
		if _, err := DecodeCommand(data); err != nil {
			t.Fatalf("decode re-encoded %s: %v", data, err)
		}
	})
}
