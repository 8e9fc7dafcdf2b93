package spark

import "testing"

func TestTopics(t *testing.T) {
	if got := TopicCommands(BaseTopic, "phone"); got != "mtogo/v1/device/phone/cmd" {
		t.Fatalf("unexpected %s", got)
	}
	if got := TopicPresence(BaseTopic, "phone"); got != "mtogo/v1/device/phone/presence" {
		t.Fatalf("unexpected %s", got)
	}
	if got := TopicReply(BaseTopic, "ctl"); got != "mtogo/v1/reply/ctl" {
		t.Fatalf("unexpected %s", got)
	}
}

func TestValidateEnvelope(t *testing.T) {
	env, err := NewEnvelope(Music{Command: Frwd{}})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	if err := ValidateEnvelope(env); err == nil {
		t.Fatalf("expected missing id error")
	}
	env.ID = "1"
	env.TS = 10
	env.From = "ctl"
	if err := ValidateEnvelope(env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	reply, err := NewReply("1", 10, Ok(Title{Title: "a"}))
	if err != nil {
		t.Fatalf("new reply: %v", err)
	}
	resp, err := reply.DecodeResponse()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Payload != (Title{Title: "a"}) {
		t.Fatalf("unexpected payload %#v", resp.Payload)
	}
}
