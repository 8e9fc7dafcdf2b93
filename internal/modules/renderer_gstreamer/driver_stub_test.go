//go:build !gstreamer

package renderergstreamer

import "testing"

func TestStubDriverRefuses(t *testing.T) {
	if _, err := NewDriver(nil, Config{}); err == nil {
		t.Fatalf("expected error without gstreamer tag")
	}
	if (Config{}).withDefaults().Pipeline != DefaultPipeline {
		t.Fatalf("expected default pipeline")
	}
}
