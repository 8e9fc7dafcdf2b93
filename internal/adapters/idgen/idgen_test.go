package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewID(t *testing.T) {
	g := Generator{}
	a, b := g.NewID(), g.NewID()
	if a == b {
		t.Fatalf("expected distinct ids")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("expected uuid, got %q: %v", a, err)
	}
}

func TestNewControllerID(t *testing.T) {
	id := Generator{}.NewControllerID("mtogo")
	if !strings.HasPrefix(id, "mtogo-") || len(id) != len("mtogo-")+8 {
		t.Fatalf("unexpected controller id %q", id)
	}
	if bare := (Generator{}).NewControllerID(""); len(bare) != 8 {
		t.Fatalf("unexpected bare id %q", bare)
	}
}
