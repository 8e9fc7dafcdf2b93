package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// Generator creates request and controller identifiers.
type Generator struct{}

// NewID returns a random UUID string.
func (Generator) NewID() string {
	return uuid.NewString()
}

// NewControllerID returns prefix followed by the first block of a UUID,
// short enough to read in a reply topic.
func (g Generator) NewControllerID(prefix string) string {
	id, _, _ := strings.Cut(g.NewID(), "-")
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
