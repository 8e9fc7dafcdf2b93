package ports

import (
	"context"

	"github.com/mikey-austin/mtogo/pkg/spark"
)

// Broker publishes commands to daemons and reads their presence.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, deviceID string, env spark.Envelope) (spark.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]spark.Presence, error)
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}
