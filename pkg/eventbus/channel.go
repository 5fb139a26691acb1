package eventbus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewGoChannel builds an in-process bus. Suits a single-process
// deployment; swap the watermill publisher/subscriber pair for a
// broker-backed one to fan events out across processes.
func NewGoChannel() EventBus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})

	return NewWatermillEventBus(pubsub, pubsub)
}
