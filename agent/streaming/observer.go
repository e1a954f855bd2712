package streaming

import (
	"time"

	"github.com/microsoft/Agents-for-net-sub004/types"
)

// Observer receives stream lifecycle events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	StreamStarted(channelID string)
	ActivitySent(channelID string, streamType types.StreamType, latency time.Duration)
	SendFailed(channelID string, streamType types.StreamType, err error)
	StreamEnded(channelID string, result Result, duration time.Duration)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) StreamStarted(string)                                 {}
func (NopObserver) ActivitySent(string, types.StreamType, time.Duration) {}
func (NopObserver) SendFailed(string, types.StreamType, error)           {}
func (NopObserver) StreamEnded(string, Result, time.Duration)            {}
