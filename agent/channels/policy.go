package channels

import (
	"strings"
	"time"

	"github.com/microsoft/Agents-for-net-sub004/types"
)

// Well-known channel identifiers.
const (
	MSTeams    = "msteams"
	WebChat    = "webchat"
	DirectLine = "directline"
)

// StreamIDMode says who allocates the stream identifier.
type StreamIDMode int

const (
	// ServerAssigned: the channel returns the id in the response to the first send.
	ServerAssigned StreamIDMode = iota
	// ClientAssigned: the agent generates the id before the first send.
	ClientAssigned
)

func (m StreamIDMode) String() string {
	switch m {
	case ServerAssigned:
		return "server_assigned"
	case ClientAssigned:
		return "client_assigned"
	default:
		return "unknown"
	}
}

// Default batching intervals per channel family.
const (
	TeamsInterval      = 1000 * time.Millisecond
	WebChatInterval    = 500 * time.Millisecond
	StreamModeInterval = 100 * time.Millisecond

	// TeamsMinSendInterval is the Teams throttle for streaming updates.
	TeamsMinSendInterval = time.Second
)

// Policy holds the streaming parameters for one inbound activity.
type Policy struct {
	StreamingEnabled bool          `json:"streaming_enabled"`
	Interval         time.Duration `json:"interval"`
	StreamIDMode     StreamIDMode  `json:"stream_id_mode"`
	// MinSendInterval paces sends to the channel; zero means unpaced.
	MinSendInterval time.Duration `json:"min_send_interval,omitempty"`
	// MirrorChannelData copies streaming metadata into channelData.
	MirrorChannelData bool `json:"mirror_channel_data,omitempty"`
}

type kind int

const (
	kindOther kind = iota
	kindTeams
	kindWebChat
)

func classify(channelID string) kind {
	switch strings.ToLower(strings.TrimSpace(channelID)) {
	case MSTeams:
		return kindTeams
	case WebChat, DirectLine:
		return kindWebChat
	default:
		return kindOther
	}
}

// Resolve maps a channel, delivery mode and agentic flag to a streaming policy.
// Rules are checked in order and the first match wins.
func Resolve(channelID string, mode types.DeliveryMode, isAgentic bool) Policy {
	if mode == types.DeliveryModeExpectReplies {
		return Policy{}
	}

	switch classify(channelID) {
	case kindTeams:
		if isAgentic {
			return Policy{}
		}
		return Policy{
			StreamingEnabled:  true,
			Interval:          TeamsInterval,
			StreamIDMode:      ServerAssigned,
			MinSendInterval:   TeamsMinSendInterval,
			MirrorChannelData: true,
		}
	case kindWebChat:
		return Policy{
			StreamingEnabled: true,
			Interval:         WebChatInterval,
			StreamIDMode:     ClientAssigned,
		}
	}

	if mode == types.DeliveryModeStream {
		return Policy{
			StreamingEnabled: true,
			Interval:         StreamModeInterval,
			StreamIDMode:     ClientAssigned,
		}
	}
	return Policy{}
}

// ResolveActivity resolves the policy for an inbound activity.
func ResolveActivity(a *types.Activity) Policy {
	if a == nil {
		return Policy{}
	}
	return Resolve(a.ChannelID, a.EffectiveDeliveryMode(), a.IsAgenticRequest())
}

// IsTeams reports whether channelID is Microsoft Teams.
func IsTeams(channelID string) bool {
	return classify(channelID) == kindTeams
}
