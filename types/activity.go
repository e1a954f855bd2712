package types

import "strings"

// ActivityType identifies the kind of an Activity.
type ActivityType string

const (
	ActivityTypeMessage ActivityType = "message"
	ActivityTypeTyping  ActivityType = "typing"
	ActivityTypeEvent   ActivityType = "event"
	ActivityTypeInvoke  ActivityType = "invoke"
)

// DeliveryMode is the delivery hint carried by an inbound activity.
type DeliveryMode string

const (
	DeliveryModeNormal        DeliveryMode = "normal"
	DeliveryModeExpectReplies DeliveryMode = "expectReplies"
	DeliveryModeStream        DeliveryMode = "stream"
)

// Recipient roles that mark an agentic request.
const (
	RoleAgenticIdentity = "agenticAppInstance"
	RoleAgenticUser     = "agenticUser"
)

// ChannelAccount identifies a participant of a conversation.
type ChannelAccount struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// ConversationAccount identifies a conversation.
type ConversationAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	IsGroup  bool   `json:"isGroup,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

// Activity is the unit exchanged between an agent and a channel.
type Activity struct {
	Type         ActivityType         `json:"type"`
	ID           string               `json:"id,omitempty"`
	ServiceURL   string               `json:"serviceUrl,omitempty"`
	ChannelID    string               `json:"channelId,omitempty"`
	From         *ChannelAccount      `json:"from,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	Recipient    *ChannelAccount      `json:"recipient,omitempty"`
	Text         string               `json:"text,omitempty"`
	TextFormat   string               `json:"textFormat,omitempty"`
	ReplyToID    string               `json:"replyToId,omitempty"`
	DeliveryMode DeliveryMode         `json:"deliveryMode,omitempty"`
	Entities     []Entity             `json:"entities,omitempty"`
	ChannelData  map[string]any       `json:"channelData,omitempty"`
}

// ResourceResponse is returned by a channel after accepting an activity.
type ResourceResponse struct {
	ID string `json:"id"`
}

// ExpectedReplies is the response body for the expectReplies delivery mode.
type ExpectedReplies struct {
	Activities []*Activity `json:"activities"`
}

// IsAgenticRequest reports whether the activity was addressed to an agentic identity.
func (a *Activity) IsAgenticRequest() bool {
	if a == nil || a.Recipient == nil {
		return false
	}
	return a.Recipient.Role == RoleAgenticIdentity || a.Recipient.Role == RoleAgenticUser
}

// EffectiveDeliveryMode returns the delivery mode, treating an empty value as normal.
func (a *Activity) EffectiveDeliveryMode() DeliveryMode {
	if a == nil || a.DeliveryMode == "" {
		return DeliveryModeNormal
	}
	return a.DeliveryMode
}

// StreamInfo returns the first streaminfo entity, or nil.
func (a *Activity) StreamInfo() *Entity {
	if a == nil {
		return nil
	}
	for i := range a.Entities {
		if strings.EqualFold(a.Entities[i].Type, EntityTypeStreamInfo) {
			return &a.Entities[i]
		}
	}
	return nil
}

// Clone returns a copy of the activity that can be mutated without touching the original.
// Entities, channel data and account pointers are copied one level deep.
func (a *Activity) Clone() *Activity {
	if a == nil {
		return nil
	}
	c := *a
	if a.From != nil {
		from := *a.From
		c.From = &from
	}
	if a.Recipient != nil {
		rcpt := *a.Recipient
		c.Recipient = &rcpt
	}
	if a.Conversation != nil {
		conv := *a.Conversation
		c.Conversation = &conv
	}
	if a.Entities != nil {
		c.Entities = make([]Entity, len(a.Entities))
		for i := range a.Entities {
			c.Entities[i] = a.Entities[i].clone()
		}
	}
	if a.ChannelData != nil {
		c.ChannelData = make(map[string]any, len(a.ChannelData))
		for k, v := range a.ChannelData {
			c.ChannelData[k] = v
		}
	}
	return &c
}
