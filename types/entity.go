package types

// StreamType marks the role of an activity inside a stream.
type StreamType string

const (
	StreamTypeInformative StreamType = "informative"
	StreamTypeStreaming   StreamType = "streaming"
	StreamTypeFinal       StreamType = "final"
)

// Entity type identifiers.
const (
	EntityTypeStreamInfo = "streaminfo"
	EntityTypeAIMessage  = "https://schema.org/Message"
)

// AIGeneratedContent is the additionalType that renders the "AI generated" label.
const AIGeneratedContent = "AIGeneratedContent"

// Entity is a typed annotation attached to an activity. Only the fields
// belonging to the entity's Type are populated.
type Entity struct {
	Type string `json:"type"`

	// streaminfo
	StreamID       string     `json:"streamId,omitempty"`
	StreamType     StreamType `json:"streamType,omitempty"`
	StreamSequence int        `json:"streamSequence,omitempty"`

	// schema.org Message (AI entity)
	SchemaType     string           `json:"@type,omitempty"`
	SchemaContext  string           `json:"@context,omitempty"`
	SchemaID       string           `json:"@id,omitempty"`
	AdditionalType []string         `json:"additionalType,omitempty"`
	Citation       []ClientCitation `json:"citation,omitempty"`
}

// ClientCitation is the wire form of a citation inside the AI entity.
type ClientCitation struct {
	SchemaType string                   `json:"@type"`
	Position   int                      `json:"position"`
	Appearance ClientCitationAppearance `json:"appearance"`
}

// ClientCitationAppearance describes how a citation is rendered.
type ClientCitationAppearance struct {
	SchemaType string `json:"@type"`
	Name       string `json:"name"`
	Abstract   string `json:"abstract"`
	URL        string `json:"url,omitempty"`
}

// NewStreamInfo builds a streaminfo entity.
func NewStreamInfo(streamType StreamType, streamID string, sequence int) Entity {
	return Entity{
		Type:           EntityTypeStreamInfo,
		StreamID:       streamID,
		StreamType:     streamType,
		StreamSequence: sequence,
	}
}

// NewAIEntity builds the schema.org Message entity carrying citations.
func NewAIEntity(citations []ClientCitation, generatedByAI bool) Entity {
	e := Entity{
		Type:          EntityTypeAIMessage,
		SchemaType:    "Message",
		SchemaContext: "https://schema.org",
		Citation:      citations,
	}
	if generatedByAI {
		e.AdditionalType = []string{AIGeneratedContent}
	}
	return e
}

func (e Entity) clone() Entity {
	if e.AdditionalType != nil {
		e.AdditionalType = append([]string(nil), e.AdditionalType...)
	}
	if e.Citation != nil {
		e.Citation = append([]ClientCitation(nil), e.Citation...)
	}
	return e
}
