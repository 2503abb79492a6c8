package model

// Channel is a fixed topical category a post belongs to.
type Channel string

const (
	ChannelSightings     Channel = "Sightings"
	ChannelTheories      Channel = "Theories"
	ChannelEvidence      Channel = "Evidence"
	ChannelExperiences   Channel = "Experiences"
	ChannelAncientWisdom Channel = "Ancient Wisdom"
	ChannelTechnology    Channel = "Technology"
	ChannelGeneral       Channel = "General"

	// ChannelAll is a listing filter only; posts never carry it.
	ChannelAll Channel = "All"
)

var channels = []Channel{
	ChannelSightings,
	ChannelTheories,
	ChannelEvidence,
	ChannelExperiences,
	ChannelAncientWisdom,
	ChannelTechnology,
	ChannelGeneral,
}

// Channels returns the postable channels in display order.
func Channels() []Channel {
	out := make([]Channel, len(channels))
	copy(out, channels)
	return out
}

// Valid reports whether c is a postable channel.
func (c Channel) Valid() bool {
	for _, ch := range channels {
		if ch == c {
			return true
		}
	}
	return false
}

// ParseFilter turns a listing query value into a channel filter.
// Empty and "All" mean no filter (nil).
func ParseFilter(raw string) (*Channel, error) {
	if raw == "" || Channel(raw) == ChannelAll {
		return nil, nil
	}
	c := Channel(raw)
	if !c.Valid() {
		return nil, ErrInvalidChannel
	}
	return &c, nil
}

// ChannelListResponse is the body of GET /channels.
type ChannelListResponse struct {
	Channels []Channel `json:"channels"`
	Filters  []Channel `json:"filters"`
}

// NewChannelListResponse lists postable channels and the accepted filters.
func NewChannelListResponse() ChannelListResponse {
	return ChannelListResponse{
		Channels: Channels(),
		Filters:  append([]Channel{ChannelAll}, Channels()...),
	}
}
