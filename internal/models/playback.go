package models

import "encoding/json"

// StreamTypeBuffered is the only stream type the projection produces.
const StreamTypeBuffered = "BUFFERED"

// PlaybackDescriptor is the player-ready form of a channel.
type PlaybackDescriptor struct {
	ChannelID   string `json:"channel_id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	StreamType  string `json:"stream_type"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	ImageURL    string `json:"image_url,omitempty"`
	Studio      string `json:"studio,omitempty"`
	// CustomData is an opaque payload for transports without first-class header
	// support: {"headers": {...}, "channelId": "..."}. Nil when the primary link
	// carries no request headers.
	CustomData json.RawMessage `json:"custom_data,omitempty"`
}

// HasCustomData reports whether the descriptor carries a side-channel payload.
func (d *PlaybackDescriptor) HasCustomData() bool { return len(d.CustomData) > 0 }
