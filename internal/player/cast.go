package player

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/models"
)

// ErrNoSession is returned by Cast when there is no receiver to send to.
var ErrNoSession = errors.New("no cast session")

// CastMetadata is the display metadata shown by a cast receiver.
type CastMetadata struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	Studio   string   `json:"studio,omitempty"`
	Images   []string `json:"images,omitempty"`
}

// CastMedia describes the stream a cast receiver should play.
type CastMedia struct {
	ContentID   string          `json:"contentId"`
	ContentType string          `json:"contentType"`
	StreamType  string          `json:"streamType"`
	Metadata    CastMetadata    `json:"metadata"`
	CustomData  json.RawMessage `json:"customData,omitempty"`
}

// CastLoadRequest is the load message sent to a cast receiver. The receiver
// applies the headers carried in CustomData itself.
type CastLoadRequest struct {
	Media       CastMedia       `json:"media"`
	Autoplay    bool            `json:"autoplay"`
	CurrentTime float64         `json:"currentTime"`
	CustomData  json.RawMessage `json:"customData,omitempty"`
}

// NewCastLoadRequest builds a load request for desc starting at position.
func NewCastLoadRequest(desc models.PlaybackDescriptor, autoplay bool, position time.Duration) CastLoadRequest {
	media := CastMedia{
		ContentID:   desc.URL,
		ContentType: desc.ContentType,
		StreamType:  desc.StreamType,
		Metadata: CastMetadata{
			Title:    desc.Title,
			Subtitle: desc.Subtitle,
			Studio:   desc.Studio,
		},
		CustomData: desc.CustomData,
	}
	if desc.ImageURL != "" {
		media.Metadata.Images = []string{desc.ImageURL}
	}
	if position < 0 {
		position = 0
	}
	return CastLoadRequest{
		Media:       media,
		Autoplay:    autoplay,
		CurrentTime: position.Seconds(),
		CustomData:  desc.CustomData,
	}
}

// CastSender delivers load requests to a connected receiver.
type CastSender interface {
	SendLoad(ctx context.Context, req CastLoadRequest) error
}

// Cast builds a load request for desc and sends it. A nil sender means no
// session is connected.
func Cast(ctx context.Context, sender CastSender, desc models.PlaybackDescriptor, autoplay bool, position time.Duration) error {
	if sender == nil {
		logger := log.WithComponent("player")
		logger.Warn().Str(log.FieldChannelID, desc.ChannelID).Msg("no cast session, cannot load media")
		return ErrNoSession
	}
	return sender.SendLoad(ctx, NewCastLoadRequest(desc, autoplay, position))
}
