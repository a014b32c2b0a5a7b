// Package playback projects catalog channels into player-ready descriptors.
package playback

import (
	"encoding/json"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/voyagen/castvault/internal/models"
)

// Content types handed to players.
const (
	ContentTypeHLS  = "application/x-mpegURL"
	ContentTypeDASH = "application/dash+xml"
	ContentTypeMP4  = "video/mp4"
)

// ContentTypeFor maps a stream link type to a MIME content type. Unknown and
// empty types are treated as HLS.
func ContentTypeFor(linkType string) string {
	switch linkType {
	case models.LinkTypeDASH:
		return ContentTypeDASH
	case models.LinkTypeMP4:
		return ContentTypeMP4
	default:
		return ContentTypeHLS
	}
}

// customData is the side-channel payload carried to players that cannot take
// headers directly.
type customData struct {
	Headers   map[string]string `json:"headers"`
	ChannelID string            `json:"channelId"`
}

// Project builds the descriptor for ch from its primary stream link. It
// returns None when the channel has no primary link or the link has no url.
func Project(ch models.Channel) mo.Option[models.PlaybackDescriptor] {
	link, ok := ch.PrimaryStreamLink()
	if !ok || link.URL == "" {
		return mo.None[models.PlaybackDescriptor]()
	}

	desc := models.PlaybackDescriptor{
		ChannelID:   ch.ID,
		URL:         link.URL,
		ContentType: ContentTypeFor(link.Type),
		StreamType:  models.StreamTypeBuffered,
		Title:       ch.DisplayTitle(),
		Subtitle:    ch.DisplayDescription(),
	}
	if url, ok := ch.ImageURL(); ok {
		desc.ImageURL = url
	}
	if studio, ok := ch.StudioName(); ok {
		desc.Studio = studio
	}
	if len(link.RequestHeaders) > 0 {
		// A map of strings always marshals.
		desc.CustomData, _ = json.Marshal(customData{
			Headers:   models.HeaderMap(link.RequestHeaders),
			ChannelID: ch.ID,
		})
	}
	return mo.Some(desc)
}

// ProjectAll projects every channel and keeps the ones that are playable, in order.
func ProjectAll(channels []models.Channel) []models.PlaybackDescriptor {
	return lo.FilterMap(channels, func(ch models.Channel, _ int) (models.PlaybackDescriptor, bool) {
		return Project(ch).Get()
	})
}
