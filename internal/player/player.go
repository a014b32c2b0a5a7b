// Package player hands playback descriptors to downstream players.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/metrics"
	"github.com/voyagen/castvault/internal/models"
)

// ErrHeadersUnsupported may be returned by LoadWithHeaders when a player
// cannot apply headers for this descriptor. Handoff then retries with Load.
var ErrHeadersUnsupported = errors.New("player does not support request headers")

// Player loads a descriptor without request headers.
type Player interface {
	Load(ctx context.Context, desc models.PlaybackDescriptor) error
}

// HeaderPlayer is a Player that can also send request headers with the stream.
type HeaderPlayer interface {
	Player
	LoadWithHeaders(ctx context.Context, desc models.PlaybackDescriptor, headers map[string]string) error
}

// Mode records which load path Handoff took.
type Mode string

const (
	ModeHeaders  Mode = "headers"
	ModePlain    Mode = "plain"
	ModeFallback Mode = "fallback"
)

// Handoff loads desc into p. When the descriptor carries headers and p is a
// HeaderPlayer they are passed along; otherwise the plain Load is used and the
// headers are dropped.
func Handoff(ctx context.Context, p Player, desc models.PlaybackDescriptor) (Mode, error) {
	logger := log.WithContext(ctx, log.WithComponent("player")).With().
		Str(log.FieldChannelID, desc.ChannelID).
		Logger()

	headers := ExtractHeaders(desc.CustomData)
	if len(headers) == 0 {
		metrics.PlayerHandoffTotal.WithLabelValues(string(ModePlain)).Inc()
		return ModePlain, p.Load(ctx, desc)
	}

	if hp, ok := p.(HeaderPlayer); ok {
		err := hp.LoadWithHeaders(ctx, desc, headers)
		if !errors.Is(err, ErrHeadersUnsupported) {
			metrics.PlayerHandoffTotal.WithLabelValues(string(ModeHeaders)).Inc()
			return ModeHeaders, err
		}
		logger.Debug().Err(err).Msg("player rejected headers, loading without them")
	} else {
		logger.Debug().Int("headers", len(headers)).Msg("player has no header support, loading without them")
	}

	metrics.PlayerHandoffTotal.WithLabelValues(string(ModeFallback)).Inc()
	if err := p.Load(ctx, desc); err != nil {
		return ModeFallback, fmt.Errorf("Load: %w", err)
	}
	return ModeFallback, nil
}

// ExtractHeaders reads the "headers" object from a descriptor payload. Absent,
// malformed, or non-string entries yield an empty map.
func ExtractHeaders(customData json.RawMessage) map[string]string {
	headers := map[string]string{}
	if len(customData) == 0 {
		return headers
	}
	var payload struct {
		Headers map[string]json.RawMessage `json:"headers"`
	}
	if err := json.Unmarshal(customData, &payload); err != nil {
		return headers
	}
	for k, raw := range payload.Headers {
		var v string
		if k == "" || json.Unmarshal(raw, &v) != nil {
			continue
		}
		headers[k] = v
	}
	return headers
}
