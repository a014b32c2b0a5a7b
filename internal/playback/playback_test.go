package playback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/castvault/internal/models"
)

func channel(id string, links ...models.StreamLink) models.Channel {
	return models.Channel{
		ID:       id,
		Name:     "Name " + id,
		Subtitle: "Sub " + id,
		Sources: []models.Source{{
			Name: "Studio",
			Contents: []models.Content{{
				Streams: []models.Stream{{StreamLinks: links}},
			}},
		}},
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		linkType string
		want     string
	}{
		{"hls", "application/x-mpegURL"},
		{"dash", "application/dash+xml"},
		{"mp4", "video/mp4"},
		{"", "application/x-mpegURL"},
		{"rtmp", "application/x-mpegURL"},
		{"HLS", "application/x-mpegURL"},
		{"DASH", "application/x-mpegURL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContentTypeFor(tt.linkType), tt.linkType)
	}
}

func TestProject_Descriptor(t *testing.T) {
	ch := channel("c1", models.StreamLink{URL: "https://cdn/a.mpd", Type: "dash"})
	ch.Image = &models.Image{URL: "https://img/c1.png"}

	desc, ok := Project(ch).Get()
	require.True(t, ok)
	assert.Equal(t, models.PlaybackDescriptor{
		ChannelID:   "c1",
		URL:         "https://cdn/a.mpd",
		ContentType: ContentTypeDASH,
		StreamType:  models.StreamTypeBuffered,
		Title:       "Name c1",
		Subtitle:    "Sub c1",
		ImageURL:    "https://img/c1.png",
		Studio:      "Studio",
	}, desc)
	assert.False(t, desc.HasCustomData())
}

func TestProject_UsesPositionalFirstLink(t *testing.T) {
	ch := channel("c1",
		models.StreamLink{URL: "https://cdn/a.m3u8", Type: "hls"},
		models.StreamLink{URL: "https://cdn/b.mp4", Type: "mp4", IsDefault: true},
	)
	desc, ok := Project(ch).Get()
	require.True(t, ok)
	assert.Equal(t, "https://cdn/a.m3u8", desc.URL)
	assert.Equal(t, ContentTypeHLS, desc.ContentType)
}

func TestProject_None(t *testing.T) {
	assert.True(t, Project(models.Channel{ID: "x"}).IsAbsent())
	assert.True(t, Project(channel("y", models.StreamLink{URL: ""})).IsAbsent())
}

func TestProject_CustomDataHeaders(t *testing.T) {
	ch := channel("c9", models.StreamLink{
		URL: "https://cdn/a.m3u8",
		RequestHeaders: []models.RequestHeader{
			{Key: "Referer", Value: "https://example.com"},
			{Key: "User-Agent", Value: "Mozilla/5.0"},
		},
	})
	desc, ok := Project(ch).Get()
	require.True(t, ok)
	require.True(t, desc.HasCustomData())
	assert.JSONEq(t, `{"headers":{"Referer":"https://example.com","User-Agent":"Mozilla/5.0"},"channelId":"c9"}`,
		string(desc.CustomData))

	var payload struct {
		Headers   map[string]string `json:"headers"`
		ChannelID string            `json:"channelId"`
	}
	require.NoError(t, json.Unmarshal(desc.CustomData, &payload))
	assert.Len(t, payload.Headers, 2)
}

func TestProject_EmptyHeaderKeySkipped(t *testing.T) {
	ch := channel("c2", models.StreamLink{
		URL:            "https://cdn/a.m3u8",
		RequestHeaders: []models.RequestHeader{{Key: "", Value: "orphan"}},
	})
	desc, ok := Project(ch).Get()
	require.True(t, ok)
	assert.JSONEq(t, `{"headers":{},"channelId":"c2"}`, string(desc.CustomData))
}

func TestProjectAll_KeepsOrderAndDropsUnplayable(t *testing.T) {
	channels := []models.Channel{
		channel("b", models.StreamLink{URL: "https://cdn/b.m3u8"}),
		{ID: "invalid"},
		channel("a", models.StreamLink{URL: "https://cdn/a.m3u8"}),
	}
	descs := ProjectAll(channels)
	require.Len(t, descs, 2)
	assert.Equal(t, "b", descs[0].ChannelID)
	assert.Equal(t, "a", descs[1].ChannelID)
	assert.Empty(t, ProjectAll(nil))
}
