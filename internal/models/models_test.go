package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func link(url string, def bool) StreamLink {
	return StreamLink{URL: url, IsDefault: def}
}

func channelWithLinks(links ...StreamLink) Channel {
	return Channel{
		ID: "ch1",
		Sources: []Source{{
			Name: "Provider",
			Contents: []Content{{
				Streams: []Stream{{StreamLinks: links}},
			}},
		}},
	}
}

func TestPrimaryStreamLinkIsPositional(t *testing.T) {
	ch := channelWithLinks(link("A", false), link("B", true))

	got, ok := ch.PrimaryStreamLink()
	require.True(t, ok)
	assert.Equal(t, "A", got.URL)
	assert.Equal(t, "A", ch.PrimaryURL())
}

func TestPrimaryStreamLinkOnlyLooksAtFirstBranch(t *testing.T) {
	ch := Channel{Sources: []Source{
		{Contents: []Content{{Streams: []Stream{{}}}}},
		{Contents: []Content{{Streams: []Stream{{StreamLinks: []StreamLink{link("later", false)}}}}}},
	}}

	_, ok := ch.PrimaryStreamLink()
	assert.False(t, ok)
	assert.Equal(t, "", ch.PrimaryURL())
	assert.True(t, ch.HasValidSources(), "a later source still makes the channel valid")
}

func TestHasValidSources(t *testing.T) {
	tests := []struct {
		name string
		ch   Channel
		want bool
	}{
		{"no sources", Channel{}, false},
		{"source without contents", Channel{Sources: []Source{{}}}, false},
		{"content without streams", Channel{Sources: []Source{{Contents: []Content{{}}}}}, false},
		{"stream without links", Channel{Sources: []Source{{Contents: []Content{{Streams: []Stream{{}}}}}}}, false},
		{"full chain", channelWithLinks(link("u", false)), true},
		{"link without url still counts", channelWithLinks(StreamLink{}), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.ch.HasValidSources())
		})
	}
}

func TestSourceLookups(t *testing.T) {
	src := Source{Contents: []Content{{ID: "1", Name: "main"}, {ID: "2", Name: "backup"}, {ID: "3", Name: "backup"}}}

	first, ok := src.FirstContent()
	require.True(t, ok)
	assert.Equal(t, "1", first.ID)

	byName, ok := src.ContentByName("backup")
	require.True(t, ok)
	assert.Equal(t, "2", byName.ID)

	_, ok = src.ContentByName("missing")
	assert.False(t, ok)

	_, ok = (&Source{}).FirstContent()
	assert.False(t, ok)
}

func TestImageAndStudioAccessors(t *testing.T) {
	ch := channelWithLinks(link("u", false))
	_, ok := ch.ImageURL()
	assert.False(t, ok)

	ch.Image = &Image{URL: "http://img/1.png"}
	img, ok := ch.ImageURL()
	require.True(t, ok)
	assert.Equal(t, "http://img/1.png", img)

	studio, ok := ch.StudioName()
	require.True(t, ok)
	assert.Equal(t, "Provider", studio)

	_, ok = Channel{}.StudioName()
	assert.False(t, ok)
}

func TestHeaderMap(t *testing.T) {
	m := HeaderMap([]RequestHeader{
		{Key: "Authorization", Value: "Bearer X"},
		{Key: "", Value: "dropped"},
		{Key: "X-Trace", Value: "1"},
		{Key: "X-Trace", Value: "2"},
	})
	assert.Equal(t, map[string]string{"Authorization": "Bearer X", "X-Trace": "2"}, m)
	assert.Empty(t, HeaderMap(nil))
}
