package models

import "fmt"

// Channel is a playable catalog entry with its display metadata and sources.
type Channel struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Subtitle string      `json:"subtitle"`
	Labels   []Label     `json:"labels"`
	Image    *Image      `json:"image,omitempty"`
	Type     ChannelType `json:"type"`
	Display  DisplayMode `json:"display"`
	Sources  []Source    `json:"sources"`
}

// PrimaryStreamLink returns the first stream link of the first stream of the
// first content of the first source. The default flag is not consulted.
func (c Channel) PrimaryStreamLink() (StreamLink, bool) {
	if len(c.Sources) == 0 {
		return StreamLink{}, false
	}
	content, ok := c.Sources[0].FirstContent()
	if !ok {
		return StreamLink{}, false
	}
	stream, ok := content.FirstStream()
	if !ok {
		return StreamLink{}, false
	}
	return stream.FirstStreamLink()
}

// PrimaryURL returns the url of the primary stream link, or "" when there is none.
func (c Channel) PrimaryURL() string {
	link, ok := c.PrimaryStreamLink()
	if !ok {
		return ""
	}
	return link.URL
}

// ImageURL returns the thumbnail url; the bool is false when the channel has no image.
func (c Channel) ImageURL() (string, bool) {
	if c.Image == nil {
		return "", false
	}
	return c.Image.URL, true
}

// DisplayTitle is the title shown for the channel.
func (c Channel) DisplayTitle() string { return c.Name }

// DisplayDescription is the secondary line shown for the channel.
func (c Channel) DisplayDescription() string { return c.Subtitle }

// HasValidSources reports whether at least one source -> content -> stream chain
// ends in a non-empty list of stream links.
func (c Channel) HasValidSources() bool {
	for _, src := range c.Sources {
		for _, content := range src.Contents {
			for _, stream := range content.Streams {
				if len(stream.StreamLinks) > 0 {
					return true
				}
			}
		}
	}
	return false
}

// StudioName returns the name of the first source, if any.
func (c Channel) StudioName() (string, bool) {
	if len(c.Sources) == 0 {
		return "", false
	}
	return c.Sources[0].Name, true
}

func (c Channel) String() string {
	image, _ := c.ImageURL()
	return fmt.Sprintf("Channel{id=%q name=%q subtitle=%q type=%q display=%q image=%q primary=%q}",
		c.ID, c.Name, c.Subtitle, c.Type, c.Display, image, c.PrimaryURL())
}
