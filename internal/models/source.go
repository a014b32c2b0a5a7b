package models

// Source is a named provider grouping of contents within a channel.
type Source struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Contents []Content `json:"contents"`
}

// FirstContent returns the first content of the source.
func (s *Source) FirstContent() (Content, bool) {
	if len(s.Contents) == 0 {
		return Content{}, false
	}
	return s.Contents[0], true
}

// ContentByName returns the first content whose name matches exactly.
func (s *Source) ContentByName(name string) (Content, bool) {
	for _, c := range s.Contents {
		if c.Name == name {
			return c, true
		}
	}
	return Content{}, false
}

// Content groups streams, e.g. quality variants of one asset.
type Content struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Streams []Stream `json:"streams"`
}

// FirstStream returns the first stream of the content.
func (c *Content) FirstStream() (Stream, bool) {
	if len(c.Streams) == 0 {
		return Stream{}, false
	}
	return c.Streams[0], true
}

// Stream groups stream links, e.g. protocol variants of one quality.
type Stream struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	StreamLinks []StreamLink `json:"stream_links"`
}

// FirstStreamLink returns the positionally first link of the stream.
func (s *Stream) FirstStreamLink() (StreamLink, bool) {
	if len(s.StreamLinks) == 0 {
		return StreamLink{}, false
	}
	return s.StreamLinks[0], true
}

// StreamLink is a concrete playable url plus its transport metadata.
type StreamLink struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	IsDefault      bool            `json:"default"`
	URL            string          `json:"url"`
	RequestHeaders []RequestHeader `json:"request_headers"`
}
