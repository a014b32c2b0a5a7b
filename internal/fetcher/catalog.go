package fetcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/voyagen/castvault/internal/models"
)

var (
	// ErrMalformedCatalog is returned when the document is not a JSON object.
	ErrMalformedCatalog = errors.New("malformed catalog document")
	// ErrNoChannels is returned when the document has no "channels" array.
	ErrNoChannels = errors.New("catalog has no channels array")
	// ErrNotObject is returned by ParseChannel for non-object input.
	ErrNotObject = errors.New("channel is not a JSON object")
)

// ParseCatalog decodes a catalog document into channels in document order.
// Field coercion is lenient: missing or mistyped values fall back to their zero
// value and unknown fields are ignored. Only a document that is not a JSON
// object, or lacks a "channels" array, is reported as an error.
func ParseCatalog(data []byte) ([]models.Channel, error) {
	var doc struct {
		Channels json.RawMessage `json:"channels"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	if !isArray(doc.Channels) {
		return nil, ErrNoChannels
	}
	var wire lenientList[wireChannel]
	if err := json.Unmarshal(doc.Channels, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	channels := make([]models.Channel, 0, len(wire))
	for _, w := range wire {
		channels = append(channels, w.model())
	}
	return channels, nil
}

// ParseChannel decodes a single channel object with the same rules as ParseCatalog.
func ParseChannel(raw []byte) (models.Channel, error) {
	if !isObject(raw) {
		return models.Channel{}, ErrNotObject
	}
	var w wireChannel
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.Channel{}, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	return w.model(), nil
}

// --- wire types ---

type wireChannel struct {
	ID       lenientString            `json:"id"`
	Name     lenientString            `json:"name"`
	Subtitle lenientString            `json:"subtitle"`
	Labels   lenientList[wireLabel]   `json:"labels"`
	Image    lenientObject[wireImage] `json:"image"`
	Type     lenientString            `json:"type"`
	Display  lenientString            `json:"display"`
	Sources  lenientList[wireSource]  `json:"sources"`
}

type wireLabel struct {
	Position  lenientString `json:"position"`
	Text      lenientString `json:"text"`
	Color     lenientString `json:"color"`
	TextColor lenientString `json:"text_color"`
}

type wireImage struct {
	URL     lenientString `json:"url"`
	Height  lenientInt    `json:"height"`
	Width   lenientInt    `json:"width"`
	Display lenientString `json:"display"`
	Shape   lenientString `json:"shape"`
}

type wireSource struct {
	ID       lenientString            `json:"id"`
	Name     lenientString            `json:"name"`
	Contents lenientList[wireContent] `json:"contents"`
}

type wireContent struct {
	ID      lenientString           `json:"id"`
	Name    lenientString           `json:"name"`
	Streams lenientList[wireStream] `json:"streams"`
}

type wireStream struct {
	ID          lenientString               `json:"id"`
	Name        lenientString               `json:"name"`
	StreamLinks lenientList[wireStreamLink] `json:"stream_links"`
}

type wireStreamLink struct {
	ID             lenientString           `json:"id"`
	Name           lenientString           `json:"name"`
	Type           lenientString           `json:"type"`
	Default        lenientBool             `json:"default"`
	URL            lenientString           `json:"url"`
	RequestHeaders lenientList[wireHeader] `json:"request_headers"`
}

type wireHeader struct {
	Key   lenientString `json:"key"`
	Value lenientString `json:"value"`
}

func (w wireChannel) model() models.Channel {
	ch := models.Channel{
		ID:       string(w.ID),
		Name:     string(w.Name),
		Subtitle: string(w.Subtitle),
		Type:     models.ChannelType(w.Type),
		Display:  models.DisplayMode(w.Display),
		Labels:   make([]models.Label, 0, len(w.Labels)),
		Sources:  make([]models.Source, 0, len(w.Sources)),
	}
	for _, l := range w.Labels {
		ch.Labels = append(ch.Labels, models.Label{
			Position:  string(l.Position),
			Text:      string(l.Text),
			Color:     string(l.Color),
			TextColor: string(l.TextColor),
		})
	}
	if w.Image.present {
		img := w.Image.value
		ch.Image = &models.Image{
			URL:     string(img.URL),
			Height:  int(img.Height),
			Width:   int(img.Width),
			Display: string(img.Display),
			Shape:   string(img.Shape),
		}
	}
	for _, s := range w.Sources {
		ch.Sources = append(ch.Sources, s.model())
	}
	return ch
}

func (w wireSource) model() models.Source {
	src := models.Source{
		ID:       string(w.ID),
		Name:     string(w.Name),
		Contents: make([]models.Content, 0, len(w.Contents)),
	}
	for _, c := range w.Contents {
		content := models.Content{
			ID:      string(c.ID),
			Name:    string(c.Name),
			Streams: make([]models.Stream, 0, len(c.Streams)),
		}
		for _, s := range c.Streams {
			content.Streams = append(content.Streams, s.model())
		}
		src.Contents = append(src.Contents, content)
	}
	return src
}

func (w wireStream) model() models.Stream {
	stream := models.Stream{
		ID:          string(w.ID),
		Name:        string(w.Name),
		StreamLinks: make([]models.StreamLink, 0, len(w.StreamLinks)),
	}
	for _, l := range w.StreamLinks {
		link := models.StreamLink{
			ID:             string(l.ID),
			Name:           string(l.Name),
			Type:           string(l.Type),
			IsDefault:      bool(l.Default),
			URL:            string(l.URL),
			RequestHeaders: make([]models.RequestHeader, 0, len(l.RequestHeaders)),
		}
		for _, h := range l.RequestHeaders {
			link.RequestHeaders = append(link.RequestHeaders, models.RequestHeader{
				Key:   string(h.Key),
				Value: string(h.Value),
			})
		}
		stream.StreamLinks = append(stream.StreamLinks, link)
	}
	return stream
}

// --- lenient scalars and containers ---

// lenientString accepts any JSON value. Strings decode normally, null becomes "",
// and other values keep their JSON text (numbers, booleans, nested objects).
type lenientString string

func (s *lenientString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*s = ""
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = lenientString(v)
	default:
		*s = lenientString(b)
	}
	return nil
}

// lenientInt accepts numbers and numeric strings; fractions are truncated and
// negative or unparseable values become 0.
type lenientInt int

func (n *lenientInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	text := string(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		text = strings.TrimSpace(v)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
		*n = 0
		return nil
	}
	*n = lenientInt(int(f))
	return nil
}

// lenientBool accepts JSON booleans and the strings "true"/"false" in any case.
type lenientBool bool

func (v *lenientBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	text := string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		text = s
	}
	*v = lenientBool(strings.EqualFold(strings.TrimSpace(text), "true"))
	return nil
}

// lenientList decodes a JSON array of objects. A non-array value yields an empty
// list and non-object elements are skipped.
type lenientList[T any] []T

func (l *lenientList[T]) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		if !isObject(r) {
			continue
		}
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// lenientObject decodes an optional JSON object; anything else leaves it absent.
type lenientObject[T any] struct {
	value   T
	present bool
}

func (o *lenientObject[T]) UnmarshalJSON(b []byte) error {
	*o = lenientObject[T]{}
	if !isObject(b) {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	o.value, o.present = v, true
	return nil
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

func isArray(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}
