package fetcher

import (
	"bytes"

	"github.com/voyagen/castvault/internal/models"
)

// Format identifies the syntax of a fetched catalog document.
type Format string

const (
	FormatJSON Format = "json"
	FormatM3U  Format = "m3u"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat reports FormatM3U for documents starting with #EXTM3U and
// FormatJSON for everything else.
func DetectFormat(data []byte) Format {
	head := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	if len(head) >= 7 && bytes.EqualFold(head[:7], []byte("#EXTM3U")) {
		return FormatM3U
	}
	return FormatJSON
}

// ParseDocument parses data as an M3U playlist or a JSON catalog depending on
// its leading bytes.
func ParseDocument(data []byte) ([]models.Channel, Format, error) {
	format := DetectFormat(data)
	if format == FormatM3U {
		channels, err := ParseM3U(bytes.NewReader(data))
		return channels, format, err
	}
	channels, err := ParseCatalog(data)
	return channels, format, err
}
