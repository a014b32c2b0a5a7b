package fetcher

import (
	"bufio"
	"encoding/json"
	"io"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/voyagen/castvault/internal/models"
)

var (
	reTvgName       = regexp.MustCompile(`tvg-name="([^"]*)"`)
	reTvgID         = regexp.MustCompile(`tvg-id="([^"]*)"`)
	reTvgLogo       = regexp.MustCompile(`tvg-logo="([^"]*)"`)
	reGroup         = regexp.MustCompile(`group-title="([^"]*)"`)
	reHTTPOrigin    = regexp.MustCompile(`http-origin=(.+)`)
	reHTTPReferrer  = regexp.MustCompile(`http-referrer=(.+)`)
	reHTTPUserAgent = regexp.MustCompile(`http-user-agent=(.+)`)
)

// defaultM3USource names the source of entries without a group-title.
const defaultM3USource = "m3u"

// ParseM3U reads an M3U playlist and returns one channel per entry. Each entry
// becomes a single source/content/stream/link chain; #EXTVLCOPT http options
// and #EXTHTTP JSON objects become request headers of that link.
func ParseM3U(r io.Reader) ([]models.Channel, error) {
	var channels []models.Channel
	scanner := bufio.NewScanner(r)
	// Some playlists carry very long EXTINF lines.
	const maxSize = 1024 * 1024
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxSize)

	var extinfLine string
	var headers []models.RequestHeader

	for scanner.Scan() {
		line := scanner.Text()
		lineUpper := strings.ToUpper(line)
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(lineUpper, "#EXTINF"):
			// A previous EXTINF without a URL line is dropped.
			extinfLine = line
			headers = nil
		case strings.HasPrefix(lineUpper, "#EXTVLCOPT"):
			if s := matchFirst(reHTTPUserAgent, line); s != "" {
				headers = setHeader(headers, "User-Agent", s)
			}
			if s := matchFirst(reHTTPReferrer, line); s != "" {
				headers = setHeader(headers, "Referer", s)
			}
			if s := matchFirst(reHTTPOrigin, line); s != "" {
				headers = setHeader(headers, "Origin", s)
			}
		case strings.HasPrefix(lineUpper, "#EXTHTTP:"):
			var m map[string]string
			if err := json.Unmarshal([]byte(strings.TrimSpace(line[len("#EXTHTTP:"):])), &m); err != nil {
				continue
			}
			for _, k := range slices.Sorted(maps.Keys(m)) {
				headers = setHeader(headers, k, m[k])
			}
		case strings.HasPrefix(trimmed, "#") || trimmed == "":
			continue
		default:
			if extinfLine == "" {
				continue
			}
			name, ok := channelNameFromEXTINF(extinfLine)
			if !ok {
				extinfLine = ""
				headers = nil
				continue
			}
			channels = append(channels, m3uChannel(len(channels), extinfLine, name, trimmed, headers))
			extinfLine = ""
			headers = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	return channels, nil
}

func m3uChannel(index int, extinf, name, url string, headers []models.RequestHeader) models.Channel {
	id := matchFirst(reTvgID, extinf)
	if id == "" {
		id = "m3u-" + strconv.Itoa(index+1)
	}
	group := matchFirst(reGroup, extinf)
	if group == "" {
		group = defaultM3USource
	}
	if headers == nil {
		headers = []models.RequestHeader{}
	}
	ch := models.Channel{
		ID:     id,
		Name:   name,
		Type:   channelTypeFromURL(url),
		Labels: []models.Label{},
		Sources: []models.Source{{
			ID:   group,
			Name: group,
			Contents: []models.Content{{
				ID:   id,
				Name: name,
				Streams: []models.Stream{{
					ID:   id,
					Name: name,
					StreamLinks: []models.StreamLink{{
						ID:             id,
						Name:           name,
						Type:           linkTypeFromURL(url),
						IsDefault:      true,
						URL:            url,
						RequestHeaders: headers,
					}},
				}},
			}},
		}},
	}
	if logo := matchFirst(reTvgLogo, extinf); logo != "" {
		ch.Image = &models.Image{URL: logo}
	}
	return ch
}

// setHeader replaces the value of an existing key (case-insensitive) or appends it.
func setHeader(headers []models.RequestHeader, key, value string) []models.RequestHeader {
	for i := range headers {
		if strings.EqualFold(headers[i].Key, key) {
			headers[i].Value = value
			return headers
		}
	}
	return append(headers, models.RequestHeader{Key: key, Value: value})
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// channelNameFromEXTINF picks tvg-name, then the text after the last comma, then tvg-id.
func channelNameFromEXTINF(extinf string) (string, bool) {
	if n := matchFirst(reTvgName, extinf); n != "" {
		return n, true
	}
	if i := strings.LastIndex(extinf, ","); i >= 0 {
		if alt := strings.TrimSpace(extinf[i+1:]); alt != "" {
			return alt, true
		}
	}
	if id := matchFirst(reTvgID, extinf); id != "" {
		return id, true
	}
	return "", false
}

func channelTypeFromURL(url string) models.ChannelType {
	lower := strings.ToLower(url)
	if strings.HasSuffix(lower, ".mp4") || strings.HasSuffix(lower, ".mkv") {
		return models.ChannelTypeSingle
	}
	return models.ChannelTypeLive
}

func linkTypeFromURL(url string) string {
	lower := strings.ToLower(url)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	switch {
	case strings.HasSuffix(lower, ".m3u8"):
		return models.LinkTypeHLS
	case strings.HasSuffix(lower, ".mpd"):
		return models.LinkTypeDASH
	case strings.HasSuffix(lower, ".mp4"):
		return models.LinkTypeMP4
	default:
		return ""
	}
}
