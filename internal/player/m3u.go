package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/samber/lo"

	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/models"
)

// vlcOptions maps request headers VLC understands as #EXTVLCOPT options.
var vlcOptions = map[string]string{
	"user-agent": "http-user-agent",
	"referer":    "http-referrer",
	"origin":     "http-origin",
}

var attrReplacer = strings.NewReplacer(`"`, "'", "\n", " ", "\r", " ")

// lineReplacer keeps header values and URLs on one playlist line.
var lineReplacer = strings.NewReplacer("\n", " ", "\r", " ")

// M3UPlayer "plays" descriptors by appending playlist entries to a writer.
// It supports request headers.
type M3UPlayer struct {
	mu      sync.Mutex
	w       *bufio.Writer
	started bool
}

// NewM3UPlayer returns an M3UPlayer writing to w. Call Flush when done.
func NewM3UPlayer(w io.Writer) *M3UPlayer {
	return &M3UPlayer{w: bufio.NewWriter(w)}
}

// Load implements Player.
func (p *M3UPlayer) Load(ctx context.Context, desc models.PlaybackDescriptor) error {
	return p.LoadWithHeaders(ctx, desc, nil)
}

// LoadWithHeaders implements HeaderPlayer.
func (p *M3UPlayer) LoadWithHeaders(ctx context.Context, desc models.PlaybackDescriptor, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.header()
	writeEntry(p.w, desc)
	writeHeaders(p.w, headers)
	_, err := p.w.WriteString(lineReplacer.Replace(desc.URL) + "\n")
	return err
}

// Flush writes buffered entries. An empty playlist still gets its header.
func (p *M3UPlayer) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.header()
	return p.w.Flush()
}

func (p *M3UPlayer) header() {
	if !p.started {
		p.w.WriteString("#EXTM3U\n")
		p.started = true
	}
}

// PlainM3UPlayer writes playlist entries without request headers.
type PlainM3UPlayer struct {
	inner *M3UPlayer
}

// NewPlainM3UPlayer returns a PlainM3UPlayer writing to w.
func NewPlainM3UPlayer(w io.Writer) *PlainM3UPlayer {
	return &PlainM3UPlayer{inner: NewM3UPlayer(w)}
}

// Load implements Player.
func (p *PlainM3UPlayer) Load(ctx context.Context, desc models.PlaybackDescriptor) error {
	return p.inner.Load(ctx, desc)
}

// Flush writes buffered entries.
func (p *PlainM3UPlayer) Flush() error { return p.inner.Flush() }

func writeEntry(w *bufio.Writer, desc models.PlaybackDescriptor) {
	fmt.Fprintf(w, `#EXTINF:-1 tvg-id="%s" tvg-name="%s"`,
		attrReplacer.Replace(desc.ChannelID), attrReplacer.Replace(desc.Title))
	if desc.ImageURL != "" {
		fmt.Fprintf(w, ` tvg-logo="%s"`, attrReplacer.Replace(desc.ImageURL))
	}
	if desc.Studio != "" {
		fmt.Fprintf(w, ` group-title="%s"`, attrReplacer.Replace(desc.Studio))
	}
	fmt.Fprintf(w, ",%s\n", attrReplacer.Replace(desc.Title))
}

func writeHeaders(w *bufio.Writer, headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	keys := slices.Sorted(maps.Keys(headers))
	for _, k := range keys {
		if opt, ok := vlcOptions[strings.ToLower(k)]; ok {
			fmt.Fprintf(w, "#EXTVLCOPT:%s=%s\n", opt, lineReplacer.Replace(headers[k]))
		}
	}
	// Keys are marshalled in sorted order.
	data, _ := json.Marshal(headers)
	fmt.Fprintf(w, "#EXTHTTP:%s\n", data)
}

// WriteM3U writes descs as a header-aware playlist.
func WriteM3U(ctx context.Context, w io.Writer, descs []models.PlaybackDescriptor) error {
	p := NewM3UPlayer(w)
	for _, d := range descs {
		if _, err := Handoff(ctx, p, d); err != nil {
			return fmt.Errorf("write entry %s: %w", d.ChannelID, err)
		}
	}
	return p.Flush()
}

// WriteM3UFile atomically replaces path with the playlist for descs.
func WriteM3UFile(ctx context.Context, path string, descs []models.PlaybackDescriptor) error {
	logger := log.WithContext(ctx, log.WithComponent("player"))

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending M3U file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending M3U file")
		}
	}()

	if err := WriteM3U(ctx, pendingFile, descs); err != nil {
		return fmt.Errorf("write M3U data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace M3U file: %w", err)
	}
	logger.Info().
		Str(log.FieldPath, path).
		Int(log.FieldChannels, len(descs)).
		Int("with_headers", lo.CountBy(descs, func(d models.PlaybackDescriptor) bool { return d.HasCustomData() })).
		Msg("playlist exported")
	return nil
}
