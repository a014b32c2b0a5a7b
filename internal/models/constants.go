package models

// ChannelType classifies how a channel is played back.
type ChannelType string

// Channel type constants.
const (
	ChannelTypeSingle   ChannelType = "single"
	ChannelTypePlaylist ChannelType = "playlist"
	ChannelTypeLive     ChannelType = "live"
)

// DisplayMode controls how a channel tile is rendered.
type DisplayMode string

// Display mode constants.
const (
	DisplayThumbnailOnly DisplayMode = "thumbnail-only"
	DisplayFull          DisplayMode = "full"
	DisplayCompact       DisplayMode = "compact"
)

// Image display constants.
const (
	ImageDisplayCover   = "cover"
	ImageDisplayContain = "contain"
	ImageDisplayFill    = "fill"
)

// Image shape constants.
const (
	ImageShapeSquare    = "square"
	ImageShapeRectangle = "rectangle"
	ImageShapeCircle    = "circle"
)

// Label position constants.
const (
	LabelTopLeft     = "top-left"
	LabelTopRight    = "top-right"
	LabelBottomLeft  = "bottom-left"
	LabelBottomRight = "bottom-right"
	LabelCenter      = "center"
)

// Stream link type constants. Anything else is treated as HLS by the projection.
const (
	LinkTypeHLS  = "hls"
	LinkTypeDASH = "dash"
	LinkTypeMP4  = "mp4"
)
