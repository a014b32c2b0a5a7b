package log

// Canonical field names for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldJobID     = "job_id"
	FieldRequestID = "request_id"

	FieldSourceRef = "source_ref"
	FieldOrigin    = "origin"
	FieldStage     = "stage"
	FieldChannelID = "channel_id"
	FieldChannels  = "channels"
	FieldDropped   = "dropped"
	FieldPath      = "path"
)
