package models

// Image is thumbnail metadata for a channel.
type Image struct {
	URL     string `json:"url"`
	Height  int    `json:"height"`
	Width   int    `json:"width"`
	Display string `json:"display"`
	Shape   string `json:"shape"`
}

// Label is decorative overlay text drawn on a channel thumbnail.
type Label struct {
	Position  string `json:"position"`
	Text      string `json:"text"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
}
