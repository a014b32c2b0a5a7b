package models

// RequestHeader is a single HTTP header pair required to play a stream link.
type RequestHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// HeaderMap folds headers into a map. Headers with an empty key are skipped and a
// repeated key keeps its last value.
func HeaderMap(headers []RequestHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		if h.Key == "" {
			continue
		}
		m[h.Key] = h.Value
	}
	return m
}
