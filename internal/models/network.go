package models

import (
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// HeaderMap persists as an array of [name, value] entries so the stored
// form stays ordered and JSON-array friendly. Both the entry form and a
// plain object are accepted when loading.
type HeaderMap map[string]string

func (h HeaderMap) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([][2]string, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, [2]string{k, h[k]})
	}
	return json.Marshal(entries)
}

func (h *HeaderMap) UnmarshalJSON(data []byte) error {
	var entries [][2]string
	if err := json.Unmarshal(data, &entries); err == nil {
		m := make(HeaderMap, len(entries))
		for _, e := range entries {
			m[e[0]] = e[1]
		}
		*h = m
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*h = m
	return nil
}

// NetworkCall is one captured API request pushed in by the host.
type NetworkCall struct {
	ID              string    `json:"id"`
	Method          string    `json:"method"`
	URL             string    `json:"url"`
	Status          int       `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Duration        int64     `json:"duration,omitempty"` // milliseconds
	RequestHeaders  HeaderMap `json:"requestHeaders,omitempty"`
	ResponseHeaders HeaderMap `json:"responseHeaders,omitempty"`
}
