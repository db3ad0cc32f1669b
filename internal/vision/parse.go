package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RawRegion is one entry of a vision model reply before coordinate mapping
type RawRegion struct {
	BBox []float64 `json:"bbox_2d"`
	Text string    `json:"text_content"`
}

// ErrMalformedResponse is returned when no region list can be recovered
var ErrMalformedResponse = errors.New("malformed region response")

var (
	fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)(?:```|$)")
	// Last resort for replies that are almost JSON
	regionPattern = regexp.MustCompile(`"bbox_2d"\s*:\s*\[([^\]]*)\]\s*,\s*"text_content"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// ParseRegions decodes a vision model reply into raw regions.
//
// Accepted shapes, in order of preference:
//   - a JSON array of {"bbox_2d": [x1, y1, x2, y2], "text_content": "..."},
//     optionally inside a ```json fence
//   - a JSON object whose first array-valued field holds such entries
//   - anything the regionPattern can scan entry by entry
//
// The ":=" typo some models emit is repaired before decoding. Entries with
// fewer than four coordinates are skipped. An empty array is a page without
// text, not an error.
func ParseRegions(raw string) ([]RawRegion, error) {
	body := stripFence(raw)
	body = strings.ReplaceAll(body, ":=", ":")
	body = strings.TrimSpace(body)

	if regions, ok := decodeArray([]byte(body)); ok {
		return regions, nil
	}
	if regions, ok := decodeObject([]byte(body)); ok {
		return regions, nil
	}

	matches := regionPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, preview(raw))
	}

	regions := make([]RawRegion, 0, len(matches))
	for _, m := range matches {
		coords, err := parseCoords(m[1])
		if err != nil || len(coords) < 4 {
			continue
		}
		text, err := strconv.Unquote(`"` + m[2] + `"`)
		if err != nil {
			text = m[2]
		}
		regions = append(regions, RawRegion{BBox: coords, Text: text})
	}
	return regions, nil
}

func stripFence(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

func decodeArray(data []byte) ([]RawRegion, bool) {
	var regions []RawRegion
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, false
	}
	return keepComplete(regions), true
}

func decodeObject(data []byte) ([]RawRegion, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	if _, ok := obj["bbox_2d"]; ok {
		var single RawRegion
		if err := json.Unmarshal(data, &single); err == nil {
			return keepComplete([]RawRegion{single}), true
		}
	}
	for _, v := range obj {
		if regions, ok := decodeArray(v); ok && len(regions) > 0 {
			return regions, true
		}
	}
	return nil, false
}

func keepComplete(regions []RawRegion) []RawRegion {
	kept := regions[:0]
	for _, r := range regions {
		if len(r.BBox) >= 4 {
			kept = append(kept, r)
		}
	}
	return kept
}

func parseCoords(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	coords := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		coords = append(coords, v)
	}
	return coords, nil
}

func preview(s string) string {
	const max = 200
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
