package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// document is the JSON shape shared by the file and s3 drivers.
type document struct {
	Groups      []int64 `json:"groups"`
	LastUpdated string  `json:"last_updated"`
}

func encodeDocument(groups []int64, now time.Time) ([]byte, error) {
	ids := normalize(groups)
	return json.MarshalIndent(document{Groups: ids, LastUpdated: now.Format(time.RFC3339)}, "", "  ")
}

// decodeDocument reads a groups document. Entries that are not int64
// (strings holding an id are accepted) are dropped.
func decodeDocument(b []byte) ([]int64, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	var raw struct {
		Groups []json.RawMessage `json:"groups"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode groups document: %w", err)
	}
	ids := make([]int64, 0, len(raw.Groups))
	for _, r := range raw.Groups {
		if id, ok := parseGroupID(r); ok {
			ids = append(ids, id)
		}
	}
	return normalize(ids), nil
}

func parseGroupID(r json.RawMessage) (int64, bool) {
	s := strings.TrimSpace(string(r))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// normalize returns a sorted copy without duplicates.
func normalize(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
