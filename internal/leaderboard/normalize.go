package leaderboard

import (
	"bytes"
	"encoding/json"
)

var emptyList = json.RawMessage("[]")

// envelopeKeys are the fields, in order of preference, that older and newer backend
// versions have used to wrap the list of entries
var envelopeKeys = []string{"data", "items", "leaderboard", "rankings"}

// normalize extracts the list of leaderboard entries from a backend payload. Anything
// we can't make sense of is treated as an empty leaderboard.
func normalize(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if isArray(trimmed) {
		return trimmed
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return emptyList
	}
	for _, key := range envelopeKeys {
		if value := bytes.TrimSpace(envelope[key]); isArray(value) {
			return value
		}
	}
	return emptyList
}

func isArray(b []byte) bool {
	return len(b) > 0 && b[0] == '[' && json.Valid(b)
}
