// Package protocol defines the wire format shared by the server, the
// devices, and the persisted snapshot file.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lichlabs/confpush/internal/profile"
)

// MessageUpdate is the only message type the server pushes. Devices are
// read-only and never send application data.
const MessageUpdate = "update"

// Envelope wraps a full profile snapshot for the WebSocket channel.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// LevelKey returns the snapshot key for a level ("level1".."level9").
func LevelKey(level int) string {
	return "level" + strconv.Itoa(level)
}

// ParseLevelKey accepts "levelN" or a bare "N" and returns the level.
func ParseLevelKey(key string) (int, error) {
	s := strings.TrimPrefix(key, "level")
	level, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("level key %q: %w", key, err)
	}
	if !profile.ValidLevel(level) {
		return 0, fmt.Errorf("level key %q: level %d out of range", key, level)
	}
	return level, nil
}

// EncodeSnapshot renders a profile set as the keyed JSON object devices
// receive and the state file stores.
func EncodeSnapshot(set profile.Set) ([]byte, error) {
	out := make(map[string]profile.Table, len(set))
	for level, t := range set {
		out[LevelKey(level)] = t
	}
	return json.Marshal(out)
}

// DecodeSnapshot parses a keyed snapshot object back into a profile set.
// Unknown keys are rejected so a corrupt state file fails loudly.
func DecodeSnapshot(data []byte) (profile.Set, error) {
	var raw map[string]profile.Table
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	set := make(profile.Set, len(raw))
	for key, t := range raw {
		level, err := ParseLevelKey(key)
		if err != nil {
			return nil, fmt.Errorf("decoding snapshot: %w", err)
		}
		set[level] = t
	}
	return set, nil
}

// NewUpdate builds an update envelope carrying the given snapshot.
func NewUpdate(set profile.Set, now time.Time) Envelope {
	// Marshaling a map of int tables cannot fail.
	data, _ := EncodeSnapshot(set)
	return Envelope{
		Type:      MessageUpdate,
		Timestamp: now.Format(time.RFC3339),
		Data:      data,
	}
}

// DecodeUpdateRequest parses a POST /send body. The current form is a keyed
// object {"levelN": {...}}; the legacy form is an array of tables each
// carrying a "level" field. Unknown level keys are reported, not fatal.
func DecodeUpdateRequest(body []byte) (updates map[int]map[string]int, errs []string, err error) {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	updates = make(map[int]map[string]int)

	if strings.HasPrefix(trimmed, "[") {
		var list []map[string]int
		if uerr := json.Unmarshal(body, &list); uerr != nil {
			return nil, nil, fmt.Errorf("decoding update array: %w", uerr)
		}
		for _, entry := range list {
			level, ok := entry["level"]
			if !ok || !profile.ValidLevel(level) {
				errs = append(errs, fmt.Sprintf("entry without valid level: %v", entry["level"]))
				continue
			}
			fields := make(map[string]int, len(entry))
			for k, v := range entry {
				if k != "level" {
					fields[k] = v
				}
			}
			updates[level] = fields
		}
		return updates, errs, nil
	}

	var keyed map[string]map[string]int
	if uerr := json.Unmarshal(body, &keyed); uerr != nil {
		return nil, nil, fmt.Errorf("decoding update object: %w", uerr)
	}
	for key, fields := range keyed {
		level, kerr := ParseLevelKey(key)
		if kerr != nil {
			errs = append(errs, kerr.Error())
			continue
		}
		updates[level] = fields
	}
	return updates, errs, nil
}
