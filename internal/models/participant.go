package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// participantSuffixLen is the length of the suffix the server appends to
// participant ids; it is cut before display.
const participantSuffixLen = 2

// ParticipantMap maps internal actor/agent ids to participant ids, keeping the
// order in which the server listed them. The zero value is an empty map.
type ParticipantMap struct {
	actorIDs     []string
	participants map[string]string
}

// Set adds or replaces a mapping. New actors are appended to the order.
func (m *ParticipantMap) Set(actorID, participantID string) {
	if m.participants == nil {
		m.participants = make(map[string]string)
	}
	if _, exists := m.participants[actorID]; !exists {
		m.actorIDs = append(m.actorIDs, actorID)
	}
	m.participants[actorID] = participantID
}

// Len returns the number of mappings.
func (m ParticipantMap) Len() int {
	return len(m.actorIDs)
}

// Lookup returns the raw participant id for an actor.
func (m ParticipantMap) Lookup(actorID string) (string, bool) {
	pid, ok := m.participants[actorID]
	return pid, ok
}

// Translate turns a raw actor id into a display name. An exact match yields
// the participant id without its suffix. Otherwise every known actor id
// occurring inside the string is replaced, longest ids first so that "a1"
// never rewrites part of "a10". Unknown ids pass through unchanged.
func (m ParticipantMap) Translate(actor string) string {
	if pid, ok := m.participants[actor]; ok {
		return displayName(pid)
	}

	ids := make([]string, 0, len(m.actorIDs))
	for _, id := range m.actorIDs {
		if id != "" && strings.Contains(actor, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return actor
	}
	sort.SliceStable(ids, func(i, j int) bool { return len(ids[i]) > len(ids[j]) })

	out := actor
	for _, id := range ids {
		out = strings.ReplaceAll(out, id, displayName(m.participants[id]))
	}
	return out
}

func displayName(participantID string) string {
	r := []rune(participantID)
	if len(r) <= participantSuffixLen {
		return ""
	}
	return string(r[:len(r)-participantSuffixLen])
}

// UnmarshalJSON decodes {"actor": "participant", ...} preserving key order.
func (m *ParticipantMap) UnmarshalJSON(data []byte) error {
	var out ParticipantMap
	err := decodeObject(data, func(key string, raw json.RawMessage) error {
		if isNull(raw) {
			return missingField("participant id for " + key)
		}
		var pid string
		if err := json.Unmarshal(raw, &pid); err != nil {
			return fmt.Errorf("%w: participant id for %s: %v", ErrMalformed, key, err)
		}
		out.Set(key, pid)
		return nil
	})
	if err != nil {
		return err
	}
	*m = out
	return nil
}

// DecodeParticipantMap decodes a /ui/participant_map body.
func DecodeParticipantMap(body []byte) (ParticipantMap, error) {
	var m ParticipantMap
	if err := m.UnmarshalJSON(body); err != nil {
		return ParticipantMap{}, err
	}
	return m, nil
}
