// Package payload inspects raw upstream JSON without imposing a schema.
// Payloads stay opaque end to end; only two shapes are looked at: the
// API-Sports top-level "errors" object (domain errors inside 200 responses)
// and the row collections that drive the per-race fan-out.
package payload

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// HasAPIError reports whether a payload carries a non-empty "errors"
// object. The upstream reports domain errors this way even when the HTTP
// status was 2xx.
func HasAPIError(raw []byte) bool {
	_, ok := FirstErrorMessage(raw)
	return ok
}

// FirstErrorMessage returns a "key: value" rendering of one entry of the
// "errors" object, false if there is none. The lexicographically first key
// is chosen so the same payload always reports the same message.
func FirstErrorMessage(raw []byte) (string, bool) {
	var envelope struct {
		Errors map[string]any `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", false
	}
	if len(envelope.Errors) == 0 {
		return "", false
	}

	keys := make([]string, 0, len(envelope.Errors))
	for k := range envelope.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	first := keys[0]
	return fmt.Sprintf("%s: %v", first, envelope.Errors[first]), true
}

// ExtractRaceIDs walks the top-level "response" array of an API-Sports
// races listing and returns the race identifiers found, deduplicated and
// sorted ascending. Rows without a usable id are skipped. The accepted
// field names follow the upstream's drift over time.
func ExtractRaceIDs(raw []byte) []int64 {
	var envelope struct {
		Response []map[string]any `json:"response"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}

	seen := make(map[int64]struct{})
	for _, row := range envelope.Response {
		id, ok := raceID(row)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// raceID extracts the race identifier from one response row.
func raceID(row map[string]any) (int64, bool) {
	for _, field := range []string{"id", "race", "race_id"} {
		if value, ok := row[field]; ok {
			if id, ok := asInt64(value); ok {
				return id, true
			}
		}
	}
	return 0, false
}

// RoundsFromRaces extracts the round numbers from an Ergast races payload
// (MRData -> RaceTable -> Races[].round), deduplicated and sorted
// ascending. A payload without that structure yields an empty result.
func RoundsFromRaces(raw []byte) []int {
	var envelope struct {
		MRData struct {
			RaceTable struct {
				Races []struct {
					Round json.RawMessage `json:"round"`
				} `json:"Races"`
			} `json:"RaceTable"`
		} `json:"MRData"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}

	seen := make(map[int]struct{})
	for _, race := range envelope.MRData.RaceTable.Races {
		round, ok := asRound(race.Round)
		if !ok {
			continue
		}
		seen[round] = struct{}{}
	}

	rounds := make([]int, 0, len(seen))
	for round := range seen {
		rounds = append(rounds, round)
	}
	sort.Ints(rounds)
	return rounds
}

// asRound parses a round value; Ergast serves rounds as JSON strings but
// numbers are accepted too.
func asRound(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		round, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return round, true
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	return 0, false
}

// asInt64 converts a decoded JSON value to an integer identifier.
func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		id := int64(v)
		if float64(id) != v || id <= 0 {
			return 0, false
		}
		return id, true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
