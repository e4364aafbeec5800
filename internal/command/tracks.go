package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// unsetValue fills a column slot for a track that does not define the option.
const unsetValue = "-1"

// TrackIndex identifies a track in its source; it may be a number or a name.
type TrackIndex string

// UnmarshalJSON accepts both numbers and strings.
func (ti *TrackIndex) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*ti = TrackIndex(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("track index must be a number or string: %s", string(data))
	}
	*ti = TrackIndex(n.String())
	return nil
}

// Track is one audio/subtitle stream with its per-track options.
type Track struct {
	Index   TrackIndex `json:"track"`
	Options Options    `json:"options"`
}

// Aggregate transposes per-track options into comma-joined columns and compiles them.
//
// Every key used by any track becomes a column (first-seen order), followed by a column
// named after the group holding the track indices. Tracks missing a key get "-1" in that
// column, so positions line up across columns. No tracks means no tokens.
func Aggregate(group string, tracks []Track) []string {
	if len(tracks) == 0 {
		return []string{}
	}

	var keys []string
	seen := make(map[string]bool)
	for _, t := range tracks {
		for _, opt := range t.Options {
			if !seen[opt.Key] {
				seen[opt.Key] = true
				keys = append(keys, opt.Key)
			}
		}
	}

	columns := make(Options, 0, len(keys)+1)
	for _, key := range keys {
		values := make([]string, len(tracks))
		for i, t := range tracks {
			v, ok := t.Options.Get(key)
			if !ok || v == nil {
				values[i] = unsetValue
				continue
			}
			values[i] = FormatValue(v)
		}
		columns = append(columns, Option{Key: key, Value: strings.Join(values, ",")})
	}

	indices := make([]string, len(tracks))
	for i, t := range tracks {
		indices[i] = string(t.Index)
	}
	columns.Set(group, strings.Join(indices, ","))

	return Compile(columns)
}
