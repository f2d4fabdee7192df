// Package playback provides the per-visitor playback state store.
package playback

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/podcastr/internal/domain/episode"
)

// Mode represents the playback mode derived from the store state.
type Mode int

const (
	ModeStopped Mode = iota // No current episode
	ModePlaying             // Current episode, playing flag set
	ModePaused              // Current episode, playing flag cleared
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeStopped:
		return "stopped"
	case ModePlaying:
		return "playing"
	case ModePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stopped":
		*m = ModeStopped
	case "playing":
		*m = ModePlaying
	case "paused":
		*m = ModePaused
	default:
		return errors.Newf("unknown playback mode %q", text)
	}
	return nil
}

// State is a point-in-time copy of the store.
type State struct {
	Episodes     []episode.Episode `json:"episodes"`
	CurrentIndex int               `json:"current_index"`
	IsPlaying    bool              `json:"is_playing"`
	IsLooping    bool              `json:"is_looping"`
	IsShuffling  bool              `json:"is_shuffling"`
	HasNext      bool              `json:"has_next"`
	HasPrevious  bool              `json:"has_previous"`
	Mode         Mode              `json:"mode"`
}

// Current returns the current episode, if any.
func (s State) Current() (episode.Episode, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Episodes) {
		return episode.Episode{}, false
	}
	return s.Episodes[s.CurrentIndex], true
}
