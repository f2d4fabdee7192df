package playback

import "github.com/osa030/podcastr/internal/domain/episode"

// EventType represents a playback event type.
type EventType int

const (
	EventEpisodeChanged EventType = iota // Playlist or current index changed
	EventStateChanged                    // Playing flag changed
	EventModeChanged                     // Loop or shuffle flag changed
	EventPlaylistEnded                   // PlayNext ran past the last episode
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventEpisodeChanged:
		return "episode_changed"
	case EventStateChanged:
		return "state_changed"
	case EventModeChanged:
		return "mode_changed"
	case EventPlaylistEnded:
		return "playlist_ended"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type    EventType
	Episode *episode.Episode // Current episode (nil when nothing is loaded)
	State   State            // Store state after the transition
}
