// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/podcastr/internal/domain/episode"

// Playlist is an ordered sequence of episodes loaded for playback.
type Playlist struct {
	Episodes []episode.Episode
}

// New creates a playlist holding a copy of the given episodes.
func New(episodes []episode.Episode) Playlist {
	eps := make([]episode.Episode, len(episodes))
	copy(eps, episodes)
	return Playlist{Episodes: eps}
}

// Len returns the number of episodes.
func (p Playlist) Len() int {
	return len(p.Episodes)
}

// InRange reports whether index addresses an episode in the playlist.
func (p Playlist) InRange(index int) bool {
	return index >= 0 && index < len(p.Episodes)
}

// At returns the episode at index.
func (p Playlist) At(index int) (episode.Episode, bool) {
	if !p.InRange(index) {
		return episode.Episode{}, false
	}
	return p.Episodes[index], true
}

// EpisodeIDs returns all episode IDs in order.
func (p Playlist) EpisodeIDs() []string {
	ids := make([]string, len(p.Episodes))
	for i, e := range p.Episodes {
		ids[i] = e.ID
	}
	return ids
}

// TotalDuration returns the total duration of all episodes in seconds.
func (p Playlist) TotalDuration() int64 {
	var total int64
	for _, e := range p.Episodes {
		total += int64(e.Duration)
	}
	return total
}
