// Package episode provides the Episode domain entity.
package episode

import "time"

// Episode represents a single playable podcast entry.
// Values are treated as immutable once fetched from the API.
type Episode struct {
	ID          string    `json:"id"`                    // API episode ID
	Title       string    `json:"title"`                 // Episode title
	Members     string    `json:"members"`               // Hosts and guests, as a display string
	Thumbnail   string    `json:"thumbnail"`             // Thumbnail image URL
	Description string    `json:"description,omitempty"` // HTML description (detail page only)
	PublishedAt time.Time `json:"published_at,omitzero"` // Publication time
	Duration    int       `json:"duration"`              // Duration in seconds
	URL         string    `json:"url"`                   // Media file URL
}

// IsPlayable reports whether the episode has a media URL to hand to the audio element.
func (e Episode) IsPlayable() bool {
	return e.URL != ""
}

// Find returns the episode with the given ID and its index, or -1.
func Find(episodes []Episode, id string) (Episode, int) {
	for i, ep := range episodes {
		if ep.ID == id {
			return ep, i
		}
	}
	return Episode{}, -1
}
