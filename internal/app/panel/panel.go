// Package panel binds a playback store to the visitor's audio element.
//
// The audio element lives in the browser. The binding receives the element's
// media events (play, pause, timeupdate, ended, loadedmetadata), mirrors them
// into the store, and issues play/pause/seek commands back through a Media
// port whenever the store's playing flag diverges from the element. Every
// page load builds a new element, so loadedmetadata for the episode already
// playing puts the element back at the stored position and playing flag.
package panel

import (
	"math"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podcastr/internal/app/format"
	"github.com/osa030/podcastr/internal/app/playback"
	"github.com/osa030/podcastr/internal/domain/episode"
)

// Media is the command side of the audio element.
type Media interface {
	Play() error
	Pause() error
	Seek(seconds int) error
}

// MediaEvent is an event reported by the audio element.
type MediaEvent string

const (
	MediaPlay           MediaEvent = "play"
	MediaPause          MediaEvent = "pause"
	MediaTimeUpdate     MediaEvent = "timeupdate"
	MediaEnded          MediaEvent = "ended"
	MediaLoadedMetadata MediaEvent = "loadedmetadata"
)

// ParseMediaEvent validates an event name.
func ParseMediaEvent(s string) (MediaEvent, bool) {
	switch e := MediaEvent(s); e {
	case MediaPlay, MediaPause, MediaTimeUpdate, MediaEnded, MediaLoadedMetadata:
		return e, true
	default:
		return "", false
	}
}

// Binding is the player panel for one visitor.
type Binding struct {
	mu sync.Mutex

	player   *playback.Player
	media    Media
	progress int
	loadedID string // episode the element last loaded metadata for
}

// New creates a binding for the player. media may be nil until the browser
// attaches its event stream.
func New(player *playback.Player, media Media) *Binding {
	return &Binding{
		player: player,
		media:  media,
	}
}

// Player returns the bound store.
func (b *Binding) Player() *playback.Player {
	return b.player
}

// Attach replaces the media port.
func (b *Binding) Attach(media Media) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.media = media
}

// Detach removes the media port if it is still the given one.
func (b *Binding) Detach(media Media) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.media == media {
		b.media = nil
	}
}

// Progress returns the displayed progress in whole seconds.
func (b *Binding) Progress() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress
}

// Sync pushes the store's playing flag to the audio element.
func (b *Binding) Sync() {
	b.mu.Lock()
	media := b.media
	b.mu.Unlock()

	if media == nil {
		return
	}
	if _, ok := b.player.CurrentEpisode(); !ok {
		return
	}

	var err error
	if b.player.IsPlaying() {
		err = media.Play()
	} else {
		err = media.Pause()
	}
	if err != nil {
		zlog.Warn().Msgf("panel: failed to sync media element: %v", err)
	}
}

// HandleMediaEvent applies an event reported by the audio element.
// currentTime is the element's currentTime in seconds; it is only read for
// timeupdate.
func (b *Binding) HandleMediaEvent(ev MediaEvent, currentTime float64) {
	switch ev {
	case MediaPlay:
		b.player.SetPlayingState(true)
	case MediaPause:
		b.player.SetPlayingState(false)
	case MediaTimeUpdate:
		b.setProgress(toSeconds(currentTime))
	case MediaLoadedMetadata:
		b.seekMedia(b.loaded())
		b.Sync()
	case MediaEnded:
		b.player.PlayNextOnEnded()
		b.setProgress(0)
	}
}

// loaded records the episode the element just loaded and returns where it
// should start. A new episode starts at zero; the same episode loaded again
// by a fresh page resumes at the stored progress.
func (b *Binding) loaded() int {
	ep, _ := b.player.CurrentEpisode()

	b.mu.Lock()
	defer b.mu.Unlock()
	if ep.ID != b.loadedID {
		b.loadedID = ep.ID
		b.progress = 0
	}
	return b.progress
}

// Seek moves the audio element and updates the displayed progress at once,
// without waiting for the next timeupdate.
func (b *Binding) Seek(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	if ep, ok := b.player.CurrentEpisode(); ok && ep.Duration > 0 && seconds > ep.Duration {
		seconds = ep.Duration
	}
	b.setProgress(seconds)
	b.seekMedia(seconds)
}

// ResetProgress is called when the current episode changes.
func (b *Binding) ResetProgress() {
	b.setProgress(0)
}

func (b *Binding) setProgress(seconds int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress = seconds
}

func (b *Binding) seekMedia(seconds int) {
	b.mu.Lock()
	media := b.media
	b.mu.Unlock()

	if media == nil {
		return
	}
	if err := media.Seek(seconds); err != nil {
		zlog.Warn().Msgf("panel: failed to seek media element: %v", err)
	}
}

func toSeconds(t float64) int {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	return int(math.Floor(t))
}

// Controls holds the disabled state of each transport button.
type Controls struct {
	PlayDisabled     bool `json:"play_disabled"`
	PreviousDisabled bool `json:"previous_disabled"`
	NextDisabled     bool `json:"next_disabled"`
	ShuffleDisabled  bool `json:"shuffle_disabled"`
	LoopDisabled     bool `json:"loop_disabled"`
}

// View is the render model of the player panel.
type View struct {
	Empty        bool             `json:"empty"`
	Episode      *episode.Episode `json:"episode,omitempty"`
	IsPlaying    bool             `json:"is_playing"`
	IsLooping    bool             `json:"is_looping"`
	IsShuffling  bool             `json:"is_shuffling"`
	Mode         playback.Mode    `json:"mode"`
	Progress     int              `json:"progress"`
	ProgressText string           `json:"progress_text"`
	Duration     int              `json:"duration"`
	DurationText string           `json:"duration_text"`
	Controls     Controls         `json:"controls"`
}

// View builds the panel render model from the current store state.
func (b *Binding) View() View {
	return BuildView(b.player.Snapshot(), b.Progress())
}

// BuildView builds the panel render model from a store snapshot.
func BuildView(s playback.State, progress int) View {
	v := View{
		IsPlaying:    s.IsPlaying,
		IsLooping:    s.IsLooping,
		IsShuffling:  s.IsShuffling,
		Mode:         s.Mode,
		ProgressText: format.Clock(0),
		DurationText: format.Clock(0),
	}

	ep, ok := s.Current()
	if !ok {
		v.Empty = true
		v.Controls = Controls{
			PlayDisabled:     true,
			PreviousDisabled: true,
			NextDisabled:     true,
			ShuffleDisabled:  true,
			LoopDisabled:     true,
		}
		return v
	}

	v.Episode = &ep
	v.Progress = progress
	v.ProgressText = format.Clock(progress)
	v.Duration = ep.Duration
	v.DurationText = format.Clock(ep.Duration)
	v.Controls = Controls{
		PreviousDisabled: !s.HasPrevious,
		NextDisabled:     !s.HasNext,
		ShuffleDisabled:  len(s.Episodes) <= 1,
	}
	return v
}
