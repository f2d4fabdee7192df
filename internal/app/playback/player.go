package playback

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podcastr/internal/domain/episode"
	"github.com/osa030/podcastr/internal/domain/playlist"
)

// Errors
var (
	ErrIndexOutOfRange = errors.New("episode index out of range")
	ErrEmptyPlaylist   = errors.New("playlist is empty")
)

const defaultEventBuffer = 16

// Option configures a Player.
type Option func(*Player)

// WithRand sets the random source used by shuffle.
func WithRand(r *rand.Rand) Option {
	return func(p *Player) {
		p.rng = r
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(p *Player) {
		if n > 0 {
			p.eventBuffer = n
		}
	}
}

// Player holds the playback state for one visitor: the loaded playlist,
// the current index and the playing/looping/shuffling flags.
// currentIndex is always -1 or a valid index into playlist.
type Player struct {
	mu sync.RWMutex

	playlist     playlist.Playlist
	currentIndex int
	isPlaying    bool
	isLooping    bool
	isShuffling  bool

	rng         *rand.Rand
	eventBuffer int
	eventCh     chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPlayer creates an empty player.
func NewPlayer(opts ...Option) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		currentIndex: -1,
		eventBuffer:  defaultEventBuffer,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	p.eventCh = make(chan Event, p.eventBuffer)
	return p
}

// Events returns the event channel.
func (p *Player) Events() <-chan Event {
	return p.eventCh
}

// Play replaces the playlist with the single episode and starts it.
// Playing the episode that is already current restarts the playlist.
func (p *Player) Play(ep episode.Episode) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.playlist = playlist.New([]episode.Episode{ep})
	p.currentIndex = 0
	p.isPlaying = true

	zlog.Debug().Msgf("playback: play episode=%s", ep.ID)
	p.sendEventLocked(EventEpisodeChanged)
}

// PlayList replaces the playlist and starts the episode at index.
func (p *Player) PlayList(episodes []episode.Episode, index int) error {
	if len(episodes) == 0 {
		return ErrEmptyPlaylist
	}
	if index < 0 || index >= len(episodes) {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d, playlist length %d", index, len(episodes))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.playlist = playlist.New(episodes)
	p.currentIndex = index
	p.isPlaying = true

	zlog.Debug().Msgf("playback: play list size=%d index=%d", len(episodes), index)
	p.sendEventLocked(EventEpisodeChanged)
	return nil
}

// TogglePlay flips the playing flag.
func (p *Player) TogglePlay() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.isPlaying = !p.isPlaying
	p.sendEventLocked(EventStateChanged)
}

// ToggleLoop flips the looping flag.
func (p *Player) ToggleLoop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.isLooping = !p.isLooping
	p.sendEventLocked(EventModeChanged)
}

// ToggleShuffle flips the shuffling flag.
func (p *Player) ToggleShuffle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.isShuffling = !p.isShuffling
	p.sendEventLocked(EventModeChanged)
}

// SetPlayingState sets the playing flag directly. Used to mirror the
// play/pause events reported by the audio element.
func (p *Player) SetPlayingState(playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isPlaying == playing {
		return
	}
	p.isPlaying = playing
	p.sendEventLocked(EventStateChanged)
}

// HasNext reports whether PlayNext would land on an episode.
func (p *Player) HasNext() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasNextLocked()
}

func (p *Player) hasNextLocked() bool {
	return p.isShuffling || p.currentIndex+1 < p.playlist.Len()
}

// HasPrevious reports whether PlayPrevious would move.
func (p *Player) HasPrevious() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasPreviousLocked()
}

func (p *Player) hasPreviousLocked() bool {
	return p.currentIndex-1 >= 0
}

// PlayNext advances to the next episode. While shuffling any episode,
// including the current one, may be picked. Past the last episode the
// index becomes -1; the playing flag is left as is.
func (p *Player) PlayNext() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sendEventLocked(p.advanceLocked())
}

// PlayNextOnEnded is PlayNext for an episode that finished on its own: the
// element already reported pause, so the next episode is marked playing
// again. Past the last episode it behaves like PlayNext.
func (p *Player) PlayNextOnEnded() {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.advanceLocked()
	if t == EventEpisodeChanged {
		p.isPlaying = true
	}
	p.sendEventLocked(t)
}

func (p *Player) advanceLocked() EventType {
	if p.isShuffling && p.playlist.Len() > 0 {
		p.currentIndex = p.rng.Intn(p.playlist.Len())
		return EventEpisodeChanged
	}

	next := p.currentIndex + 1
	if p.playlist.InRange(next) {
		p.currentIndex = next
		return EventEpisodeChanged
	}

	p.currentIndex = -1
	zlog.Debug().Msg("playback: reached end of playlist")
	return EventPlaylistEnded
}

// PlayPrevious moves back one episode. At the first episode it does nothing.
func (p *Player) PlayPrevious() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasPreviousLocked() {
		return
	}
	p.currentIndex--
	p.sendEventLocked(EventEpisodeChanged)
}

// CurrentEpisode returns the current episode.
func (p *Player) CurrentEpisode() (episode.Episode, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playlist.At(p.currentIndex)
}

// CurrentIndex returns the current index, or -1.
func (p *Player) CurrentIndex() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentIndex
}

// IsPlaying returns the playing flag.
func (p *Player) IsPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isPlaying
}

// IsLooping returns the looping flag.
func (p *Player) IsLooping() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isLooping
}

// IsShuffling returns the shuffling flag.
func (p *Player) IsShuffling() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isShuffling
}

// Mode returns the derived playback mode.
func (p *Player) Mode() Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeLocked()
}

func (p *Player) modeLocked() Mode {
	switch {
	case !p.playlist.InRange(p.currentIndex):
		return ModeStopped
	case p.isPlaying:
		return ModePlaying
	default:
		return ModePaused
	}
}

// Snapshot returns a copy of the current state.
func (p *Player) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Player) snapshotLocked() State {
	eps := make([]episode.Episode, p.playlist.Len())
	copy(eps, p.playlist.Episodes)
	return State{
		Episodes:     eps,
		CurrentIndex: p.currentIndex,
		IsPlaying:    p.isPlaying,
		IsLooping:    p.isLooping,
		IsShuffling:  p.isShuffling,
		HasNext:      p.hasNextLocked(),
		HasPrevious:  p.hasPreviousLocked(),
		Mode:         p.modeLocked(),
	}
}

// Close releases the event channel. The player must not be used afterwards.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return
	}
	p.cancel()
	close(p.eventCh)
}

// sendEventLocked sends an event without blocking. When the channel is
// full the oldest queued event is replaced by this one, which carries the
// latest state, so the consumer always ends on the current state.
// Must be called with lock held.
func (p *Player) sendEventLocked(t EventType) {
	if p.ctx.Err() != nil {
		return
	}

	state := p.snapshotLocked()
	e := Event{Type: t, State: state}
	if ep, ok := state.Current(); ok {
		e.Episode = &ep
	}

	select {
	case p.eventCh <- e:
		return
	default:
	}

	select {
	case dropped := <-p.eventCh:
		e.Type = coalesce(dropped.Type, e.Type, e.Episode != nil)
	default:
	}
	select {
	case p.eventCh <- e:
		zlog.Debug().Msgf("playback: event channel full, coalesced into %s", e.Type)
	default:
		zlog.Warn().Msgf("playback: event channel full, dropping %s", e.Type)
	}
}

// coalesce picks the type for an event that also stands in for a dropped
// one. Episode-level changes win over state changes, which win over mode
// changes.
func coalesce(dropped, latest EventType, loaded bool) EventType {
	if rank(dropped) <= rank(latest) {
		return latest
	}
	if rank(dropped) == 2 {
		if loaded {
			return EventEpisodeChanged
		}
		return EventPlaylistEnded
	}
	return dropped
}

func rank(t EventType) int {
	switch t {
	case EventEpisodeChanged, EventPlaylistEnded:
		return 2
	case EventStateChanged:
		return 1
	default:
		return 0
	}
}
