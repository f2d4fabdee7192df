// Package session keeps one player per visitor.
//
// A session owns a playback store, the panel binding for the visitor's audio
// element, and the notification fan-out for the visitor's open event streams.
// Sessions live in memory only and are discarded after an idle period.
package session

import (
	"sync"
	"time"

	"github.com/osa030/podcastr/internal/app/notification"
	"github.com/osa030/podcastr/internal/app/panel"
	"github.com/osa030/podcastr/internal/app/playback"
	"github.com/osa030/podcastr/internal/infra/metrics"
)

// Session is one visitor's player state.
type Session struct {
	ID        string
	CreatedAt time.Time

	player   *playback.Player
	panel    *panel.Binding
	notifier *notification.Manager

	mu       sync.Mutex
	lastSeen time.Time

	done chan struct{}
}

func newSession(id string, now time.Time, opts ...playback.Option) *Session {
	p := playback.NewPlayer(opts...)
	n := notification.NewManager()

	s := &Session{
		ID:        id,
		CreatedAt: now,
		player:    p,
		notifier:  n,
		lastSeen:  now,
		done:      make(chan struct{}),
	}
	s.panel = panel.New(p, &mediaCommander{notifier: n})

	go s.pump()
	return s
}

// Player returns the session's playback store.
func (s *Session) Player() *playback.Player {
	return s.player
}

// Panel returns the session's panel binding.
func (s *Session) Panel() *panel.Binding {
	return s.panel
}

// Notifications returns the session's notification manager.
func (s *Session) Notifications() *notification.Manager {
	return s.notifier
}

// Touch marks the session as used at t.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.After(s.lastSeen) {
		s.lastSeen = t
	}
}

// LastSeen returns the last time the session was used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Done is closed once the session has been discarded.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// InitialNotification builds the first message sent on a new event stream.
func (s *Session) InitialNotification() *notification.Notification {
	view := s.panel.View()
	return &notification.Notification{
		SequenceNo: s.notifier.NextSequenceNo(),
		Type:       notification.TypeInitialState,
		Panel:      &view,
	}
}

// close stops the player and waits for the event pump to drain.
func (s *Session) close() {
	s.player.Close()
	<-s.done
	s.notifier.Close()
}

// pump forwards store events to the panel and to the open event streams.
func (s *Session) pump() {
	defer close(s.done)

	for e := range s.player.Events() {
		metrics.PlayerTransitions.WithLabelValues(e.Type.String()).Inc()

		if e.Type == playback.EventEpisodeChanged || e.Type == playback.EventPlaylistEnded {
			s.panel.ResetProgress()
		}

		view := panel.BuildView(e.State, s.panel.Progress())
		s.notifier.Broadcast(&notification.Notification{
			Type:  notification.TypeState,
			Event: e.Type.String(),
			Panel: &view,
		})

		if e.Type != playback.EventModeChanged {
			s.panel.Sync()
		}
	}
}

// mediaCommander sends audio element commands to every open stream of the
// session.
type mediaCommander struct {
	notifier *notification.Manager
}

func (m *mediaCommander) Play() error {
	m.notifier.Broadcast(&notification.Notification{Type: notification.TypeCommand, Command: "play"})
	return nil
}

func (m *mediaCommander) Pause() error {
	m.notifier.Broadcast(&notification.Notification{Type: notification.TypeCommand, Command: "pause"})
	return nil
}

func (m *mediaCommander) Seek(seconds int) error {
	m.notifier.Broadcast(&notification.Notification{Type: notification.TypeCommand, Command: "seek", Seconds: seconds})
	return nil
}
