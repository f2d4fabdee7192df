// Package notification fans player notifications out to the event streams
// a visitor has open (one per browser tab).
package notification

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podcastr/internal/app/panel"
)

// Type is the notification type.
type Type string

const (
	TypeInitialState Type = "initial_state" // Sent once when a stream subscribes
	TypeState        Type = "state"         // Store changed
	TypeCommand      Type = "command"       // Command for the audio element
)

// Notification is one message on a visitor's event stream.
type Notification struct {
	SequenceNo uint64      `json:"sequence_no"`
	Type       Type        `json:"type"`
	Event      string      `json:"event,omitempty"`
	Command    string      `json:"command,omitempty"`
	Seconds    int         `json:"seconds,omitempty"`
	Panel      *panel.View `json:"panel,omitempty"`
}

// Stream is anything that can deliver a notification to one open tab.
type Stream interface {
	Send(*Notification) error
}

// Manager keeps the open streams of one visitor and stamps every
// notification it delivers with a monotonically increasing sequence number.
type Manager struct {
	seq atomic.Uint64

	mu      sync.RWMutex
	streams map[string]Stream

	// sendTimeout bounds how long Broadcast waits on a single stream.
	sendTimeout time.Duration
}

func NewManager() *Manager {
	return &Manager{
		streams:     map[string]Stream{},
		sendTimeout: 500 * time.Millisecond,
	}
}

// Subscribe registers stream and returns the id used to unsubscribe it.
func (m *Manager) Subscribe(stream Stream) string {
	id := uuid.NewString()

	m.mu.Lock()
	m.streams[id] = stream
	m.mu.Unlock()
	return id
}

func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	delete(m.streams, id)
	m.mu.Unlock()
}

// NextSequenceNo reserves a sequence number.
func (m *Manager) NextSequenceNo() uint64 {
	return m.seq.Add(1)
}

// Broadcast delivers n to every stream in parallel. A stream that has not
// accepted n within sendTimeout is skipped; its pending Send is left to
// finish on its own.
func (m *Manager) Broadcast(n *Notification) {
	n.SequenceNo = m.NextSequenceNo()

	targets := m.snapshot()
	if len(targets) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for id, stream := range targets {
		go func() {
			defer wg.Done()
			m.deliver(id, stream, n)
		}()
	}
	wg.Wait()
}

func (m *Manager) deliver(id string, stream Stream, n *Notification) {
	result := make(chan error, 1)
	go func() { result <- stream.Send(n) }()

	timer := time.NewTimer(m.sendTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			zlog.Debug().Err(err).Str("stream", id).Uint64("seq", n.SequenceNo).Msg("notification dropped")
		}
	case <-timer.C:
		zlog.Debug().Str("stream", id).Uint64("seq", n.SequenceNo).Msg("notification stream too slow, skipped")
	}
}

// Send delivers n to a single stream without stamping it. Unknown ids are
// ignored since the tab may already be gone.
func (m *Manager) Send(id string, n *Notification) error {
	m.mu.RLock()
	stream, ok := m.streams[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return stream.Send(n)
}

func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.streams)
}

// Close forgets every stream. The streams themselves are owned by their
// handlers and are not closed here.
func (m *Manager) Close() {
	m.mu.Lock()
	clear(m.streams)
	m.mu.Unlock()
}

func (m *Manager) snapshot() map[string]Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stream, len(m.streams))
	for id, s := range m.streams {
		out[id] = s
	}
	return out
}
