package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingStream struct {
	mu       sync.Mutex
	received []*Notification
	err      error
	block    chan struct{}
}

func (s *recordingStream) Send(n *Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, n)
	return s.err
}

func (s *recordingStream) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func TestManager_BroadcastReachesAllSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := NewManager()
	a, b := &recordingStream{}, &recordingStream{}
	m.Subscribe(a)
	m.Subscribe(b)
	require.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(&Notification{Type: TypeState, Event: "episode_changed"})

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, uint64(1), a.received[0].SequenceNo)
}

func TestManager_SequenceNumbersIncrease(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	m.Subscribe(s)

	first := m.NextSequenceNo()
	m.Broadcast(&Notification{Type: TypeCommand, Command: "play"})

	require.Equal(t, 1, s.count())
	assert.Greater(t, s.received[0].SequenceNo, first)
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	id := m.Subscribe(s)
	m.Unsubscribe(id)

	m.Broadcast(&Notification{Type: TypeState})
	assert.Equal(t, 0, s.count())
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_SlowSubscriberDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := NewManager()
	m.sendTimeout = 20 * time.Millisecond

	slow := &recordingStream{block: make(chan struct{})}
	fast := &recordingStream{}
	m.Subscribe(slow)
	m.Subscribe(fast)

	start := time.Now()
	m.Broadcast(&Notification{Type: TypeState})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, fast.count())

	close(slow.block)
	assert.Eventually(t, func() bool { return slow.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestManager_SendErrorIsIgnored(t *testing.T) {
	m := NewManager()
	m.Subscribe(&recordingStream{err: errors.New("client went away")})

	assert.NotPanics(t, func() { m.Broadcast(&Notification{Type: TypeState}) })
}

func TestManager_SendToUnknownSubscriber(t *testing.T) {
	m := NewManager()
	assert.NoError(t, m.Send("missing", &Notification{}))
}

func TestManager_Close(t *testing.T) {
	m := NewManager()
	m.Subscribe(&recordingStream{})
	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}
