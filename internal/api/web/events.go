package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podcastr/internal/app/notification"
	"github.com/osa030/podcastr/internal/infra/metrics"
)

var (
	errStreamClosed = errors.New("event stream closed")
	errStreamFull   = errors.New("event stream full")
)

// eventStream queues notifications for one open SSE response.
type eventStream struct {
	ch        chan *notification.Notification
	done      chan struct{}
	closeOnce sync.Once
}

func newEventStream(buffer int) *eventStream {
	if buffer <= 0 {
		buffer = 16
	}
	return &eventStream{
		ch:   make(chan *notification.Notification, buffer),
		done: make(chan struct{}),
	}
}

// Send never blocks; a stream that falls behind loses messages.
func (e *eventStream) Send(n *notification.Notification) error {
	select {
	case <-e.done:
		return errStreamClosed
	default:
	}

	select {
	case e.ch <- n:
		return nil
	case <-e.done:
		return errStreamClosed
	default:
		return errStreamFull
	}
}

func (e *eventStream) close() {
	e.closeOnce.Do(func() { close(e.done) })
}

// handleEvents streams the session's notifications as Server-Sent Events
// until the client goes away or the session is discarded.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	stream := newEventStream(s.cfg.Session.EventBuffer)
	subID := sess.Notifications().Subscribe(stream)
	defer func() {
		sess.Notifications().Unsubscribe(subID)
		stream.close()
	}()

	metrics.EventStreams.Inc()
	defer metrics.EventStreams.Dec()

	zlog.Debug().Msgf("events: stream opened session=%s subscription=%s", sess.ID, subID)
	defer zlog.Debug().Msgf("events: stream closed session=%s subscription=%s", sess.ID, subID)

	if err := writeEvent(w, rc, sess.InitialNotification()); err != nil {
		return
	}

	keepAlive := time.NewTicker(s.cfg.KeepAlive())
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case n := <-stream.ch:
			if err := writeEvent(w, rc, n); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, n *notification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "failed to encode notification")
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", n.SequenceNo, n.Type, data); err != nil {
		return errors.Wrap(err, "failed to write event")
	}
	return rc.Flush()
}
