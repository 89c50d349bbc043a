package test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/plgd-dev/device-bridge/device-bridge/events"
	"github.com/stretchr/testify/require"
)

// Delivery is an envelope received by EventsServer.
type Delivery struct {
	Header   events.EventHeader
	Envelope events.Envelope
	Received time.Time
}

// EventsServer is a callback endpoint recording the delivered envelopes.
type EventsServer struct {
	server *httptest.Server
	ch     chan Delivery

	mutex    sync.Mutex
	attempts int
	statuses []int
	delay    time.Duration
}

func NewEventsServer(t *testing.T) *EventsServer {
	s := &EventsServer{
		ch: make(chan Delivery, 1024),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

// SetStatuses sets the status codes of the next responses, 200 is used afterwards.
func (s *EventsServer) SetStatuses(statuses ...int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.statuses = statuses
}

// SetDelay delays every response.
func (s *EventsServer) SetDelay(d time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.delay = d
}

func (s *EventsServer) Attempts() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.attempts
}

func (s *EventsServer) URL() string {
	return s.server.URL + "/events"
}

func (s *EventsServer) next() (int, time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.attempts++
	if len(s.statuses) == 0 {
		return http.StatusOK, s.delay
	}
	code := s.statuses[0]
	s.statuses = s.statuses[1:]
	return code, s.delay
}

func (s *EventsServer) handle(w http.ResponseWriter, r *http.Request) {
	code, delay := s.next()
	h, env, err := events.DecodeEnvelope(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		s.ch <- Delivery{Header: h, Envelope: env, Received: time.Now()}
	}
	w.WriteHeader(code)
}

// Wait returns the next delivered envelope.
func (s *EventsServer) Wait(t *testing.T) Delivery {
	select {
	case d := <-s.ch:
		return d
	case <-time.After(TEST_TIMEOUT):
		require.FailNow(t, "timeout waiting for delivery")
	}
	return Delivery{}
}

// RequireNoDelivery checks that nothing was delivered during the wait.
func (s *EventsServer) RequireNoDelivery(t *testing.T, wait time.Duration) {
	select {
	case d := <-s.ch:
		require.FailNowf(t, "unexpected delivery", "%v %v", d.Envelope.EventType, d.Envelope.DeviceID)
	case <-time.After(wait):
	}
}
