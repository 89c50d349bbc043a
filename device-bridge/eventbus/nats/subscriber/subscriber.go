package subscriber

import (
	"context"
	"fmt"
	"strings"
	"sync"

	nats "github.com/nats-io/nats.go"
	"github.com/plgd-dev/device-bridge/device-bridge/eventbus/nats/client"
	"github.com/plgd-dev/device-bridge/device-bridge/events"
	"github.com/plgd-dev/device-bridge/pkg/log"
	"github.com/plgd-dev/kit/v2/codec/json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	deviceIDKey  = "deviceId"
	eventTypeKey = "eventType"
)

// Handler consumes the events received from the event bus.
type Handler interface {
	Handle(ctx context.Context, ev events.Event) error
}

type HandlerFunc func(ctx context.Context, ev events.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev events.Event) error {
	return f(ctx, ev)
}

// Subject returns the wildcard subject of device events: <prefix>.devices.*.events.*
func Subject(prefix string) string {
	return strings.Join([]string{prefix, "devices", "*", "events", "*"}, ".")
}

// DeviceEventSubject returns the subject where the events of the device are published.
func DeviceEventSubject(prefix, deviceID string, eventType events.EventType) string {
	return strings.Join([]string{prefix, "devices", deviceID, "events", string(eventType)}, ".")
}

// Subscriber receives device events published to nats and hands them to the handler.
type Subscriber struct {
	conn          *nats.Conn
	subject       string
	queueGroup    string
	pendingLimits client.PendingLimitsConfig
	handler       Handler
	logger        log.Logger

	lock sync.Mutex
	sub  *nats.Subscription
	ctx  context.Context
	stop context.CancelFunc
}

func New(conn *nats.Conn, subjectPrefix, queueGroup string, pendingLimits client.PendingLimitsConfig, handler Handler, logger log.Logger) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		conn:          conn,
		subject:       Subject(subjectPrefix),
		queueGroup:    queueGroup,
		pendingLimits: pendingLimits,
		handler:       handler,
		logger:        logger,
		ctx:           ctx,
		stop:          cancel,
	}
}

// Subscribe starts to receive events. Calling it repeatedly keeps the existing subscription.
func (s *Subscriber) Subscribe() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.sub != nil {
		return nil
	}
	sub, err := s.conn.QueueSubscribe(s.subject, s.queueGroup, s.handleMsg)
	if err != nil {
		return fmt.Errorf("cannot subscribe to %v: %w", s.subject, err)
	}
	if err = sub.SetPendingLimits(s.pendingLimits.MsgLimit, s.pendingLimits.BytesLimit); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("cannot set pending limits of %v: %w", s.subject, err)
	}
	if err = s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("cannot subscribe to %v: %w", s.subject, err)
	}
	s.sub = sub
	return nil
}

// Connected reports whether the connection to nats is established.
func (s *Subscriber) Connected() bool {
	return s.conn.IsConnected()
}

func (s *Subscriber) Close() error {
	s.stop()
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.sub == nil {
		return nil
	}
	err := s.sub.Unsubscribe()
	s.sub = nil
	if err != nil {
		return fmt.Errorf("cannot unsubscribe from %v: %w", s.subject, err)
	}
	return nil
}

func (s *Subscriber) handleMsg(msg *nats.Msg) {
	ev, err := DecodeEvent(msg.Subject, msg.Data)
	if err != nil {
		s.logger.Errorf("cannot decode event from %v: %v", msg.Subject, err)
		return
	}
	if err = s.handler.Handle(s.ctx, ev); err != nil {
		s.logger.Errorf("cannot handle event %v: %v", ev, err)
	}
}

// DecodeEvent decodes the json event. The device id and the event type which
// are missing in the payload are taken from the subject.
func DecodeEvent(subject string, data []byte) (events.Event, error) {
	if !gjson.ValidBytes(data) {
		return events.Event{}, status.Errorf(codes.InvalidArgument, "invalid json payload")
	}
	tokens := strings.Split(subject, ".")
	if len(tokens) < 5 || tokens[len(tokens)-4] != "devices" || tokens[len(tokens)-2] != "events" {
		return events.Event{}, status.Errorf(codes.InvalidArgument, "invalid subject('%v')", subject)
	}
	var err error
	if gjson.GetBytes(data, deviceIDKey).String() == "" {
		if data, err = sjson.SetBytes(data, deviceIDKey, tokens[len(tokens)-3]); err != nil {
			return events.Event{}, status.Errorf(codes.InvalidArgument, "cannot set %v: %v", deviceIDKey, err)
		}
	}
	eventType := gjson.GetBytes(data, eventTypeKey).String()
	if eventType == "" {
		eventType = tokens[len(tokens)-1]
	}
	et, err := events.ParseEventType(eventType)
	if err != nil {
		return events.Event{}, err
	}
	if data, err = sjson.SetBytes(data, eventTypeKey, string(et)); err != nil {
		return events.Event{}, status.Errorf(codes.InvalidArgument, "cannot set %v: %v", eventTypeKey, err)
	}
	var ev events.Event
	if err = json.Decode(data, &ev); err != nil {
		return events.Event{}, status.Errorf(codes.InvalidArgument, "cannot decode event: %v", err)
	}
	if err = ev.Validate(); err != nil {
		return events.Event{}, err
	}
	return ev, nil
}
