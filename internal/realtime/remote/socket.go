package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ephemeral-chat/internal/proto"
)

var (
	// ErrSocketClosed is returned for requests cut short by a dropped connection.
	ErrSocketClosed = errors.New("socket closed")

	errChannelLeft = errors.New("channel unsubscribed before join")
)

const leaveTimeout = 2 * time.Second

// socket multiplexes channels over one WebSocket. The connection is dialled when the
// first channel attaches and closed when the last one detaches.
type socket struct {
	url         string
	tokens      func(context.Context) (string, error)
	joinTimeout time.Duration
	log         *zerolog.Logger

	ref    atomic.Uint64
	dialMu sync.Mutex

	mu       sync.Mutex
	cur      *connection
	channels map[string]*Channel
}

// connection is one dialled WebSocket and its in-flight requests.
type connection struct {
	ws      *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	pending map[string]chan proto.OutboundFrame
}

func newSocket(url string, tokens func(context.Context) (string, error), joinTimeout time.Duration, logger *zerolog.Logger) *socket {
	return &socket{
		url:         url,
		tokens:      tokens,
		joinTimeout: joinTimeout,
		log:         logger,
		channels:    make(map[string]*Channel),
	}
}

func (s *socket) nextRef() string {
	return strconv.FormatUint(s.ref.Add(1), 10)
}

// attach registers ch and returns a live connection, dialling if needed. A channel
// that was unsubscribed in the meantime is refused.
func (s *socket) attach(ctx context.Context, ch *Channel) (*connection, error) {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	if !ch.isJoining() {
		return nil, errChannelLeft
	}

	s.mu.Lock()
	conn := s.cur
	s.mu.Unlock()

	if conn == nil {
		var err error
		conn, err = s.dial(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cur = conn
		s.mu.Unlock()
	}

	s.mu.Lock()
	if !ch.isJoining() {
		empty := len(s.channels) == 0
		if empty && s.cur == conn {
			s.cur = nil
		}
		s.mu.Unlock()
		if empty {
			s.shutdown(conn, websocket.StatusNormalClosure, "no channels")
		}
		return nil, errChannelLeft
	}
	s.channels[ch.topic] = ch
	s.mu.Unlock()
	return conn, nil
}

func (s *socket) dial(ctx context.Context) (*connection, error) {
	token, err := s.tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("socket token: %w", err)
	}

	ws, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	conn := &connection{
		ws:      ws,
		ctx:     connCtx,
		cancel:  cancel,
		pending: make(map[string]chan proto.OutboundFrame),
	}
	go s.readLoop(conn)

	if _, err := s.request(ctx, conn, proto.InboundTypeHello, proto.HelloData{
		Token:    token,
		Protocol: proto.ProtocolVersion,
	}); err != nil {
		s.shutdown(conn, websocket.StatusNormalClosure, "hello failed")
		return nil, fmt.Errorf("hello: %w", err)
	}

	s.log.Debug().Str("url", s.url).Msg("socket connected")
	return conn, nil
}

// detach forgets ch, sends leave if asked, and closes the connection once nothing is attached.
func (s *socket) detach(ch *Channel, leave bool) error {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.mu.Lock()
	if s.channels[ch.topic] == ch {
		delete(s.channels, ch.topic)
	}
	conn := s.cur
	empty := len(s.channels) == 0
	if empty {
		s.cur = nil
	}
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	var err error
	if leave {
		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		err = s.write(ctx, conn, proto.InboundTypeLeave, "", proto.LeaveData{Topic: ch.topic})
		cancel()
	}
	if empty {
		s.shutdown(conn, websocket.StatusNormalClosure, "no channels")
	}
	return err
}

// request writes a frame and waits for the reply or error carrying the same ref.
func (s *socket) request(ctx context.Context, conn *connection, typ string, data any) (proto.OutboundFrame, error) {
	ref := s.nextRef()
	reply := make(chan proto.OutboundFrame, 1)

	s.mu.Lock()
	conn.pending[ref] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(conn.pending, ref)
		s.mu.Unlock()
	}()

	if err := s.write(ctx, conn, typ, ref, data); err != nil {
		return proto.OutboundFrame{}, err
	}

	select {
	case frame := <-reply:
		if frame.Error != nil {
			return frame, frame.Error
		}
		return frame, nil
	case <-ctx.Done():
		return proto.OutboundFrame{}, ctx.Err()
	case <-conn.ctx.Done():
		return proto.OutboundFrame{}, ErrSocketClosed
	}
}

func (s *socket) write(ctx context.Context, conn *connection, typ, ref string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn.ws, proto.Inbound{Type: typ, Ref: ref, Data: raw}); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

func (s *socket) readLoop(conn *connection) {
	for {
		var frame proto.OutboundFrame
		if err := wsjson.Read(conn.ctx, conn.ws, &frame); err != nil {
			s.dropped(conn, err)
			return
		}
		s.route(conn, frame)
	}
}

func (s *socket) route(conn *connection, frame proto.OutboundFrame) {
	switch frame.Type {
	case proto.OutboundTypeReply, proto.OutboundTypeError:
		s.mu.Lock()
		reply, ok := conn.pending[frame.Ref]
		s.mu.Unlock()
		if ok {
			reply <- frame
			return
		}
		if frame.Error != nil {
			s.log.Warn().Str("code", frame.Error.Code).Str("ref", frame.Ref).Msg(frame.Error.Msg)
		}
	case proto.OutboundTypeEvent:
		switch frame.Event {
		case proto.EventBroadcast:
			var data proto.EventBroadcastData
			if err := json.Unmarshal(frame.Data, &data); err != nil {
				s.log.Warn().Err(err).Msg("drop malformed broadcast frame")
				return
			}
			if ch := s.channel(data.Topic); ch != nil {
				ch.dispatchBroadcast(data.Event, data.Payload)
			}
		case proto.EventPresenceState:
			var data proto.EventPresenceStateData
			if err := json.Unmarshal(frame.Data, &data); err != nil {
				s.log.Warn().Err(err).Msg("drop malformed presence frame")
				return
			}
			if ch := s.channel(data.Topic); ch != nil {
				ch.dispatchPresence(data.State)
			}
		}
	}
}

func (s *socket) channel(topic string) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[topic]
}

// dropped handles a read failure. Only the current connection notifies channels.
func (s *socket) dropped(conn *connection, err error) {
	conn.cancel()

	s.mu.Lock()
	if s.cur != conn {
		s.mu.Unlock()
		return
	}
	s.cur = nil
	orphans := make([]*Channel, 0, len(s.channels))
	for topic, ch := range s.channels {
		orphans = append(orphans, ch)
		delete(s.channels, topic)
	}
	s.mu.Unlock()

	s.log.Warn().Err(err).Msg("socket dropped")
	for _, ch := range orphans {
		ch.closed(err)
	}
}

func (s *socket) shutdown(conn *connection, code websocket.StatusCode, reason string) {
	_ = conn.ws.Close(code, reason)
	conn.cancel()
}

func (s *socket) close() error {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.mu.Lock()
	conn := s.cur
	s.cur = nil
	s.channels = make(map[string]*Channel)
	s.mu.Unlock()

	if conn != nil {
		s.shutdown(conn, websocket.StatusNormalClosure, "client closed")
	}
	return nil
}
