package notify

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the client
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the client
	pongWait = 60 * time.Second

	// Send pings to client with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// ErrClosed is returned by Send after the connection has gone away.
var ErrClosed = errors.New("subscriber connection closed")

// WSSubscriber adapts a websocket connection to Subscriber.
type WSSubscriber struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWSSubscriber wraps conn.
func NewWSSubscriber(conn *websocket.Conn) *WSSubscriber {
	return &WSSubscriber{
		conn: conn,
		done: make(chan struct{}),
	}
}

// Send writes msg as one text frame.
func (s *WSSubscriber) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// Serve keeps the connection open until the client goes away. Client
// messages of any size are read and discarded. The connection is closed on return.
func (s *WSSubscriber) Serve() {
	go s.pingLoop()
	defer s.Close()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, r, err := s.conn.NextReader()
		if err != nil {
			return
		}
		if _, err := io.Copy(io.Discard, r); err != nil {
			return
		}
	}
}

// Close closes the underlying connection. It is safe to call more than once.
func (s *WSSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return s.conn.Close()
}

func (s *WSSubscriber) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.mu.Unlock()
			if err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

var _ Subscriber = (*WSSubscriber)(nil)
