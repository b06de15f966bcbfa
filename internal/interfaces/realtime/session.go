package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/streetlift/meet-engine/internal/domain/judging"
)

type Role string

const (
	RoleJudge    Role = "judge"
	RoleDirector Role = "director"
	RoleViewer   Role = "viewer"
)

const (
	sendQueueSize  = 64
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 45 * time.Second
	maxMessageSize = 4096
)

// Session is one connected device. Delivery is independent per session: a
// full queue drops informational events and closes the session on critical
// ones, because a client that cannot keep up needs a fresh snapshot anyway.
type Session struct {
	ID        string
	Role      Role
	JudgeID   string
	JudgeRole judging.Role
	MeetCode  string

	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newSession(id string, role Role, meetCode string, conn *websocket.Conn) *Session {
	return &Session{
		ID:       id,
		Role:     role,
		MeetCode: meetCode,
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		closed:   make(chan struct{}),
	}
}

// enqueue hands a message to the write pump without blocking the publisher.
// It reports whether the session must be closed (critical backpressure).
func (s *Session) enqueue(msg []byte, critical bool) bool {
	select {
	case <-s.closed:
		return false
	default:
	}

	select {
	case s.send <- msg:
		return false
	default:
		return critical
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.closed)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}
