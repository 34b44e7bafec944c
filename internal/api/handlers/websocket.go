package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	ws "github.com/homestay-reservations/backend/internal/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait / 2
	maxCommandSize = 4096
	replyBuffer    = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from the gateway's origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketUpgrade streams booking events to dashboards. The optional
// homestay_id query parameter subscribes the connection up front; clients
// can change subscriptions later with subscribe/unsubscribe commands.
func WebSocketUpgrade(hub *ws.Hub, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("WebSocket upgrade error: %v", err)
			return
		}

		s := &session{
			conn:    conn,
			hub:     hub,
			client:  ws.NewClient(hub),
			replies: make(chan []byte, replyBuffer),
			logger:  logger.WithField("remote", r.RemoteAddr),
		}
		if id := r.URL.Query().Get("homestay_id"); id != "" {
			s.client.Subscribe(id)
		}
		hub.Register(s.client)

		go s.write()
		go s.read()
	}
}

// session ties one websocket connection to its hub client.
type session struct {
	conn    *websocket.Conn
	hub     *ws.Hub
	client  *ws.Client
	replies chan []byte
	logger  logrus.FieldLogger
}

func (s *session) send(kind int, data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(kind, data)
}

// write forwards hub events and command replies, pinging when idle.
func (s *session) write() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		var err error
		select {
		case event, ok := <-s.client.Send():
			if !ok {
				s.send(websocket.CloseMessage, []byte{})
				return
			}
			err = s.send(websocket.TextMessage, event)
		case reply := <-s.replies:
			err = s.send(websocket.TextMessage, reply)
		case <-ticker.C:
			err = s.send(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// read handles subscription commands until the connection drops.
func (s *session) read() {
	defer func() {
		s.hub.Unregister(s.client)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxCommandSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warnf("WebSocket read error: %v", err)
			}
			return
		}

		reply, err := ws.HandleCommand(s.client, raw).JSON()
		if err != nil {
			s.logger.WithError(err).Debug("Failed to encode command reply")
			continue
		}
		select {
		case s.replies <- reply:
		default:
			s.logger.Debug("Reply buffer full, dropping reply")
		}
	}
}
