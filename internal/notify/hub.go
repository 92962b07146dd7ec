package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("agencyhub.notify")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	userID uint
	conn   *websocket.Conn
	send   chan Message
}

// Hub fans messages out to every connection of a user.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[*client]struct{})}
}

func (h *Hub) Notify(userID uint, n Notification) {
	h.broadcast(userID, Message{Type: TypeToast, Notification: &n})
}

func (h *Hub) Refresh(userID uint, scope string) {
	h.broadcast(userID, Message{Type: TypeRefresh, Scope: scope})
}

// Connections returns the number of open sockets of userID.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) broadcast(userID uint, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients[userID] {
		select {
		case cl.send <- msg:
		default:
			logger.Warningf("dropping %s message for user %d: client too slow", msg.Type, userID)
		}
	}
}

// Serve upgrades the request and streams messages for userID until the
// client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("websocket upgrade failed: %v", err)
		return
	}
	cl := &client{userID: userID, conn: conn, send: make(chan Message, sendBuffer)}
	h.register(cl)

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[cl.userID] == nil {
		h.clients[cl.userID] = make(map[*client]struct{})
	}
	h.clients[cl.userID][cl] = struct{}{}
	logger.Debugf("user %d connected (%d open)", cl.userID, len(h.clients[cl.userID]))
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl.userID][cl]; !ok {
		return
	}
	delete(h.clients[cl.userID], cl)
	if len(h.clients[cl.userID]) == 0 {
		delete(h.clients, cl.userID)
	}
	close(cl.send)
}

// readPump only watches for the close; clients never send data.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		cl.conn.Close()
	}()
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("user %d socket closed: %v", cl.userID, err)
			}
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
