package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

type closeCause int

const (
	readError  closeCause = 1
	writeError closeCause = 2
	pingError  closeCause = 3
	badRequest closeCause = 4
	serverStop closeCause = 5
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 3 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 25 * time.Second

	// websocket max message size to read.
	readLimit = 4096

	// per-connection send queue size; Deliver drops on overflow.
	sendQueueSize = 16
)

// Handler owns one live websocket connection for one user. Inbound events
// are processed synchronously in recvLoop, so events from one connection are
// never reordered; events from different connections interleave freely at
// the store and registry.
type Handler struct {
	mu sync.Mutex

	uid      string
	conn     *websocket.Conn
	router   *Router
	registry *Registry

	dataChan chan *ServerMsg
	closing  bool
}

// close marks the handler closing and closes dataChan. It never writes to
// the socket itself: sendLoop is the sole writer and sends the close frame
// when it drains the closed channel.
func (h *Handler) close(cause closeCause) {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return
	}
	h.closing = true
	close(h.dataChan)
	h.mu.Unlock()

	if cause != serverStop {
		glog.V(5).Infof("connection closed, cause: %d, uid: %s", cause, h.uid)
		h.registry.Deregister(h.uid, h)
	}
}

// tryAppend enqueues msg without blocking. Returns false when the handler is
// closing or the queue is full; the caller drops the payload.
func (h *Handler) tryAppend(msg *ServerMsg) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	select {
	case h.dataChan <- msg:
		return true
	default:
		return false
	}
}

func (h *Handler) recvLoop() {
	defer glog.V(5).Infof("recvLoop(): exited, uid: %s", h.uid)

	h.conn.SetReadLimit(readLimit)
	h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(string) error {
		h.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, msg, err := h.conn.ReadMessage()
		if err != nil {
			glog.V(5).Infof("recvLoop(): read error, uid: %s, err: %v", h.uid, err)
			h.close(readError)
			return
		}

		if msgType != websocket.TextMessage {
			glog.Errorf("recvLoop(): unexpected message type: %d, uid: %s", msgType, h.uid)
			h.close(badRequest)
			return
		}

		var req ClientMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			glog.Errorf("recvLoop(): message error: msg: %s, err: %v", string(msg), err)
			h.close(badRequest)
			return
		}

		// Per-event work runs synchronously here; a slow store call delays
		// only this connection.
		ctx := context.Background()
		switch req.Action {
		case ActionMessage:
			if err := h.router.HandleMessage(ctx, h.uid, &req); err != nil {
				glog.Errorf("recvLoop(): message event error, uid: %s, err: %v", h.uid, err)
				h.tryAppend(errorPayload(err))
			}
		case ActionRead:
			if err := h.router.HandleRead(ctx, h.uid, &req); err != nil {
				glog.Errorf("recvLoop(): read event error, uid: %s, err: %v", h.uid, err)
				h.tryAppend(errorPayload(err))
			}
		default:
			glog.Errorf("recvLoop(): unsupported action %q, uid: %s", req.Action, h.uid)
			h.close(badRequest)
			return
		}
	}
}

func (h *Handler) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		glog.V(5).Infof("sendLoop(): exited, uid: %s", h.uid)
	}()

	for {
		select {
		case msg, ok := <-h.dataChan:
			if !ok { // chan was closed: drained, say goodbye and drop the conn
				h.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = h.conn.WriteMessage(websocket.CloseMessage, []byte{})
				h.conn.Close()
				return
			}

			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteJSON(msg); err != nil {
				glog.Errorf("sendLoop(): error write message, uid: %s, err: %v", h.uid, err)
				h.close(writeError)
				h.conn.Close()
				return
			}
		case <-pingTicker.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				glog.Errorf("sendLoop(): error write ping, uid: %s, err: %v", h.uid, err)
				h.close(pingError)
				h.conn.Close()
				return
			}
		}
	}
}
