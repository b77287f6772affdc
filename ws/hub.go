package ws

import (
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/kralgram/kralgram/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The node serves its own UI; behind a reverse proxy the Origin
		// header does not match the backend host.
		return true
	},
}

// Hub accepts websocket connects and hands each authenticated user a
// Handler registered in the connection registry.
type Hub struct {
	authClient auth.Client
	router     *Router
	registry   *Registry
}

func NewHub(authClient auth.Client, router *Router, registry *Registry) *Hub {
	return &Hub{
		authClient: authClient,
		router:     router,
		registry:   registry,
	}
}

// ServeHTTP handles websocket requests from the peer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	uid, err := h.authClient.Auth(r)
	if err != nil {
		glog.Errorf("ServeHTTP(): authenticate error: %v", err)
		http.Error(w, "Authenticate error", http.StatusForbidden)
		return
	}

	// If the upgrade fails, Upgrade replies to the client with an HTTP error
	// response on its own.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("ServeHTTP(): upgrader.Upgrade error, uid: %s, err: %v", uid, err)
		return
	}

	handler := &Handler{
		uid:      uid,
		conn:     conn,
		router:   h.router,
		registry: h.registry,
		dataChan: make(chan *ServerMsg, sendQueueSize),
	}

	glog.V(5).Infof("ServeHTTP(): connection online, uid: %s, remote: %s", uid, r.RemoteAddr)
	h.registry.Register(uid, handler)

	go handler.recvLoop()
	go handler.sendLoop()
}

// Close terminates every live connection. Used on server shutdown.
func (h *Hub) Close() {
	glog.Infof("close connections ...")
	h.registry.Close()
	glog.Infof("close connections done")
}
