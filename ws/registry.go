package ws

import (
	"sync"

	"github.com/golang/glog"
)

// Registry is the in-memory map from user id to its single live connection
// handler. It holds no durable state: a restart starts empty and every user
// is momentarily offline.
type Registry struct {
	sync.RWMutex
	conns map[string]*Handler
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Handler),
	}
}

// Register installs h as the sole live connection for uid. A prior handler
// is silently replaced but not closed here; its own transport error path
// closes it and the compare-and-remove in Deregister keeps it from evicting
// the new one.
func (r *Registry) Register(uid string, h *Handler) {
	r.Lock()
	prev := r.conns[uid]
	r.conns[uid] = h
	r.Unlock()

	liveConnections.Set(float64(r.Len()))
	if prev != nil {
		glog.V(5).Infof("registry: superseded connection for uid %s", uid)
	}
}

// Deregister removes the entry for uid only if h is still the registered
// handler. Returns whether an entry was removed.
func (r *Registry) Deregister(uid string, h *Handler) bool {
	r.Lock()
	cur, ok := r.conns[uid]
	if ok && cur == h {
		delete(r.conns, uid)
	} else {
		ok = false
	}
	r.Unlock()

	liveConnections.Set(float64(r.Len()))
	return ok
}

// Deliver makes one best-effort, non-blocking attempt to push msg to uid's
// live connection. Returns whether a connection was present; a full send
// queue drops the payload. There is no retry and no buffering beyond the
// handler's channel: offline users read history on next load.
func (r *Registry) Deliver(uid string, msg *ServerMsg) bool {
	r.RLock()
	h := r.conns[uid]
	r.RUnlock()

	if h == nil {
		deliveries.WithLabelValues(deliveryOffline).Inc()
		return false
	}

	if h.tryAppend(msg) {
		deliveries.WithLabelValues(deliveryOK).Inc()
	} else {
		glog.V(5).Infof("registry: dropped payload for uid %s, send queue full", uid)
		deliveries.WithLabelValues(deliveryDropped).Inc()
	}
	return true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.conns)
}

// Close closes every live handler. Used on server shutdown.
func (r *Registry) Close() {
	r.RLock()
	handlers := make([]*Handler, 0, len(r.conns))
	for _, h := range r.conns {
		handlers = append(handlers, h)
	}
	r.RUnlock()

	for _, h := range handlers {
		h.close(serverStop)
	}
}
