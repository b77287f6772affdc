package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/kralgram/kralgram/room"
	"github.com/kralgram/kralgram/store"
)

// MembershipDirectory enumerates the members of a group room at dispatch
// time. Backed by the group store.
type MembershipDirectory interface {
	MembersOf(ctx context.Context, roomID string) ([]string, error)
}

// Publisher mirrors persisted messages to an external stream. Optional;
// failures are logged, never surfaced, and never block the fanout path.
type Publisher interface {
	Publish(ctx context.Context, m *store.Message) error
}

// Router is the protocol state machine. It is stateless between events:
// everything durable lives in the message store, everything transient in the
// registry.
type Router struct {
	messages store.IMessageStore
	members  MembershipDirectory
	registry *Registry
	firehose Publisher

	now   func() time.Time
	newID func() string
}

// NewRouter wires the router. firehose may be nil.
func NewRouter(messages store.IMessageStore, members MembershipDirectory, registry *Registry, firehose Publisher) *Router {
	return &Router{
		messages: messages,
		members:  members,
		registry: registry,
		firehose: firehose,
		now:      time.Now,
		newID:    uuid.New,
	}
}

func validKind(kind string) bool {
	switch kind {
	case store.KindText, store.KindImage, store.KindVideo, store.KindVoice:
		return true
	}
	return false
}

// HandleMessage persists a new message and fans it out. Persistence must
// succeed before any delivery attempt; a persistence error aborts the event
// and is reported to the originating connection only. Delivery failures are
// non-fatal: the message stays durably readable via history.
func (rt *Router) HandleMessage(ctx context.Context, senderID string, req *ClientMsg) error {
	if req.TargetID == "" {
		return fmt.Errorf("message: missing target_id")
	}
	if req.Content == "" {
		return fmt.Errorf("message: missing content")
	}
	kind := req.Kind
	if kind == "" {
		kind = store.KindText
	}
	if !validKind(kind) {
		return fmt.Errorf("message: unknown kind %q", kind)
	}

	m := &store.Message{
		ID:         rt.newID(),
		RoomID:     room.Resolve(req.TargetID, req.IsGroup, senderID),
		SenderID:   senderID,
		Content:    req.Content,
		Kind:       kind,
		Status:     store.StatusSent,
		CreateTime: rt.now(),
	}

	if err := rt.messages.Append(ctx, m); err != nil {
		return err
	}
	messagesRouted.Inc()

	payload := newMessagePayload(m, req.IsGroup)

	// Echo first so the sender's UI learns the server-assigned id and
	// timestamp.
	rt.registry.Deliver(senderID, payload)

	if req.IsGroup {
		members, err := rt.members.MembersOf(ctx, req.TargetID)
		if err != nil {
			// The message is already durable; fanout is best-effort.
			glog.Errorf("HandleMessage(): members lookup failed, room: %s, err: %v", req.TargetID, err)
		}
		for _, uid := range members {
			if uid == senderID {
				continue
			}
			rt.registry.Deliver(uid, payload)
		}
	} else {
		rt.registry.Deliver(req.TargetID, payload)
	}

	if rt.firehose != nil {
		if err := rt.firehose.Publish(ctx, m); err != nil {
			glog.Errorf("HandleMessage(): firehose publish failed, msg: %s, err: %v", m.ID, err)
		}
	}
	return nil
}

// HandleRead marks a message seen and notifies the original sender. The
// notified user is always the sender id stored with the message, never the
// one the client supplied, so a spoofed or stale receipt cannot redirect the
// status update.
func (rt *Router) HandleRead(ctx context.Context, readerID string, req *ClientMsg) error {
	if req.MsgID == "" {
		return fmt.Errorf("read: missing msg_id")
	}

	senderID, err := rt.messages.UpdateStatus(ctx, req.MsgID, store.StatusSeen)
	if err != nil {
		return err
	}
	readReceipts.Inc()

	if req.SenderID != "" && req.SenderID != senderID {
		glog.Warningf("HandleRead(): client sender_id %q disagrees with stored %q, msg: %s, reader: %s",
			req.SenderID, senderID, req.MsgID, readerID)
	}

	rt.registry.Deliver(senderID, statusUpdatePayload(req.MsgID, store.StatusSeen))
	return nil
}
