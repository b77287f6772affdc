package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/golang/glog"
)

const (
	insertMsgSQL = "INSERT INTO messages (id,room_id,sender_id,content,kind,status,create_time) VALUES (?,?,?,?,?,?,?)"
	listRoomSQL  = "SELECT id,room_id,sender_id,content,kind,status,create_time FROM messages " +
		"WHERE room_id=? ORDER BY create_time ASC, seq ASC"
	lockMsgSQL   = "SELECT sender_id FROM messages WHERE id=? FOR UPDATE"
	setStatusSQL = "UPDATE messages SET status=? WHERE id=?"
)

// messageStore implements IMessageStore on MySQL.
type messageStore struct {
	*sql.DB
}

func NewMessageStore(db *sql.DB) IMessageStore {
	return &messageStore{db}
}

func (s *messageStore) Append(ctx context.Context, m *Message) error {
	_, err := s.ExecContext(ctx, insertMsgSQL,
		m.ID, m.RoomID, m.SenderID, m.Content, m.Kind, m.Status, m.CreateTime)
	if err != nil {
		if isDupKeyError(err) {
			return ErrDuplicateID
		}
		glog.Errorf("append message exec err: %v", err)
		return err
	}
	return nil
}

func (s *messageStore) ListByRoom(ctx context.Context, roomID string) ([]*Message, error) {
	rows, err := s.QueryContext(ctx, listRoomSQL, roomID)
	if err != nil {
		glog.Errorf("list room messages query err: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		var t time.Time
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.Kind, &m.Status, &t); err != nil {
			glog.Errorf("list room messages scan err: %v", err)
			return nil, err
		}
		m.CreateTime = t
		out = append(out, &m)
	}
	return out, rows.Err()
}

// UpdateStatus overwrites the status of a message. The row is locked first so
// the returned sender id and the write are consistent; a repeated update to
// the same status is a no-op.
func (s *messageStore) UpdateStatus(ctx context.Context, msgID, status string) (string, error) {
	var senderID string
	if err := withTx(ctx, s.DB, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, lockMsgSQL, msgID)
		if err := row.Scan(&senderID); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			glog.Errorf("lock message scan err: %v", err)
			return err
		}
		if _, err := tx.ExecContext(ctx, setStatusSQL, status, msgID); err != nil {
			glog.Errorf("set status exec err: %v", err)
			return err
		}
		return nil
	}); err != nil {
		return "", err
	}
	return senderID, nil
}
