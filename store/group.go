package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"
)

const (
	insertRoomSQL    = "INSERT INTO rooms (id,name,invite_code,create_time) VALUES (?,?,?,?)"
	insertMemberSQL  = "INSERT IGNORE INTO room_members (room_id,user_id,join_time) VALUES (?,?,?)"
	groupByInviteSQL = "SELECT id,name,invite_code FROM rooms WHERE invite_code=?"
	membersOfSQL     = "SELECT user_id FROM room_members WHERE room_id=?"
	groupsOfSQL      = "SELECT r.id,r.name,r.invite_code FROM rooms AS r, room_members AS m " +
		"WHERE m.user_id=? AND m.room_id=r.id ORDER BY r.create_time ASC"
)

const inviteCodeLen = 8

// groupStore implements IGroupStore on MySQL.
type groupStore struct {
	*sql.DB
}

func NewGroupStore(db *sql.DB) IGroupStore {
	return &groupStore{db}
}

func newInviteCode() string {
	return strings.ReplaceAll(uuid.New(), "-", "")[:inviteCodeLen]
}

func (s *groupStore) CreateGroup(ctx context.Context, name, ownerID string) (*Group, error) {
	g := &Group{
		ID:         uuid.New(),
		Name:       name,
		InviteCode: newInviteCode(),
	}

	now := time.Now()
	if err := withTx(ctx, s.DB, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertRoomSQL, g.ID, g.Name, g.InviteCode, now); err != nil {
			glog.Errorf("insert room exec err: %v", err)
			return err
		}
		// The creator is the first member.
		if _, err := tx.ExecContext(ctx, insertMemberSQL, g.ID, ownerID, now); err != nil {
			glog.Errorf("insert member exec err: %v", err)
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *groupStore) JoinGroup(ctx context.Context, inviteCode, userID string) (*Group, error) {
	g, err := s.GroupByInvite(ctx, inviteCode)
	if err != nil {
		return nil, err
	}

	if _, err := s.ExecContext(ctx, insertMemberSQL, g.ID, userID, time.Now()); err != nil {
		glog.Errorf("join group exec err: %v", err)
		return nil, err
	}
	return g, nil
}

func (s *groupStore) GroupByInvite(ctx context.Context, inviteCode string) (*Group, error) {
	var g Group
	row := s.QueryRowContext(ctx, groupByInviteSQL, inviteCode)
	if err := row.Scan(&g.ID, &g.Name, &g.InviteCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidInvite
		}
		glog.Errorf("group by invite scan err: %v", err)
		return nil, err
	}
	return &g, nil
}

func (s *groupStore) MembersOf(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.QueryContext(ctx, membersOfSQL, roomID)
	if err != nil {
		glog.Errorf("members query err: %v", err)
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			glog.Errorf("members scan err: %v", err)
			return nil, err
		}
		members = append(members, uid)
	}
	return members, rows.Err()
}

func (s *groupStore) GroupsOf(ctx context.Context, userID string) ([]*Group, error) {
	rows, err := s.QueryContext(ctx, groupsOfSQL, userID)
	if err != nil {
		glog.Errorf("groups query err: %v", err)
		return nil, err
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.InviteCode); err != nil {
			glog.Errorf("groups scan err: %v", err)
			return nil, err
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}
