// Package session persists the active room descriptor so a restarted client
// can rejoin the room it was in.
package session

import (
	"encoding/json"
	"time"
)

// Key is the storage key holding the active session.
const Key = "activeRoom"

// Session identifies which room and identity a connection belongs to.
type Session struct {
	RoomID    string
	Username  string
	CreatedAt time.Time
}

// Matches reports whether s belongs to roomID.
func (s Session) Matches(roomID string) bool {
	return roomID != "" && s.RoomID == roomID
}

// Store is the narrow get/set/clear contract shared by every component that
// reads or writes the active session.
type Store interface {
	// Save overwrites the stored session, stamping it with the current time.
	Save(roomID, username string) error
	// Load returns the stored session. Missing or malformed entries are
	// reported as absent.
	Load() (Session, bool)
	// Clear removes the stored session.
	Clear() error
}

// record is the persisted JSON layout.
type record struct {
	RoomID    string `json:"roomId"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

func encode(roomID, username string, now time.Time) ([]byte, error) {
	return json.Marshal(record{RoomID: roomID, Username: username, Timestamp: now.UnixMilli()})
}

func decode(raw []byte) (Session, bool) {
	if len(raw) == 0 {
		return Session{}, false
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Session{}, false
	}
	if r.RoomID == "" || r.Username == "" {
		return Session{}, false
	}
	return Session{RoomID: r.RoomID, Username: r.Username, CreatedAt: time.UnixMilli(r.Timestamp)}, true
}
