// Package protocol defines the JSON frames exchanged with the chat server.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MessageType names the kind of frame on the wire.
type MessageType string

const (
	TypeJoin       MessageType = "JOIN"
	TypeLeave      MessageType = "LEAVE"
	TypeChat       MessageType = "CHAT"
	TypeUserList   MessageType = "USER_LIST"
	TypeRoomClosed MessageType = "ROOM_CLOSED"
)

// MaxChatLength caps outbound chat text, counted in runes.
const MaxChatLength = 500

// rosterSeparator joins usernames in USER_LIST content.
const rosterSeparator = ", "

// ErrMalformed is returned for payloads that are not a protocol frame.
var ErrMalformed = errors.New("malformed protocol message")

// Message is the unit exchanged in both directions. Values are never mutated
// after construction; pass them by value.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	Sender  string      `json:"sender"`
	RoomID  string      `json:"roomId"`
	// Timestamp is set by the server ("2006-01-02 15:04:05") and omitted outbound.
	Timestamp string `json:"timestamp,omitempty"`
}

// Known reports whether t is one of the five protocol types.
func (t MessageType) Known() bool {
	switch t {
	case TypeJoin, TypeLeave, TypeChat, TypeUserList, TypeRoomClosed:
		return true
	}
	return false
}

// Decode parses a raw frame. Unknown types decode fine; callers decide
// whether to ignore them.
func Decode(raw []byte) (Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Message{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return m, nil
}

// Encode renders m as a single JSON frame without HTML escaping, so <, > and &
// reach the server untouched.
func Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// NewJoin builds the frame sent right after the socket opens.
func NewJoin(sender, roomID string) Message {
	return Message{Type: TypeJoin, Sender: sender, RoomID: roomID}
}

// NewLeave builds the frame sent on an explicit leave.
func NewLeave(sender, roomID string) Message {
	return Message{Type: TypeLeave, Sender: sender, RoomID: roomID}
}

// NewRoomClosed builds the host's close-room request.
func NewRoomClosed(sender, roomID string) Message {
	return Message{Type: TypeRoomClosed, Sender: sender, RoomID: roomID}
}

// NewChat builds a CHAT frame. The caller is expected to have passed text
// through ComposeChat first.
func NewChat(sender, roomID, text string) Message {
	return Message{Type: TypeChat, Content: text, Sender: sender, RoomID: roomID}
}

// ComposeChat trims user input and caps it at MaxChatLength runes. The
// second result is false when nothing is left to send.
func ComposeChat(input string) (string, bool) {
	text := strings.TrimSpace(input)
	if text == "" {
		return "", false
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:MaxChatLength]))
	}
	return text, text != ""
}

// ParseRoster splits USER_LIST content into usernames. Entries are trimmed,
// empties dropped and repeats collapsed; the server's order is kept.
func ParseRoster(content string) []string {
	parts := strings.Split(content, rosterSeparator)
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// JoinRoster is the inverse of ParseRoster, used by tests and fakes.
func JoinRoster(names []string) string {
	return strings.Join(names, rosterSeparator)
}
