// Package roomapi talks to the chat server's room REST endpoints under
// /api/chat: room lookup, existence checks and room creation.
package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrRoomNotFound is returned when the server has no active room for an id.
var ErrRoomNotFound = errors.New("roomapi: room not found")

const (
	basePath       = "/api/chat"
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Room is the server's view of a chat room.
type Room struct {
	RoomID           string `json:"roomId"`
	RoomName         string `json:"roomName"`
	HostUsername     string `json:"hostUsername"`
	CreatedAt        string `json:"createdAt"`
	ParticipantCount int    `json:"participantCount"`
	Active           bool   `json:"active"`
}

// IsHost reports whether username created the room.
func (r Room) IsHost(username string) bool {
	return r.HostUsername != "" && r.HostUsername == username
}

type Client struct {
	base string
	http *http.Client
}

// New returns a client for the server at baseURL (scheme and host). A nil
// httpClient uses one with a request timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("server url has no host")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		base: u.Scheme + "://" + u.Host + basePath,
		http: httpClient,
	}, nil
}

// Room fetches room metadata. Missing or inactive rooms yield ErrRoomNotFound.
func (c *Client) Room(ctx context.Context, roomID string) (Room, error) {
	var room Room
	err := c.do(ctx, http.MethodGet, "/room/"+url.PathEscape(roomID), nil, &room)
	if err != nil {
		return Room{}, err
	}
	if !room.Active {
		return Room{}, ErrRoomNotFound
	}
	return room, nil
}

// Exists asks the server whether a room id is known.
func (c *Client) Exists(ctx context.Context, roomID string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	if err := c.do(ctx, http.MethodGet, "/check/"+url.PathEscape(roomID), nil, &resp); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return false, nil
		}
		return false, err
	}
	return resp.Exists, nil
}

// Create opens a new room hosted by username and returns its id.
func (c *Client) Create(ctx context.Context, roomName, username string) (string, error) {
	req := struct {
		RoomName string `json:"roomName"`
		Username string `json:"username"`
	}{roomName, username}
	var resp struct {
		RoomID string `json:"roomId"`
	}
	if err := c.do(ctx, http.MethodPost, "/create", req, &resp); err != nil {
		return "", err
	}
	if resp.RoomID == "" {
		return "", errors.New("roomapi: create returned no room id")
	}
	return resp.RoomID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRoomNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
