package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/ephemeral-chat/client"
	"github.com/gosuda/ephemeral-chat/roomapi"
)

// chat joins roomID as user and runs the terminal session until the user
// quits or leaves, the room closes, or the process is interrupted.
func chat(ctx context.Context, api *roomapi.Client, roomID, user string) error {
	store, closeStore := openStore()
	defer closeStore()

	room, err := api.Room(ctx, roomID)
	if errors.Is(err, roomapi.ErrRoomNotFound) {
		if sess, ok := store.Load(); ok && sess.Matches(roomID) {
			if cerr := store.Clear(); cerr != nil {
				log.Warn().Err(cerr).Msg("[session] clear stale session")
			}
		}
		return fmt.Errorf("room %s not found or no longer active", roomID)
	}
	if err != nil {
		return fmt.Errorf("fetch room: %w", err)
	}

	endpoint, err := client.EndpointURL(flagServer)
	if err != nil {
		return err
	}

	con := newConsole(os.Stdout, user, room, client.DefaultPolicy.MaxAttempts)
	m, err := client.New(client.Config{
		RoomID:   roomID,
		Username: user,
		Dialer:   &client.WebSocketDialer{URL: endpoint, PingInterval: flagPing},
		Store:    store,
		Handlers: con.handlers(),
	})
	if err != nil {
		return err
	}
	// Dispose keeps the saved session so `resume` can pick it up later.
	defer m.Dispose()

	if err := m.Connect(); err != nil {
		return err
	}
	con.printf("-- joined %s; /help lists commands", roomLabel(room))
	if room.IsHost(user) {
		con.printf("-- you are the host; /close ends the room for everyone")
	}

	watcher := client.NewVisibilityWatcher(m)
	go watcher.Watch(ctx, notifyVisibility(ctx))

	if flagStatusPort > 0 {
		serveStatus(ctx, flagStatusPort, m)
	}

	lines := readLines(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("[chat] interrupted; session kept")
			return nil
		case <-con.done():
			return nil
		case line, ok := <-lines:
			if !ok {
				log.Info().Msg("[chat] input closed; session kept")
				return nil
			}
			if con.handle(line, m, watcher) {
				return nil
			}
		}
	}
}

// readLines streams lines from r until EOF.
func readLines(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			out <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			log.Warn().Err(err).Msg("[chat] read input")
		}
	}()
	return out
}
