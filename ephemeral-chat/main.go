package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/ephemeral-chat/roomapi"
	"github.com/gosuda/ephemeral-chat/session"
)

var rootCmd = &cobra.Command{
	Use:               "ephemeral-chat",
	Short:             "Terminal client for ephemeral chat rooms with automatic reconnect",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

var createCmd = &cobra.Command{
	Use:   "create <room-name>",
	Short: "Create a room and join it as host",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join an existing room",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Rejoin the room saved by a previous run",
	Args:  cobra.NoArgs,
	RunE:  runResume,
}

var (
	flagServer     string
	flagDataPath   string
	flagUser       string
	flagStatusPort int
	flagPing       time.Duration
	flagNoPersist  bool
	flagDebug      bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServer, "server", envOr("CHAT_SERVER", "http://localhost:8080"), "chat server base URL (env CHAT_SERVER)")
	flags.StringVar(&flagDataPath, "data-path", envOr("CHAT_DATA", session.DefaultDir()), "directory holding the saved session (env CHAT_DATA)")
	flags.StringVar(&flagUser, "user", os.Getenv("CHAT_USER"), "display name (env CHAT_USER)")
	flags.IntVar(&flagStatusPort, "status-port", 0, "serve /healthz and /status on this local port (0 disables)")
	flags.DurationVar(&flagPing, "ping", 25*time.Second, "websocket keepalive interval (0 disables)")
	flags.BoolVar(&flagNoPersist, "no-persist", false, "keep the session in memory only")
	flags.BoolVar(&flagDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(createCmd, joinCmd, resumeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute chat command")
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if flagDebug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Str("client", uuid.NewString()[:8]).
		Logger()
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	user, err := requireUser()
	if err != nil {
		return err
	}
	api, err := roomapi.New(flagServer, nil)
	if err != nil {
		return err
	}
	name := SanitizeRoomName(args[0])
	if name == "" {
		return errors.New("room name is empty")
	}
	roomID, err := api.Create(ctx, name, user)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	log.Info().Str("room", roomID).Msgf("[chat] created room %q", name)
	return chat(ctx, api, roomID, user)
}

func runJoin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	user, err := requireUser()
	if err != nil {
		return err
	}
	api, err := roomapi.New(flagServer, nil)
	if err != nil {
		return err
	}
	roomID := strings.TrimSpace(args[0])
	exists, err := api.Exists(ctx, roomID)
	if err != nil {
		return fmt.Errorf("check room: %w", err)
	}
	if !exists {
		return fmt.Errorf("room %s does not exist", roomID)
	}
	return chat(ctx, api, roomID, user)
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagNoPersist {
		return errors.New("resume needs a persisted session; drop --no-persist")
	}
	store, err := session.OpenPebbleStore(flagDataPath)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	sess, ok := store.Load()
	if cerr := store.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("[session] close store")
	}
	if !ok {
		return errors.New("no saved session to resume")
	}
	api, err := roomapi.New(flagServer, nil)
	if err != nil {
		return err
	}
	log.Info().Str("room", sess.RoomID).Str("user", sess.Username).Time("since", sess.CreatedAt).Msg("[chat] resuming session")
	return chat(ctx, api, sess.RoomID, sess.Username)
}

func requireUser() (string, error) {
	user := SanitizeUsername(flagUser)
	if user == "" {
		return "", errors.New("a display name is required (--user or CHAT_USER)")
	}
	return user, nil
}

func openStore() (session.Store, func()) {
	if flagNoPersist {
		return session.NewMemoryStore(), func() {}
	}
	store, err := session.OpenPebbleStore(flagDataPath)
	if err != nil {
		log.Warn().Err(err).Msg("[session] open store failed; keeping the session in memory only")
		return session.NewMemoryStore(), func() {}
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("[session] store close error")
		}
	}
}
