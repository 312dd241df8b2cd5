package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/ephemeral-chat/client"
	"github.com/gosuda/ephemeral-chat/protocol"
)

// statusSource is the read-only side of client.Manager.
type statusSource interface {
	State() client.State
	Attempts() int
	RoomID() string
	Username() string
	Roster() []string
	Transcript() []protocol.Message
}

type statusReport struct {
	State            string   `json:"state"`
	Attempts         int      `json:"attempts"`
	RoomID           string   `json:"roomId"`
	Username         string   `json:"username"`
	Roster           []string `json:"roster"`
	TranscriptLength int      `json:"transcriptLength"`
}

// newStatusHandler builds the local status router using chi.
func newStatusHandler(src statusSource) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		roster := src.Roster()
		if roster == nil {
			roster = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusReport{
			State:            src.State().String(),
			Attempts:         src.Attempts(),
			RoomID:           src.RoomID(),
			Username:         src.Username(),
			Roster:           roster,
			TranscriptLength: len(src.Transcript()),
		})
	})
	return r
}

// serveStatus runs the status server on 127.0.0.1:port until ctx ends.
func serveStatus(ctx context.Context, port int, src statusSource) {
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           newStatusHandler(src),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Info().Msgf("[chat] status at http://127.0.0.1:%d/status", port)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Msg("[chat] status server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("[chat] status server shutdown error")
		}
	}()
}
