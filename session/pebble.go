package session

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/pebble/v2"
	"github.com/rs/zerolog/log"
)

// PebbleStore persists the session in a PebbleDB directory so it survives a
// client restart.
type PebbleStore struct {
	db  *pebble.DB
	now func() time.Time
}

// OpenPebbleStore opens (or creates) the store at dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	if dir == "" {
		return nil, errors.New("session: empty data path")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db, now: time.Now}, nil
}

func (s *PebbleStore) Save(roomID, username string) error {
	raw, err := encode(roomID, username, s.now())
	if err != nil {
		return err
	}
	return s.db.Set([]byte(Key), raw, pebble.Sync)
}

func (s *PebbleStore) Load() (Session, bool) {
	raw, closer, err := s.db.Get([]byte(Key))
	if err != nil {
		if !errors.Is(err, pebble.ErrNotFound) {
			log.Warn().Err(err).Msg("[session] read failed")
		}
		return Session{}, false
	}
	defer func() { _ = closer.Close() }()
	sess, ok := decode(raw)
	if !ok {
		log.Debug().Msg("[session] ignoring malformed entry")
	}
	return sess, ok
}

func (s *PebbleStore) Clear() error {
	return s.db.Delete([]byte(Key), pebble.Sync)
}

// Close flushes and closes the underlying database.
func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// setRaw writes bytes verbatim; tests use it to plant corrupt entries.
func (s *PebbleStore) setRaw(raw []byte) error {
	return s.db.Set([]byte(Key), raw, pebble.Sync)
}

// DefaultDir returns the per-terminal data directory. The parent process is
// the shell, so a restart from the same terminal finds the session while a
// new terminal starts clean.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "ephemeral-chat", "tty-"+strconv.Itoa(os.Getppid()))
}
