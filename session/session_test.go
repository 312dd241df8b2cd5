package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	_, ok := s.Load()
	assert.False(t, ok, "fresh store must be empty")

	require.NoError(t, s.Save("room-1", "alice"))
	got, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, "room-1", got.RoomID)
	assert.Equal(t, "alice", got.Username)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, s.Save("room-2", "bob"))
	got, ok = s.Load()
	require.True(t, ok)
	assert.Equal(t, "room-2", got.RoomID, "save overwrites")
	assert.Equal(t, "bob", got.Username)

	require.NoError(t, s.Clear())
	_, ok = s.Load()
	assert.False(t, ok)

	require.NoError(t, s.Clear(), "clearing an empty store is fine")
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStore_StampsFreshTimestamp(t *testing.T) {
	s := NewMemoryStore()
	now := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return now }
	require.NoError(t, s.Save("r", "u"))

	got, ok := s.Load()
	require.True(t, ok)
	assert.True(t, got.CreatedAt.Equal(now))

	now = now.Add(time.Minute)
	require.NoError(t, s.Save("r", "u"))
	got, _ = s.Load()
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestMemoryStore_MalformedIsAbsent(t *testing.T) {
	s := NewMemoryStore()
	for _, raw := range []string{
		`not json`,
		`{"roomId":`,
		`{"roomId":"r1"}`,
		`{"username":"alice"}`,
		`{"roomId":7,"username":"alice"}`,
		`null`,
	} {
		s.SetRaw([]byte(raw))
		_, ok := s.Load()
		assert.False(t, ok, raw)
	}

	s.SetRaw([]byte(`{"roomId":"r1","username":"alice","timestamp":1700000000000}`))
	got, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), got.CreatedAt.UnixMilli())
}

func TestPebbleStore(t *testing.T) {
	s, err := OpenPebbleStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	testStore(t, s)
}

func TestPebbleStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenPebbleStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save("room-1", "alice"))
	require.NoError(t, s.Close())

	s, err = OpenPebbleStore(dir)
	require.NoError(t, err)
	defer s.Close()
	got, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, "room-1", got.RoomID)
}

func TestPebbleStore_MalformedIsAbsent(t *testing.T) {
	s, err := OpenPebbleStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.setRaw([]byte("{garbage")))
	_, ok := s.Load()
	assert.False(t, ok)
}

func TestOpenPebbleStore_EmptyDir(t *testing.T) {
	_, err := OpenPebbleStore("")
	assert.Error(t, err)
}

func TestSessionMatches(t *testing.T) {
	s := Session{RoomID: "r1", Username: "alice"}
	assert.True(t, s.Matches("r1"))
	assert.False(t, s.Matches("r2"))
	assert.False(t, Session{}.Matches(""))
}
