// services/room_directory_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomDirectory_RegisterAndResolve(t *testing.T) {
	dir := NewRoomDirectory()

	require.NoError(t, dir.Register("AB12CD", "match-1"))

	matchID, err := dir.Resolve("AB12CD")
	require.NoError(t, err)
	assert.Equal(t, "match-1", matchID)
	assert.Equal(t, 1, dir.Len())
}

func TestRoomDirectory_CaseInsensitiveLookup(t *testing.T) {
	dir := NewRoomDirectory()
	require.NoError(t, dir.Register("AB12CD", "match-1"))

	for _, code := range []string{"ab12cd", "Ab12Cd", "AB12CD", " ab12cd "} {
		matchID, err := dir.Resolve(code)
		require.NoError(t, err, "code %q", code)
		assert.Equal(t, "match-1", matchID)
	}
}

func TestRoomDirectory_CaseInsensitiveRegister(t *testing.T) {
	dir := NewRoomDirectory()
	require.NoError(t, dir.Register("ab12cd", "match-1"))

	matchID, err := dir.Resolve("AB12CD")
	require.NoError(t, err)
	assert.Equal(t, "match-1", matchID)
}

func TestRoomDirectory_NotFound(t *testing.T) {
	dir := NewRoomDirectory()

	_, err := dir.Resolve("ZZZZZZ")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomDirectory_InvalidCode(t *testing.T) {
	dir := NewRoomDirectory()

	assert.ErrorIs(t, dir.Register("SHORT", "match-1"), ErrInvalidRoomCode)
	assert.ErrorIs(t, dir.Register("TOOLONG1", "match-1"), ErrInvalidRoomCode)
	assert.ErrorIs(t, dir.Register("AB-2CD", "match-1"), ErrInvalidRoomCode)
	assert.Equal(t, 0, dir.Len())
}

func TestRoomDirectory_RegisterOverwrites(t *testing.T) {
	dir := NewRoomDirectory()
	require.NoError(t, dir.Register("AB12CD", "match-1"))
	require.NoError(t, dir.Register("AB12CD", "match-2"))

	matchID, err := dir.Resolve("AB12CD")
	require.NoError(t, err)
	assert.Equal(t, "match-2", matchID)
	assert.Equal(t, 1, dir.Len())
}

func TestRoomDirectory_CodeFor(t *testing.T) {
	dir := NewRoomDirectory()
	require.NoError(t, dir.Register("AB12CD", "match-1"))

	code, ok := dir.CodeFor("match-1")
	assert.True(t, ok)
	assert.Equal(t, "AB12CD", code)

	_, ok = dir.CodeFor("match-2")
	assert.False(t, ok)
}

func TestRoomDirectory_Evict(t *testing.T) {
	dir := NewRoomDirectory()
	require.NoError(t, dir.Register("AB12CD", "match-1"))
	require.NoError(t, dir.Register("EF34GH", "match-2"))

	assert.Equal(t, 0, dir.Evict(time.Now().Add(-time.Hour)))
	assert.Equal(t, 2, dir.Len())

	assert.Equal(t, 2, dir.Evict(time.Now().Add(time.Hour)))
	assert.Equal(t, 0, dir.Len())

	_, err := dir.Resolve("AB12CD")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
