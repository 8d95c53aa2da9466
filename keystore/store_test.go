package keystore

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	words := []string{"birth", "pattern", "then", "forest"}

	s := NewStore(filepath.Join(t.TempDir(), "keys.json"))
	require.NoError(t, s.PutSecret(pub, words, []byte("hunter2")))

	got, err := s.GetSecret(pub, []byte("hunter2"))
	require.NoError(t, err)
	require.Equal(t, words, got)

	loaded, err := s.PublicKey()
	require.NoError(t, err)
	require.Equal(t, pub, loaded)
}

func TestStoreWrongPassword(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	s := NewStore(filepath.Join(t.TempDir(), "keys.json"))
	require.NoError(t, s.PutSecret(pub, []string{"secret", "words"}, []byte("right")))

	_, err = s.GetSecret(pub, []byte("wrong"))
	require.ErrorIs(t, err, ErrWrongPassword)
}

func TestStoreUnknownKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	s := NewStore(filepath.Join(t.TempDir(), "keys.json"))
	require.NoError(t, s.PutSecret(pub, []string{"secret"}, []byte("pass")))

	_, err = s.GetSecret(otherPub, []byte("pass"))
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestStoreMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = s.GetSecret(pub, []byte("pass"))
	require.Error(t, err)
}
