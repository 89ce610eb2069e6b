package secrets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plain := []byte("SQLite format 3\x00 and then some pages")
	ct, err := Encrypt(plain, "hunter2")
	require.NoError(t, err)
	require.Len(t, ct, saltLen+nonceLen+len(plain)+16)
	assert.False(t, bytes.Contains(ct, plain))

	got, err := Decrypt(ct, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestEncryptUsesFreshSalt(t *testing.T) {
	a, err := Encrypt([]byte("x"), "pw")
	require.NoError(t, err)
	b, err := Encrypt([]byte("x"), "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a[:saltLen], b[:saltLen])
}

func TestDecryptWrongPassword(t *testing.T) {
	ct, err := Encrypt([]byte("ledger"), "right")
	require.NoError(t, err)
	_, err = Decrypt(ct, "wrong")
	require.ErrorIs(t, err, ErrDecryption)
}

func TestDecryptTruncated(t *testing.T) {
	_, err := Decrypt([]byte("short"), "pw")
	require.ErrorIs(t, err, ErrDecryption)

	ct, err := Encrypt([]byte("ledger"), "pw")
	require.NoError(t, err)
	ct[len(ct)-1] ^= 0xff
	_, err = Decrypt(ct, "pw")
	require.ErrorIs(t, err, ErrDecryption)
}

func TestEncryptRequiresPassword(t *testing.T) {
	_, err := Encrypt([]byte("x"), "")
	require.Error(t, err)
}

func TestCredentialStore(t *testing.T) {
	s, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Fetch(GitHubToken)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Store(GitHubToken, "ghp_secret"))
	require.NoError(t, s.Store(" Sync_Password ", "pw"))

	v, err := s.Fetch("GITHUB_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", v)
	assert.Equal(t, "pw", s.Lookup(SyncPassword, "MONEYSYNC_TEST_UNSET_ENV"))

	t.Setenv("MONEYSYNC_TEST_PASSWORD", "from-env")
	assert.Equal(t, "from-env", s.Lookup(SyncPassword, "MONEYSYNC_TEST_PASSWORD"))

	require.NoError(t, s.Delete(GitHubToken))
	_, err = s.Fetch(GitHubToken)
	require.ErrorIs(t, err, ErrNotFound)
}
