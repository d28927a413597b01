package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir())
	s.cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	return s
}

func TestStore_SetGetDelete(t *testing.T) {
	s := newFileStore(t)

	require.NoError(t, s.Set(MailPasswordKey, "secreto"))

	got, err := s.Get(MailPasswordKey)
	require.NoError(t, err)
	assert.Equal(t, "secreto", got)

	require.NoError(t, s.Delete(MailPasswordKey))
	require.NoError(t, s.Delete(MailPasswordKey))

	_, err = s.Get(MailPasswordKey)
	assert.ErrorIs(t, err, ErrNotFound)
}
