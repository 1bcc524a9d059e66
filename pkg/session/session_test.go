package session

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passkeep/passkeep/pkg/codec"
	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/store"
	"github.com/passkeep/passkeep/pkg/vaultfile"
)

var testPassword = []byte("a reasonable master password")

// cheapKDF keeps Argon2id fast in tests; the salt field is ignored by Create.
var cheapKDF = &crypto.KDFParams{Memory: 8 * 1024, Time: 1, Threads: 1}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.KDF == nil {
		opts.KDF = cheapKDF
	}
	return New(filepath.Join(t.TempDir(), "vault.pkv"), opts)
}

// createVault makes a vault, optionally seeds entries, and locks it again.
func createVault(t *testing.T, path string, titles ...string) {
	t.Helper()
	s := New(path, Options{KDF: cheapKDF})
	require.NoError(t, s.Create(testPassword))
	for _, title := range titles {
		_, err := s.Add(store.Entry{Title: title, Secret: []byte("secret-" + title)})
		require.NoError(t, err)
	}
	require.NoError(t, s.Lock(true))
}

func TestCreateUnlockRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path, "Bank")

	s := New(path, Options{})
	require.NoError(t, s.Unlock(testPassword))
	defer s.Lock(false)

	assert.Equal(t, StateUnlocked, s.State())
	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Bank", entries[0].Title)
	assert.Equal(t, []byte("secret-Bank"), entries[0].Secret)
}

func TestCreatePartialKDFOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")

	// Only the memory cost is overridden; the other costs must fall back to
	// the crypto defaults instead of persisting as zero.
	s := New(path, Options{KDF: &crypto.KDFParams{Memory: 16 * 1024}})
	require.NoError(t, s.Create(testPassword))
	require.NoError(t, s.Lock(true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	f, err := codec.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(16*1024), f.Header.KDF.Memory)
	assert.Equal(t, uint32(crypto.DefaultKDFTime), f.Header.KDF.Time)
	assert.Equal(t, uint8(crypto.DefaultKDFThreads), f.Header.KDF.Threads)

	s2 := New(path, Options{})
	require.NoError(t, s2.Unlock(testPassword))
	s2.Lock(false)
}

func TestCreateRefusesExistingVault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path)

	s := New(path, Options{KDF: cheapKDF})
	assert.ErrorIs(t, s.Create(testPassword), ErrVaultExists)
	assert.Equal(t, StateLocked, s.State())
}

func TestUnlockWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path, "Bank")

	s := New(path, Options{})
	err := s.Unlock([]byte("not the password"))
	assert.ErrorIs(t, err, ErrUnlockFailed)
	assert.Equal(t, StateLocked, s.State(), "failed unlock must unwind to Locked")

	// The same session must still accept the right password afterwards.
	require.NoError(t, s.Unlock(testPassword))
	s.Lock(false)
}

func TestUnlockMissingVault(t *testing.T) {
	s := newTestSession(t, Options{})
	assert.ErrorIs(t, s.Unlock(testPassword), ErrVaultNotFound)
}

func TestUnlockCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path, "Bank")

	// Flip a bit near the end, inside ciphertext or tag.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0x01
	require.NoError(t, os.WriteFile(path, data, 0600))

	s := New(path, Options{})
	err = s.Unlock(testPassword)
	assert.ErrorIs(t, err, ErrUnlockFailed, "corruption and wrong password must be indistinguishable")
}

func TestUnlockFutureFormatVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")

	salt, err := crypto.GenerateSalt()
	require.NoError(t, err)
	header := codec.Header{
		Version:   codec.FormatVersion + 1,
		CreatedAt: time.Now().UTC(),
		KDF:       crypto.KDFParams{Salt: salt, Memory: 8 * 1024, Time: 1, Threads: 1},
	}
	key, err := crypto.DeriveKey(testPassword, header.KDF)
	require.NoError(t, err)
	data, err := codec.Encode(header, key, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	s := New(path, Options{})
	err = s.Unlock(testPassword)
	assert.ErrorIs(t, err, codec.ErrUnsupportedVersion,
		"a newer format must be reported as such, not as a bad password")
	assert.NotErrorIs(t, err, ErrUnlockFailed)
	assert.Equal(t, StateLocked, s.State())
}

func TestUnlockGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	require.NoError(t, os.WriteFile(path, []byte("not a vault at all"), 0600))

	s := New(path, Options{})
	assert.ErrorIs(t, s.Unlock(testPassword), ErrUnlockFailed)
}

func TestUnlockEmptyPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path)

	s := New(path, Options{})
	assert.ErrorIs(t, s.Unlock(nil), crypto.ErrEmptyPassword)
}

func TestDoubleUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path)

	s := New(path, Options{})
	require.NoError(t, s.Unlock(testPassword))
	defer s.Lock(false)

	assert.ErrorIs(t, s.Unlock(testPassword), ErrAlreadyUnlocked)
}

func TestSaveRewritesWithFreshNonce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path, "Bank")

	s := New(path, Options{KeepBackups: -1})
	require.NoError(t, s.Unlock(testPassword))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, s.Save())
	after, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.False(t, bytes.Equal(before, after), "identical content must still re-encrypt to different bytes")
	require.NoError(t, s.Lock(false))

	// And saving is idempotent with respect to content.
	s2 := New(path, Options{})
	require.NoError(t, s2.Unlock(testPassword))
	defer s2.Lock(false)
	entries, err := s2.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Bank", entries[0].Title)
}

func TestSaveWhileLocked(t *testing.T) {
	s := newTestSession(t, Options{})
	assert.ErrorIs(t, s.Save(), ErrSessionLocked)
}

func TestLockFlushesDirtyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path)

	s := New(path, Options{})
	require.NoError(t, s.Unlock(testPassword))
	_, err := s.Add(store.Entry{Title: "Pending", Secret: []byte("x")})
	require.NoError(t, err)
	require.True(t, s.Dirty())

	require.NoError(t, s.Lock(true))
	assert.Equal(t, StateLocked, s.State())

	s2 := New(path, Options{})
	require.NoError(t, s2.Unlock(testPassword))
	defer s2.Lock(false)
	entries, err := s2.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Pending", entries[0].Title)
}

func TestLockDiscardsWhenAsked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path)

	s := New(path, Options{})
	require.NoError(t, s.Unlock(testPassword))
	_, err := s.Add(store.Entry{Title: "Ephemeral", Secret: []byte("x")})
	require.NoError(t, err)

	require.NoError(t, s.Lock(false))

	s2 := New(path, Options{})
	require.NoError(t, s2.Unlock(testPassword))
	defer s2.Lock(false)
	entries, err := s2.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries, "discarded mutations must not reach disk")
}

func TestLockIsIdempotent(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.Lock(true))
	require.NoError(t, s.Lock(true))
}

func TestEntryOpsRequireUnlocked(t *testing.T) {
	s := newTestSession(t, Options{})

	_, err := s.Add(store.Entry{Title: "x"})
	assert.ErrorIs(t, err, ErrSessionLocked)
	_, err = s.Entries()
	assert.ErrorIs(t, err, ErrSessionLocked)
	_, err = s.Find(store.Query{})
	assert.ErrorIs(t, err, ErrSessionLocked)
}

func TestIdleAutoLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path, "Bank")

	s := New(path, Options{IdleTimeout: 20 * time.Millisecond})
	require.NoError(t, s.Unlock(testPassword))

	time.Sleep(50 * time.Millisecond)

	_, err := s.Entries()
	assert.ErrorIs(t, err, ErrSessionLocked, "idle deadline must lock before the operation runs")
	assert.Equal(t, StateLocked, s.State())
}

func TestTouchExtendsIdleDeadline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path, "Bank")

	s := New(path, Options{IdleTimeout: 60 * time.Millisecond})
	require.NoError(t, s.Unlock(testPassword))
	defer s.Lock(false)

	for range 4 {
		time.Sleep(30 * time.Millisecond)
		s.Touch()
	}

	_, err := s.Entries()
	assert.NoError(t, err, "activity must keep the session alive past the raw timeout")
}

func TestIdleLockingDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path)

	s := New(path, Options{IdleTimeout: -1})
	require.NoError(t, s.Unlock(testPassword))
	defer s.Lock(false)

	_, ok := s.IdleDeadline()
	assert.False(t, ok)
	assert.False(t, s.ExpireIfIdle())
}

func TestChangePassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path, "Bank")

	s := New(path, Options{})
	require.NoError(t, s.Unlock(testPassword))
	newPassword := []byte("a different master password")
	require.NoError(t, s.ChangePassword(newPassword))
	require.NoError(t, s.Lock(true))

	old := New(path, Options{})
	assert.ErrorIs(t, old.Unlock(testPassword), ErrUnlockFailed, "old password must stop working immediately")

	s2 := New(path, Options{})
	require.NoError(t, s2.Unlock(newPassword))
	defer s2.Lock(false)
	entries, err := s2.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Bank", entries[0].Title)
}

func TestConcurrentUnlockReportsBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path)

	s := New(path, Options{})
	s.opMu.Lock() // simulate a transition in flight
	defer s.opMu.Unlock()

	assert.ErrorIs(t, s.Unlock(testPassword), ErrSessionBusy)
	assert.ErrorIs(t, s.Save(), ErrSessionBusy)
	assert.ErrorIs(t, s.Create(testPassword), ErrSessionBusy)
	assert.ErrorIs(t, s.ChangePassword(testPassword), ErrSessionBusy)
}

func TestSecondProcessCannotUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path)

	s1 := New(path, Options{})
	require.NoError(t, s1.Unlock(testPassword))
	defer s1.Lock(false)

	s2 := New(path, Options{})
	assert.ErrorIs(t, s2.Unlock(testPassword), vaultfile.ErrLocked)
}

func TestCrashLeavesLastCommitReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path, "Bank")

	// Abandon a session without locking; only the process lock file remains.
	s := New(path, Options{})
	require.NoError(t, s.Unlock(testPassword))
	_, err := s.Add(store.Entry{Title: "Lost", Secret: []byte("x")})
	require.NoError(t, err)
	s.wipe() // drops the flock without flushing, as a crashed process would

	s2 := New(path, Options{})
	require.NoError(t, s2.Unlock(testPassword))
	defer s2.Lock(false)
	entries, err := s2.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Bank", entries[0].Title, "uncommitted mutation gone, prior commit intact")
}

func TestWipeDestroysKeyMaterial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.pkv")
	createVault(t, path, "Bank")

	s := New(path, Options{})
	require.NoError(t, s.Unlock(testPassword))

	s.mu.Lock()
	key := s.key
	s.mu.Unlock()
	require.NotEmpty(t, key)

	require.NoError(t, s.Lock(false))
	for i, b := range key {
		assert.Zerof(t, b, "key byte %d not overwritten on lock", i)
	}
}
