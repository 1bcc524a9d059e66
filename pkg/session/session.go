// Package session owns the lifetime of an unlocked vault: key derivation on
// unlock, the in-memory store while open, re-encryption on save, and secure
// wipe on lock.
//
// A Session is the handle every caller operates through; there is no
// process-wide vault state. The session never spawns goroutines of its own:
// idle auto-lock is driven either lazily (every guarded operation checks the
// idle deadline first) or by an external timer calling ExpireIfIdle.
package session

import (
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/passkeep/passkeep/internal/logger"
	"github.com/passkeep/passkeep/pkg/codec"
	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/store"
	"github.com/passkeep/passkeep/pkg/vaultfile"
)

// State is the lifecycle state of a session.
type State int

const (
	StateLocked State = iota
	StateUnlocking
	StateUnlocked
	StateLocking
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocking:
		return "unlocking"
	case StateUnlocked:
		return "unlocked"
	case StateLocking:
		return "locking"
	default:
		return "unknown"
	}
}

// DefaultIdleTimeout is the inactivity interval after which a session
// auto-locks. A negative Options.IdleTimeout disables idle locking entirely.
const DefaultIdleTimeout = 5 * time.Minute

// Options configures a session. The zero value is usable: default idle
// timeout, default backup retention, flush-on-lock, no logging.
type Options struct {
	// IdleTimeout is the inactivity interval before auto-lock.
	// 0 means DefaultIdleTimeout; negative disables idle locking.
	IdleTimeout time.Duration

	// KeepBackups is the number of rotating backups kept on save.
	// 0 means vaultfile.DefaultKeepBackups; negative keeps none.
	KeepBackups int

	// DiscardOnLock drops unsaved mutations on lock instead of flushing
	// them with an implicit save. The default (false) flushes, so neither
	// explicit nor idle locking silently loses data.
	DiscardOnLock bool

	// KDF overrides the Argon2id cost parameters for Create. The salt is
	// always generated fresh; only non-zero cost fields are taken, the rest
	// keep the crypto package defaults.
	KDF *crypto.KDFParams

	// Logger receives lifecycle events. Secrets are never logged.
	Logger *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout == 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.KeepBackups == 0 {
		o.KeepBackups = vaultfile.DefaultKeepBackups
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// Session manages one vault file. All methods are safe for concurrent use;
// unlock/save/change-password transitions are serialized and fail fast with
// ErrSessionBusy, Lock blocks so a wipe request always completes.
type Session struct {
	path string
	opts Options
	log  *logger.Logger

	// opMu serializes state transitions (create/unlock/save/lock/
	// change-password). Entry operations do not take it.
	opMu sync.Mutex

	mu           sync.Mutex // guards everything below
	state        State
	key          []byte
	header       codec.Header
	store        *store.Store
	flock        *vaultfile.Lock
	dirty        bool
	lastActivity time.Time
}

// New returns a locked session for the vault file at path.
func New(path string, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		path:  path,
		opts:  opts,
		log:   opts.Logger,
		store: store.New(),
	}
}

// Path returns the vault file path.
func (s *Session) Path() string {
	return s.path
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Create initializes a brand-new vault at the session path: fresh salt,
// derived key, empty store, and an initial committed save. Fails with
// ErrVaultExists if a vault file is already present.
func (s *Session) Create(password []byte) error {
	if !s.opMu.TryLock() {
		return ErrSessionBusy
	}
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state != StateLocked {
		s.mu.Unlock()
		return ErrAlreadyUnlocked
	}
	s.state = StateUnlocking
	s.mu.Unlock()

	err := s.create(password)
	if err != nil {
		s.unwind()
		return err
	}
	return nil
}

func (s *Session) create(password []byte) error {
	if vaultfile.Exists(s.path) {
		return ErrVaultExists
	}

	header, err := codec.NewHeader()
	if err != nil {
		return err
	}
	if s.opts.KDF != nil {
		// Cost overrides only; zero fields keep the defaults and the salt
		// stays the freshly generated one.
		if s.opts.KDF.Memory != 0 {
			header.KDF.Memory = s.opts.KDF.Memory
		}
		if s.opts.KDF.Time != 0 {
			header.KDF.Time = s.opts.KDF.Time
		}
		if s.opts.KDF.Threads != 0 {
			header.KDF.Threads = s.opts.KDF.Threads
		}
	}

	key, err := crypto.DeriveKey(password, header.KDF)
	if err != nil {
		return err
	}

	flock, err := vaultfile.AcquireLock(s.path)
	if err != nil {
		crypto.SecureWipe(key)
		return err
	}

	s.mu.Lock()
	s.header = header
	s.key = key
	s.flock = flock
	s.store = store.New()
	s.dirty = true
	s.state = StateUnlocked
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if err := s.save(); err != nil {
		s.wipe()
		return err
	}

	s.log.Info().Str("path", s.path).Msg("vault created")
	return nil
}

// Unlock opens the vault file, derives the key from the password and the
// persisted KDF parameters, and populates the store. Authentication failure
// and file corruption both surface as ErrUnlockFailed; a missing file is
// ErrVaultNotFound.
func (s *Session) Unlock(password []byte) error {
	if !s.opMu.TryLock() {
		return ErrSessionBusy
	}
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state != StateLocked {
		s.mu.Unlock()
		return ErrAlreadyUnlocked
	}
	s.state = StateUnlocking
	s.mu.Unlock()

	if err := s.unlock(password); err != nil {
		s.unwind()
		return err
	}
	return nil
}

func (s *Session) unlock(password []byte) error {
	flock, err := vaultfile.AcquireLock(s.path)
	if err != nil {
		return err
	}

	data, err := vaultfile.Load(s.path)
	if err != nil {
		flock.Release()
		return err
	}

	f, err := codec.Parse(data)
	if err != nil {
		flock.Release()
		if errors.Is(err, codec.ErrUnsupportedVersion) {
			return err
		}
		// Structural corruption is indistinguishable from tampering; fold
		// it into the generic unlock failure.
		s.log.Debug().Err(err).Msg("vault parse failed")
		return ErrUnlockFailed
	}

	key, err := crypto.DeriveKey(password, f.Header.KDF)
	if err != nil {
		flock.Release()
		return err
	}

	entries, err := f.Decrypt(key)
	if err != nil {
		flock.Release()
		crypto.SecureWipe(key)
		s.log.Debug().Err(err).Msg("vault decrypt failed")
		return ErrUnlockFailed
	}

	st := store.New()
	st.ReplaceAll(entries)
	// ReplaceAll deep-copies; destroy the decoder's plaintext copies.
	for i := range entries {
		crypto.SecureWipe(entries[i].Secret)
	}

	s.mu.Lock()
	s.header = f.Header
	s.key = key
	s.flock = flock
	s.store = st
	s.dirty = false
	s.state = StateUnlocked
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.log.Info().Str("path", s.path).Int("entries", st.Len()).Msg("vault unlocked")
	return nil
}

// Save re-encodes the current store contents with a fresh nonce and commits
// the file atomically, rotating backups. Valid only while Unlocked; safe to
// call repeatedly.
func (s *Session) Save() error {
	if !s.opMu.TryLock() {
		return ErrSessionBusy
	}
	defer s.opMu.Unlock()

	if s.expireIfIdleLocked() {
		return ErrSessionLocked
	}
	s.mu.Lock()
	if s.state != StateUnlocked {
		s.mu.Unlock()
		return ErrSessionLocked
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()

	return s.save()
}

// save encodes and commits. Callers must hold opMu and have verified the
// session is unlocked.
func (s *Session) save() error {
	s.mu.Lock()
	header := s.header
	key := s.key
	st := s.store
	s.mu.Unlock()

	data, err := codec.Encode(header, key, st.Entries())
	if err != nil {
		return err
	}

	if err := vaultfile.Commit(s.path, data, s.opts.KeepBackups); err != nil {
		return err
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()

	s.log.Debug().Str("path", s.path).Int("entries", st.Len()).Msg("vault saved")
	return nil
}

// Lock transitions to Locked, wiping the vault key and all decrypted entry
// contents. When flush is true, pending unsaved mutations are committed
// first; a flush failure is returned but never prevents the wipe (the prior
// committed file remains intact).
//
// Unlike the other transitions Lock blocks instead of reporting
// ErrSessionBusy, so a lock request always completes.
func (s *Session) Lock(flush bool) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.lock(flush)
}

// lock performs the Locking transition. Callers must hold opMu.
func (s *Session) lock(flush bool) error {
	s.mu.Lock()
	if s.state == StateLocked {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLocking
	dirty := s.dirty
	s.mu.Unlock()

	var flushErr error
	if flush && dirty {
		flushErr = s.save()
	}

	s.wipe()
	s.log.Info().Str("path", s.path).Msg("vault locked")
	return flushErr
}

// wipe destroys key material and store contents and releases the process
// lock. The session ends up Locked regardless of prior state.
func (s *Session) wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	crypto.SecureWipe(s.key)
	s.key = nil
	s.store.Wipe()
	s.store = store.New()
	if s.flock != nil {
		s.flock.Release()
		s.flock = nil
	}
	s.dirty = false
	s.state = StateLocked
}

// unwind reverts a failed Unlocking transition back to Locked.
func (s *Session) unwind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnlocking {
		s.state = StateLocked
	}
}

// Touch resets the idle clock. Callers report user activity through this
// hook so an external auto-lock timer measures true inactivity.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnlocked {
		s.lastActivity = time.Now()
	}
}

// IdleDeadline returns the instant the session will be considered idle, and
// false when the session is locked or idle locking is disabled.
func (s *Session) IdleDeadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked || s.opts.IdleTimeout < 0 {
		return time.Time{}, false
	}
	return s.lastActivity.Add(s.opts.IdleTimeout), true
}

// ExpireIfIdle locks the session if the idle deadline has passed, honoring
// the configured flush policy. Returns true if it locked. External timers
// call this periodically; guarded operations also invoke it lazily.
func (s *Session) ExpireIfIdle() bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.expireIfIdleLocked()
}

// expireIfIdleLocked checks the deadline and locks when overdue. Callers
// must hold opMu.
func (s *Session) expireIfIdleLocked() bool {
	s.mu.Lock()
	expired := s.state == StateUnlocked &&
		s.opts.IdleTimeout > 0 &&
		time.Since(s.lastActivity) > s.opts.IdleTimeout
	s.mu.Unlock()

	if !expired {
		return false
	}
	s.log.Info().Str("path", s.path).Msg("idle timeout, auto-locking")
	if err := s.lock(!s.opts.DiscardOnLock); err != nil {
		s.log.Error().Err(err).Msg("flush on auto-lock failed, prior commit intact")
	}
	return true
}

// guard verifies the session is unlocked and not idle-expired, then counts
// the operation as activity.
func (s *Session) guard() (*store.Store, error) {
	if s.ExpireIfIdle() {
		return nil, ErrSessionLocked
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, ErrSessionLocked
	}
	s.lastActivity = time.Now()
	return s.store, nil
}

// Add appends a new entry and returns its assigned id.
func (s *Session) Add(e store.Entry) (uuid.UUID, error) {
	st, err := s.guard()
	if err != nil {
		return uuid.Nil, err
	}
	id := st.Add(e)
	s.markDirty()
	return id, nil
}

// Get returns the entry with the given id.
func (s *Session) Get(id uuid.UUID) (store.Entry, error) {
	st, err := s.guard()
	if err != nil {
		return store.Entry{}, err
	}
	return st.Get(id)
}

// Update applies a patch to the entry with the given id.
func (s *Session) Update(id uuid.UUID, p store.Patch) (store.Entry, error) {
	st, err := s.guard()
	if err != nil {
		return store.Entry{}, err
	}
	e, err := st.Update(id, p)
	if err != nil {
		return store.Entry{}, err
	}
	s.markDirty()
	return e, nil
}

// Remove deletes the entry with the given id.
func (s *Session) Remove(id uuid.UUID) error {
	st, err := s.guard()
	if err != nil {
		return err
	}
	if err := st.Remove(id); err != nil {
		return err
	}
	s.markDirty()
	return nil
}

// Find returns a restartable sequence of entries matching the query.
func (s *Session) Find(q store.Query) (iter.Seq[store.Entry], error) {
	st, err := s.guard()
	if err != nil {
		return nil, err
	}
	return st.Find(q), nil
}

// Entries returns a copy of all entries in vault order.
func (s *Session) Entries() ([]store.Entry, error) {
	st, err := s.guard()
	if err != nil {
		return nil, err
	}
	return st.Entries(), nil
}

// Sorted returns a title-sorted copy of all entries, A-Z or Z-A.
func (s *Session) Sorted(descending bool) ([]store.Entry, error) {
	st, err := s.guard()
	if err != nil {
		return nil, err
	}
	return st.Sorted(descending), nil
}

// ChangePassword re-derives the vault key from a new master password using
// the existing header salt and commits immediately, so the file on disk is
// only ever decryptable with one password at a time.
func (s *Session) ChangePassword(newPassword []byte) error {
	if !s.opMu.TryLock() {
		return ErrSessionBusy
	}
	defer s.opMu.Unlock()

	if s.expireIfIdleLocked() {
		return ErrSessionLocked
	}
	s.mu.Lock()
	if s.state != StateUnlocked {
		s.mu.Unlock()
		return ErrSessionLocked
	}
	header := s.header
	s.mu.Unlock()

	newKey, err := crypto.DeriveKey(newPassword, header.KDF)
	if err != nil {
		return err
	}

	s.mu.Lock()
	crypto.SecureWipe(s.key)
	s.key = newKey
	s.dirty = true
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return fmt.Errorf("session: failed to commit password change: %w", err)
	}
	s.log.Info().Str("path", s.path).Msg("master password changed")
	return nil
}

// Dirty reports whether there are unsaved mutations.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}
