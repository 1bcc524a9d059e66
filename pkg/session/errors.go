package session

import (
	"errors"

	"github.com/passkeep/passkeep/pkg/vaultfile"
)

// Session errors
var (
	// ErrUnlockFailed indicates the vault could not be opened. Deliberately
	// undifferentiated: a wrong password and a corrupted or tampered file
	// produce the same error, so failed attempts leak nothing about which.
	ErrUnlockFailed = errors.New("session: unlock failed: invalid password or corrupted vault")

	// ErrSessionBusy indicates another unlock/save/change-password
	// transition is already in flight on this session.
	ErrSessionBusy = errors.New("session: another operation is in progress")

	// ErrSessionLocked indicates the operation requires an unlocked session.
	ErrSessionLocked = errors.New("session: vault is locked")

	// ErrAlreadyUnlocked indicates Create or Unlock was called on an
	// unlocked session.
	ErrAlreadyUnlocked = errors.New("session: vault is already unlocked")

	// ErrVaultExists indicates Create found an existing vault at the path.
	// A vault is never silently overwritten.
	ErrVaultExists = errors.New("session: vault already exists at this path")

	// ErrVaultNotFound indicates no vault file exists at the path.
	ErrVaultNotFound = vaultfile.ErrNotFound
)
