package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost defaults following OWASP recommendations.
const (
	// DefaultKDFMemory is the memory cost in KiB (64MB).
	DefaultKDFMemory = 64 * 1024

	// DefaultKDFTime is the number of iterations.
	DefaultKDFTime = 3

	// DefaultKDFThreads is the degree of parallelism.
	DefaultKDFThreads = 4
)

// KDFParams contains the Argon2id key derivation parameters for a vault.
// The parameters are generated once at vault creation and persisted in the
// cleartext file header, so the same key can be re-derived on every unlock.
type KDFParams struct {
	Salt    []byte `json:"salt"`    // 16-byte random salt, immutable per vault
	Memory  uint32 `json:"memory"`  // Memory cost in KiB
	Time    uint32 `json:"time"`    // Iteration count
	Threads uint8  `json:"threads"` // Parallelism
}

// DefaultKDFParams returns KDFParams with a freshly generated random salt and
// the OWASP-recommended cost defaults.
func DefaultKDFParams() (KDFParams, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return KDFParams{}, err
	}
	return KDFParams{
		Salt:    salt,
		Memory:  DefaultKDFMemory,
		Time:    DefaultKDFTime,
		Threads: DefaultKDFThreads,
	}, nil
}

// GenerateSalt returns SaltLength bytes of cryptographically secure random data.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// Validate checks that the parameters describe a usable derivation. Zero cost
// values would silently weaken the KDF, so they are rejected outright.
func (p KDFParams) Validate() error {
	if len(p.Salt) != SaltLength {
		return fmt.Errorf("crypto: invalid salt length %d, must be %d bytes", len(p.Salt), SaltLength)
	}
	if p.Memory == 0 || p.Time == 0 || p.Threads == 0 {
		return fmt.Errorf("crypto: KDF cost parameters must be non-zero")
	}
	return nil
}

// DeriveKey derives a 256-bit encryption key from a master password using
// Argon2id with the given parameters.
//
// Derivation is deterministic: the same password and parameters always yield
// the same key. The only input rejected is an empty password; a wrong
// password still derives a key, which later fails authentication on decrypt.
// This keeps key derivation free of any password-correctness oracle.
func DeriveKey(password []byte, p KDFParams) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey(password, p.Salt, p.Time, p.Memory, p.Threads, KeyLength), nil
}
