// Package security provides master password strength checks and random
// password generation.
package security

import (
	"errors"
	"unicode"
)

// MinMasterPasswordLength is the minimum accepted master password length.
const MinMasterPasswordLength = 8

// ErrPasswordTooShort is returned for master passwords below the minimum
// length.
var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// Strength classifies a password. Length dominates the score; character
// variety only adjusts within a length band.
type Strength int

const (
	StrengthWeak Strength = iota
	StrengthFair
	StrengthGood
	StrengthStrong
)

func (s Strength) String() string {
	switch s {
	case StrengthWeak:
		return "weak"
	case StrengthFair:
		return "fair"
	case StrengthGood:
		return "good"
	case StrengthStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// CheckMasterPassword validates a candidate master password and reports its
// strength. Only the length minimum is enforced; the strength rating is
// advisory.
func CheckMasterPassword(password []byte) (Strength, error) {
	if len(password) < MinMasterPasswordLength {
		return StrengthWeak, ErrPasswordTooShort
	}
	return Classify(password), nil
}

// Classify rates a password without enforcing any policy.
func Classify(password []byte) Strength {
	n := len(password)
	variety := classCount(password)

	switch {
	case n >= 20:
		return StrengthStrong
	case n >= 14:
		if variety >= 3 {
			return StrengthStrong
		}
		return StrengthGood
	case n >= 10:
		if variety >= 3 {
			return StrengthGood
		}
		return StrengthFair
	case n >= MinMasterPasswordLength:
		if variety >= 4 {
			return StrengthFair
		}
		return StrengthWeak
	default:
		return StrengthWeak
	}
}

// classCount reports how many of the four character classes (lower, upper,
// digit, other) appear in the password.
func classCount(password []byte) int {
	var lower, upper, digit, other bool
	for _, b := range password {
		r := rune(b)
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	n := 0
	for _, ok := range []bool{lower, upper, digit, other} {
		if ok {
			n++
		}
	}
	return n
}
