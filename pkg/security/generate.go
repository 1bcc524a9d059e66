package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()-_=+[]{};:,.<>?"
)

const (
	// MinGeneratedLength is the shortest password Generate will produce.
	MinGeneratedLength = 8
	// MaxGeneratedLength is the longest password Generate will produce.
	MaxGeneratedLength = 256
	// DefaultGeneratedLength is used when callers pass no explicit length.
	DefaultGeneratedLength = 20
)

// GenerateOptions controls random password generation. The zero value
// enables every character class.
type GenerateOptions struct {
	Length    int
	NoUpper   bool
	NoLower   bool
	NoDigits  bool
	NoSymbols bool
	// Exclude removes individual characters from the charset, e.g. "0O1lI"
	// for ambiguous glyphs.
	Exclude string
}

// Generate produces a random password from crypto/rand. When more than one
// character class is enabled, the password is guaranteed to contain at least
// one character from each.
func Generate(opts GenerateOptions) ([]byte, error) {
	length := opts.Length
	if length == 0 {
		length = DefaultGeneratedLength
	}
	if length < MinGeneratedLength || length > MaxGeneratedLength {
		return nil, fmt.Errorf("length must be between %d and %d, got %d",
			MinGeneratedLength, MaxGeneratedLength, length)
	}

	classes := make([]string, 0, 4)
	for _, c := range []struct {
		chars    string
		disabled bool
	}{
		{lowerChars, opts.NoLower},
		{upperChars, opts.NoUpper},
		{digitChars, opts.NoDigits},
		{symbolChars, opts.NoSymbols},
	} {
		if c.disabled {
			continue
		}
		chars := exclude(c.chars, opts.Exclude)
		if chars != "" {
			classes = append(classes, chars)
		}
	}
	if len(classes) == 0 {
		return nil, errors.New("no characters available: all classes disabled or excluded")
	}
	if len(classes) > length {
		return nil, fmt.Errorf("length %d cannot cover %d character classes", length, len(classes))
	}

	charset := strings.Join(classes, "")
	password := make([]byte, length)

	// One character from each enabled class first, then fill from the full
	// charset and shuffle so class positions are not predictable.
	for i, class := range classes {
		b, err := randByte(class)
		if err != nil {
			return nil, err
		}
		password[i] = b
	}
	for i := len(classes); i < length; i++ {
		b, err := randByte(charset)
		if err != nil {
			return nil, err
		}
		password[i] = b
	}
	if err := shuffle(password); err != nil {
		return nil, err
	}
	return password, nil
}

func exclude(chars, excluded string) string {
	if excluded == "" {
		return chars
	}
	var b strings.Builder
	for _, r := range chars {
		if !strings.ContainsRune(excluded, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func randByte(charset string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, fmt.Errorf("failed to read random source: %w", err)
	}
	return charset[n.Int64()], nil
}

// shuffle performs a Fisher-Yates shuffle driven by crypto/rand.
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("failed to read random source: %w", err)
		}
		j := n.Int64()
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
