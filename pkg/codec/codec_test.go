package codec

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/store"
)

func testHeader(t *testing.T) Header {
	t.Helper()
	salt, err := crypto.GenerateSalt()
	if err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}
	return Header{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		KDF:       crypto.KDFParams{Salt: salt, Memory: 8 * 1024, Time: 1, Threads: 1},
	}
}

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, crypto.KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func testEntries() []store.Entry {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return []store.Entry{
		{
			ID:        uuid.New(),
			Title:     "Bank",
			Username:  "alice",
			Secret:    []byte("hunter2"),
			Notes:     "joint account",
			Tags:      []string{"finance"},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        uuid.New(),
			Title:     "Email",
			Username:  "alice@example.com",
			Secret:    []byte("correct horse"),
			CreatedAt: now,
			UpdatedAt: now.Add(time.Hour),
		},
	}
}

// TestEncodeParseDecryptRoundTrip verifies a full envelope round trip
// reproduces the entries exactly, including order
func TestEncodeParseDecryptRoundTrip(t *testing.T) {
	header := testHeader(t)
	key := testKey(t)
	entries := testEntries()

	data, err := Encode(header, key, entries)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if !bytes.HasPrefix(data, MagicNumber[:]) {
		t.Error("encoded file does not start with the magic number")
	}

	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if f.Header.Version != FormatVersion {
		t.Errorf("parsed version = %d, want %d", f.Header.Version, FormatVersion)
	}
	if !bytes.Equal(f.Header.KDF.Salt, header.KDF.Salt) {
		t.Error("parsed header lost the salt")
	}

	got, err := f.Decrypt(key)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("decoded %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].ID != entries[i].ID {
			t.Errorf("entry %d: id = %s, want %s", i, got[i].ID, entries[i].ID)
		}
		if got[i].Title != entries[i].Title || got[i].Username != entries[i].Username {
			t.Errorf("entry %d: fields differ: %+v", i, got[i])
		}
		if !bytes.Equal(got[i].Secret, entries[i].Secret) {
			t.Errorf("entry %d: secret differs", i)
		}
		if !got[i].UpdatedAt.Equal(entries[i].UpdatedAt) {
			t.Errorf("entry %d: updated_at = %v, want %v", i, got[i].UpdatedAt, entries[i].UpdatedAt)
		}
	}
}

// TestEncodeFreshNonce verifies two encodings of the same vault differ
func TestEncodeFreshNonce(t *testing.T) {
	header := testHeader(t)
	key := testKey(t)
	entries := testEntries()

	d1, err := Encode(header, key, entries)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	d2, err := Encode(header, key, entries)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if bytes.Equal(d1, d2) {
		t.Error("two encodings produced identical bytes, nonce was reused")
	}

	f1, err := Parse(d1)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	f2, err := Parse(d2)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if bytes.Equal(f1.Nonce, f2.Nonce) {
		t.Error("nonce reused across encodings")
	}
}

// TestDecryptTamperedFile flips one bit in every ciphertext byte and checks
// decryption always fails with an authentication error
func TestDecryptTamperedFile(t *testing.T) {
	header := testHeader(t)
	key := testKey(t)

	data, err := Encode(header, key, testEntries())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	original, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	for i := range original.Ciphertext {
		f := &File{
			Header:     original.Header,
			Nonce:      bytes.Clone(original.Nonce),
			Ciphertext: bytes.Clone(original.Ciphertext),
		}
		f.Ciphertext[i] ^= 0x80
		if _, err := f.Decrypt(key); !errors.Is(err, crypto.ErrDecryptionFailed) {
			t.Fatalf("Decrypt() accepted ciphertext with byte %d flipped, err = %v", i, err)
		}
	}
}

// TestParseInvalidMagic tests rejection of non-vault files
func TestParseInvalidMagic(t *testing.T) {
	data := []byte("GIF89a definitely not a vault file and long enough to not be truncated")
	if _, err := Parse(data); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("Parse() error = %v, want ErrInvalidMagic", err)
	}
}

// TestParseUnsupportedVersion tests that files written by a future version
// are rejected, not guessed at
func TestParseUnsupportedVersion(t *testing.T) {
	header := testHeader(t)
	header.Version = FormatVersion + 1
	key := testKey(t)

	// Encode does not version-check; only Parse does.
	data, err := Encode(header, key, nil)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if _, err := Parse(data); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Parse() error = %v, want ErrUnsupportedVersion", err)
	}
}

// TestParseTruncated tests that every truncation point is detected
func TestParseTruncated(t *testing.T) {
	header := testHeader(t)
	key := testKey(t)
	data, err := Encode(header, key, testEntries())
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	for _, n := range []int{0, 4, len(MagicNumber), len(MagicNumber) + 2, len(data) / 2, len(data) - 1} {
		if _, err := Parse(data[:n]); err == nil {
			t.Errorf("Parse() accepted file truncated to %d bytes", n)
		}
	}
}

// TestParseBadKDFParams tests rejection of a header with unusable KDF
// parameters
func TestParseBadKDFParams(t *testing.T) {
	header := testHeader(t)
	header.KDF.Memory = 0

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	var buf bytes.Buffer
	buf.Write(MagicNumber[:])
	binary.Write(&buf, binary.BigEndian, uint32(len(headerJSON)))
	buf.Write(headerJSON)
	buf.Write(make([]byte, crypto.NonceLength))
	binary.Write(&buf, binary.BigEndian, uint32(0))

	if _, err := Parse(buf.Bytes()); err == nil {
		t.Error("Parse() accepted a header with zero KDF memory cost")
	}
}

// TestDecryptUnknownPayloadFields verifies forward compatibility: extra CBOR
// fields written by a newer minor version decode without error
func TestDecryptUnknownPayloadFields(t *testing.T) {
	key := testKey(t)

	// A payload map with the known "entries" field plus an unknown one.
	type futurePayload struct {
		Entries []store.Entry `cbor:"entries"`
		Extra   string        `cbor:"added_in_v1_1"`
	}
	plaintext, err := cbor.Marshal(futurePayload{Entries: testEntries(), Extra: "ignored"})
	if err != nil {
		t.Fatalf("marshal future payload: %v", err)
	}
	ciphertext, nonce, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	f := &File{Header: testHeader(t), Nonce: nonce, Ciphertext: ciphertext}
	entries, err := f.Decrypt(key)
	if err != nil {
		t.Fatalf("Decrypt() rejected payload with unknown field: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("decoded %d entries, want 2", len(entries))
	}
}
