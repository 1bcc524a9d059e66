// Package codec serializes a vault to and from its on-disk envelope.
//
// File layout:
//
//	[magic: 8 bytes "PKEEPVLT"]
//	[header length: uint32 big-endian]
//	[header: JSON (format version, creation time, KDF parameters incl. salt)]
//	[nonce: 12 bytes]
//	[ciphertext length: uint32 big-endian]
//	[ciphertext + GCM tag]
//
// The header is cleartext (salts and cost parameters are not secret); the
// payload is the CBOR-encoded entry collection sealed with AES-256-GCM.
// CBOR is self-describing and the decoder skips unknown fields, so future
// entry fields can be added without breaking old vault files.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/store"
)

// Magic number for vault files.
var MagicNumber = [8]byte{'P', 'K', 'E', 'E', 'P', 'V', 'L', 'T'}

// FormatVersion is the current vault file format version.
const FormatVersion = 1

// maxHeaderLength bounds the cleartext header; anything larger is corruption.
const maxHeaderLength = 1024 * 1024

// Header contains the cleartext vault file metadata.
type Header struct {
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	KDF       crypto.KDFParams `json:"kdf"`
}

// NewHeader returns a current-version header with fresh KDF parameters.
func NewHeader() (Header, error) {
	params, err := crypto.DefaultKDFParams()
	if err != nil {
		return Header{}, err
	}
	return Header{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		KDF:       params,
	}, nil
}

// File is a parsed vault envelope whose payload is still encrypted.
type File struct {
	Header     Header
	Nonce      []byte
	Ciphertext []byte
}

// payload is the plaintext structure sealed inside the envelope.
type payload struct {
	Entries []store.Entry `cbor:"entries"`
}

// Encode serializes the entries and seals them into a complete vault
// envelope under the given key. Every call draws a fresh nonce, so encoding
// the same vault twice yields different bytes.
func Encode(header Header, key []byte, entries []store.Entry) ([]byte, error) {
	plaintext, err := cbor.Marshal(payload{Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("codec: failed to marshal entries: %w", err)
	}
	defer crypto.SecureWipe(plaintext)

	ciphertext, nonce, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to encrypt payload: %w", err)
	}

	var buf bytes.Buffer
	if err := writeHeader(&buf, header); err != nil {
		return nil, err
	}
	if _, err := buf.Write(nonce); err != nil {
		return nil, fmt.Errorf("codec: failed to write nonce: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(ciphertext))); err != nil {
		return nil, fmt.Errorf("codec: failed to write ciphertext length: %w", err)
	}
	if _, err := buf.Write(ciphertext); err != nil {
		return nil, fmt.Errorf("codec: failed to write ciphertext: %w", err)
	}

	return buf.Bytes(), nil
}

// Parse reads and validates the envelope structure without touching the
// encrypted payload. The header is available afterwards so callers can
// derive the key from the persisted KDF parameters.
func Parse(data []byte) (*File, error) {
	r := bytes.NewReader(data)

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, crypto.NonceLength)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, fmt.Errorf("%w: missing nonce", ErrTruncated)
	}

	var ciphertextLen uint32
	if err := binary.Read(r, binary.BigEndian, &ciphertextLen); err != nil {
		return nil, fmt.Errorf("%w: missing ciphertext length", ErrTruncated)
	}
	if int(ciphertextLen) != r.Len() {
		return nil, fmt.Errorf("%w: ciphertext length %d, %d bytes remain", ErrTruncated, ciphertextLen, r.Len())
	}

	ciphertext := make([]byte, ciphertextLen)
	if _, err := io.ReadFull(r, ciphertext); err != nil {
		return nil, fmt.Errorf("%w: missing ciphertext", ErrTruncated)
	}

	return &File{
		Header:     *header,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt opens the sealed payload with the given key and returns the entry
// collection. Any authentication failure surfaces as
// crypto.ErrDecryptionFailed; either the full collection is produced or
// nothing at all.
func (f *File) Decrypt(key []byte) ([]store.Entry, error) {
	plaintext, err := crypto.Decrypt(key, f.Ciphertext, f.Nonce)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(plaintext)

	var p payload
	if err := cbor.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("codec: failed to unmarshal entries: %w", err)
	}
	return p.Entries, nil
}

// writeHeader writes the magic number and length-prefixed JSON header.
func writeHeader(w io.Writer, header Header) error {
	if _, err := w.Write(MagicNumber[:]); err != nil {
		return fmt.Errorf("codec: failed to write magic number: %w", err)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("codec: failed to marshal header: %w", err)
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(headerJSON))); err != nil {
		return fmt.Errorf("codec: failed to write header length: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("codec: failed to write header: %w", err)
	}
	return nil
}

// readHeader reads and validates the magic number and header, rejecting
// unknown future format versions outright rather than guessing.
func readHeader(r io.Reader) (*Header, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: missing magic number", ErrTruncated)
	}
	if magic != MagicNumber {
		return nil, ErrInvalidMagic
	}

	var headerLen uint32
	if err := binary.Read(r, binary.BigEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("%w: missing header length", ErrTruncated)
	}
	if headerLen > maxHeaderLength {
		return nil, fmt.Errorf("codec: header too large: %d bytes", headerLen)
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("%w: missing header", ErrTruncated)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("codec: failed to unmarshal header: %w", err)
	}

	if header.Version > FormatVersion {
		return nil, fmt.Errorf("%w: got %d, max supported %d",
			ErrUnsupportedVersion, header.Version, FormatVersion)
	}
	if err := header.KDF.Validate(); err != nil {
		return nil, fmt.Errorf("codec: invalid KDF parameters in header: %w", err)
	}

	return &header, nil
}
