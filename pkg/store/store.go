// Package store provides the in-memory credential collection for an
// unlocked vault: ordered entries, CRUD, and search. It is a pure data
// structure with no knowledge of encryption or persistence.
package store

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/passkeep/passkeep/pkg/crypto"
)

// Errors
var (
	// ErrEntryNotFound indicates no entry exists with the given id.
	ErrEntryNotFound = errors.New("store: entry not found")
)

// Entry is a single stored credential record.
//
// Identity is the ID; titles are display names and need not be unique.
// The cbor tags define the encrypted on-disk representation, so renaming a
// field is a format change.
type Entry struct {
	ID        uuid.UUID `cbor:"id" json:"id"`
	Title     string    `cbor:"title" json:"title"`
	Username  string    `cbor:"username" json:"username"`
	Secret    []byte    `cbor:"secret" json:"secret"`
	Notes     string    `cbor:"notes,omitempty" json:"notes,omitempty"`
	Tags      []string  `cbor:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt time.Time `cbor:"created_at" json:"created_at"`
	UpdatedAt time.Time `cbor:"updated_at" json:"updated_at"`
}

// clone returns a deep copy so callers never share backing slices with the
// store (and a later Wipe cannot zero data a caller still holds).
func (e Entry) clone() Entry {
	e.Secret = slices.Clone(e.Secret)
	e.Tags = slices.Clone(e.Tags)
	return e
}

// Patch describes a partial update to an entry. Nil fields are left unchanged.
type Patch struct {
	Title    *string
	Username *string
	Secret   []byte
	Notes    *string
	Tags     *[]string
}

// Query selects entries for Find. A zero Query matches everything.
type Query struct {
	// Text is matched case-insensitively as a substring of title, username
	// and notes. Empty means no text filter.
	Text string

	// Tags restricts matches to entries carrying every listed tag.
	Tags []string
}

// Store is the in-memory entry collection. Entries keep insertion order,
// which is meaningful for stable display; search never reorders.
//
// Reads may run concurrently; mutations are applied atomically with respect
// to readers.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[uuid.UUID]int // id -> position in entries

	now func() time.Time // test override
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		index: make(map[uuid.UUID]int),
		now:   time.Now,
	}
}

// Add appends a new entry, assigning a fresh unique id and setting both
// timestamps. The caller's ID and timestamp fields are ignored.
func (s *Store) Add(e Entry) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	e = e.clone()
	e.ID = uuid.New()
	e.CreatedAt = s.now().UTC()
	e.UpdatedAt = e.CreatedAt

	s.index[e.ID] = len(s.entries)
	s.entries = append(s.entries, e)
	return e.ID
}

// Get returns a copy of the entry with the given id.
func (s *Store) Get(id uuid.UUID) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return s.entries[i].clone(), nil
}

// Update applies the patch to the entry with the given id and bumps
// UpdatedAt. Returns the updated entry.
func (s *Store) Update(id uuid.UUID, p Patch) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	e := &s.entries[i]
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Username != nil {
		e.Username = *p.Username
	}
	if p.Secret != nil {
		// Overwrite the old secret before replacing it.
		crypto.SecureWipe(e.Secret)
		e.Secret = slices.Clone(p.Secret)
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.Tags != nil {
		e.Tags = slices.Clone(*p.Tags)
	}
	e.UpdatedAt = s.now().UTC()

	return e.clone(), nil
}

// Remove deletes the entry with the given id from the ordered collection.
func (s *Store) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	crypto.SecureWipe(s.entries[i].Secret)
	s.entries = slices.Delete(s.entries, i, i+1)
	delete(s.index, id)
	for j := i; j < len(s.entries); j++ {
		s.index[s.entries[j].ID] = j
	}
	return nil
}

// Find returns a lazy sequence of entries matching the query, in vault
// order. Each call takes a fresh snapshot, so the sequence is restartable
// and never observes a half-applied mutation.
func (s *Store) Find(q Query) iter.Seq[Entry] {
	s.mu.RLock()
	snapshot := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if matches(e, q) {
			snapshot = append(snapshot, e.clone())
		}
	}
	s.mu.RUnlock()

	return func(yield func(Entry) bool) {
		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

// Entries returns a copy of all entries in vault order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

// Sorted returns a copy of all entries sorted by title (case-insensitive),
// A-Z or Z-A. Display-only: the vault order itself is untouched.
func (s *Store) Sorted(descending bool) []Entry {
	return SortByTitle(s.Entries(), descending)
}

// SortByTitle sorts entries by title (case-insensitive), A-Z or Z-A, in
// place, and returns the slice.
func SortByTitle(entries []Entry, descending bool) []Entry {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		c := strings.Compare(foldText(a.Title), foldText(b.Title))
		if descending {
			return -c
		}
		return c
	})
	return entries
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ReplaceAll swaps in a decoded entry collection, preserving the given
// order. Used when a session populates the store after unlock.
func (s *Store) ReplaceAll(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make([]Entry, len(entries))
	s.index = make(map[uuid.UUID]int, len(entries))
	for i, e := range entries {
		s.entries[i] = e.clone()
		s.index[e.ID] = i
	}
}

// Wipe overwrites every secret-bearing field and drops all entries.
// Called when the owning session locks; plaintext must not linger for the
// garbage collector to reclaim eventually.
func (s *Store) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		e := &s.entries[i]
		crypto.SecureWipe(e.Secret)
		e.Secret = nil
		// Strings are immutable in Go; dropping the references is the best
		// that can be done for the remaining fields.
		e.Title, e.Username, e.Notes = "", "", ""
	}
	s.entries = nil
	s.index = make(map[uuid.UUID]int)
}

// matches reports whether the entry satisfies the query.
func matches(e Entry, q Query) bool {
	if q.Text != "" {
		text := foldText(q.Text)
		if !strings.Contains(foldText(e.Title), text) &&
			!strings.Contains(foldText(e.Username), text) &&
			!strings.Contains(foldText(e.Notes), text) {
			return false
		}
	}
	for _, want := range q.Tags {
		if !slices.ContainsFunc(e.Tags, func(t string) bool {
			return foldText(t) == foldText(want)
		}) {
			return false
		}
	}
	return true
}

// foldText normalizes text for case-insensitive matching: NFKC so visually
// equivalent Unicode forms compare equal, then lowercase.
func foldText(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}
