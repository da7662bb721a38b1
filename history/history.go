// Package history persists delivered outcomes in a local Badger store.
package history

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"

	"voxd/internal/types"
)

// Entry is one delivered outcome, success or failure.
type Entry struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	SessionID  uint64     `json:"session_id"`
	Mode       types.Mode `json:"mode"`
	Model      string     `json:"model"`
	Text       string     `json:"text,omitempty"`
	ErrKind    string     `json:"err_kind,omitempty"`
	ErrMessage string     `json:"err_message,omitempty"`
	ElapsedMS  int64      `json:"elapsed_ms"`
	AudioPath  string     `json:"audio_path,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Failed reports whether the entry records an error outcome.
func (e Entry) Failed() bool { return e.ErrKind != "" }

// Store is an append-only log of outcomes. Old entries expire through the
// store's TTL rather than explicit cleanup.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens or creates the store in dir. retentionDays <= 0 keeps entries
// forever.
func Open(dir string, retentionDays int) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	var ttl time.Duration
	if retentionDays > 0 {
		ttl = time.Duration(retentionDays) * 24 * time.Hour
	}
	return &Store{db: db, ttl: ttl}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one entry, assigning its ID and timestamp. ULID keys sort
// by creation time, which is what gives Recent its ordering.
func (s *Store) Append(e Entry) (Entry, error) {
	id, err := newULID()
	if err != nil {
		return Entry{}, err
	}
	e.ID = id
	e.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(e.ID), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("store entry: %w", err)
	}
	return e, nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(entries) < n; it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return entries, nil
}

// newULID generates a new ULID.
func newULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
