package upload

import (
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// Database key namespace: "dc:<code>" -> json-encoded codeEntry. A single
// prefix is enough here; the download-code map has no secondary lookups.
const prefixDownloadCode = "dc:"

func keyDownloadCode(code string) []byte {
	return []byte(prefixDownloadCode + code)
}

type codeEntry struct {
	Username string `json:"username"`
	Filename string `json:"filename"`
}

// CodeStore persists the download_code -> (username, filename) map across
// restarts. Codes are never expired or removed once minted.
type CodeStore struct {
	db *badgerdb.DB
}

// NewCodeStore opens (or creates) a Badger database at path for persisting
// download codes.
func NewCodeStore(path string) (*CodeStore, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("upload: opening download-code store: %w", err)
	}
	return &CodeStore{db: db}, nil
}

// Close releases the underlying database.
func (s *CodeStore) Close() error {
	return s.db.Close()
}

// Insert records code -> (username, filename). Returns ErrCodeExists if the
// code is already present, since minted codes must never collide.
func (s *CodeStore) Insert(code, username, filename string) error {
	entry := codeEntry{Username: username, Filename: filename}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("upload: encoding download-code entry: %w", err)
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyDownloadCode(code)); err == nil {
			return ErrCodeExists
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Set(keyDownloadCode(code), data)
	})
}

// Resolve looks up the (username, filename) pair a download code was minted
// for. ok is false if the code is unknown.
func (s *CodeStore) Resolve(code string) (username, filename string, ok bool) {
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyDownloadCode(code))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var entry codeEntry
			if err := json.Unmarshal(val, &entry); err != nil {
				return err
			}
			username, filename, ok = entry.Username, entry.Filename, true
			return nil
		})
	})
	if err != nil {
		return "", "", false
	}
	return username, filename, ok
}
