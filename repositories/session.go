package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chatsync/domain"
)

// Storage keys. One record per concern, mirroring the browser client's
// "chat-auth" and "lastRoom" entries.
const (
	keySession  = "client:session"
	keyLastRoom = "client:last_room"
	keyDeviceID = "client:device_id"
)

// SessionRepository persists the authenticated session in BadgerDB.
// Malformed or missing data always reads back as an absent session; storage
// corruption is never surfaced as an error to the caller.
type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, log: log}
}

// Load reads the persisted session. A missing key, unreadable value or
// invalid JSON yields a zero session.
func (r *SessionRepository) Load() domain.Session {
	var session domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySession))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &session)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			r.log.Warn(fmt.Sprintf("Discarding unreadable session record: %v", err))
		}
		return domain.Session{}
	}
	if !session.Present() {
		// Token without user (or the reverse) violates the session
		// invariant and is treated like no session at all.
		return domain.Session{}
	}
	return session
}

func (r *SessionRepository) Save(session domain.Session) error {
	bytes, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keySession), bytes)
	})
}

func (r *SessionRepository) Clear() error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keySession))
	})
}

// LastRoom returns the last persisted room code, or "" when absent.
// It is written on every room transition but only used as a prefill,
// never for automatic rejoin.
func (r *SessionRepository) LastRoom() string {
	var code string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLastRoom))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			code = string(value)
			return nil
		})
	})
	if err != nil {
		return ""
	}
	return code
}

func (r *SessionRepository) SaveLastRoom(code string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyLastRoom), []byte(code))
	})
}

func (r *SessionRepository) ClearLastRoom() error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyLastRoom))
	})
}

// DeviceID returns the stable identifier for this installation, generating
// and persisting one on first use.
func (r *SessionRepository) DeviceID() (string, error) {
	var id string
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyDeviceID))
		if err == nil {
			return item.Value(func(value []byte) error {
				id = string(value)
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		id = uuid.New().String()
		return txn.Set([]byte(keyDeviceID), []byte(id))
	})
	if err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	return id, nil
}
