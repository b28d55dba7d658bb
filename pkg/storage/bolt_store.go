// Package storage records visualizer sessions in BoltDB so they can be
// replayed and relayed later.
//
// # Layout
//
// The top-level "sessions" bucket maps a session id to its SessionRecord.
// Each session also owns a nested bucket under "data" holding three
// sub-buckets:
//
//   - rounds: keyed by big-endian round number
//   - events: keyed by big-endian bucket sequence, in arrival order
//   - history: keyed by big-endian bucket sequence, one item per finished round
//
// Values are JSON, the same documents the engine API serves.
//
// # Thread Safety
//
// BoltStore is safe for concurrent use. BoltDB serializes write
// transactions and gives every read transaction a consistent snapshot, so
// no additional locking is done here.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/salahayoub/hotviz/pkg/types"
)

// Bucket names for BoltDB storage
var (
	sessionsBucket = []byte("sessions")
	dataBucket     = []byte("data")
	roundsBucket   = []byte("rounds")
	eventsBucket   = []byte("events")
	historyBucket  = []byte("history")
)

// Error types
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRoundNotFound   = errors.New("round not found")
	ErrEmptySessionID  = errors.New("session id is empty")
)

// SessionRecord is the stored description of a session.
type SessionRecord struct {
	ID      string              `json:"id"`
	Config  types.SessionConfig `json:"config"`
	Created time.Time           `json:"created"`
	Updated time.Time           `json:"updated"`
}

// StoredEvent is an event together with its sequence number.
type StoredEvent struct {
	Seq   uint64
	Event types.Event
}

// BoltStore persists sessions, rounds, live events and round history.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

// NewBoltStore creates a new BoltStore at the specified path.
// It opens or creates the database file and initializes the required buckets.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(sessionsBucket); err != nil {
			return fmt.Errorf("failed to create sessions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(dataBucket); err != nil {
			return fmt.Errorf("failed to create data bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (b *BoltStore) Path() string {
	return b.path
}

// Close releases all database resources.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// uint64ToBytes encodes a uint64 value to big-endian bytes.
// Big-endian encoding ensures proper lexicographic ordering of keys.
func uint64ToBytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// bytesToUint64 decodes big-endian bytes to a uint64 value.
func bytesToUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// sessionData returns the sub-bucket name of the session, creating the
// session's buckets when create is set. It returns nil when the session
// has no data bucket and create is false.
func sessionData(tx *bbolt.Tx, id string, name []byte, create bool) (*bbolt.Bucket, error) {
	data := tx.Bucket(dataBucket)
	if !create {
		sb := data.Bucket([]byte(id))
		if sb == nil {
			return nil, nil
		}
		return sb.Bucket(name), nil
	}
	sb, err := data.CreateBucketIfNotExists([]byte(id))
	if err != nil {
		return nil, fmt.Errorf("failed to create session bucket: %w", err)
	}
	for _, n := range [][]byte{roundsBucket, eventsBucket, historyBucket} {
		if _, err := sb.CreateBucketIfNotExists(n); err != nil {
			return nil, fmt.Errorf("failed to create %s bucket: %w", n, err)
		}
	}
	return sb.Bucket(name), nil
}

func requireSession(tx *bbolt.Tx, id string) error {
	if tx.Bucket(sessionsBucket).Get([]byte(id)) == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// ============================================================================
// Sessions
// ============================================================================

// SaveSession creates or replaces the session record of id.
func (b *BoltStore) SaveSession(id string, cfg types.SessionConfig) error {
	if id == "" {
		return ErrEmptySessionID
	}
	now := time.Now().UTC()
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(sessionsBucket)
		rec := SessionRecord{ID: id, Config: cfg, Created: now, Updated: now}
		if old := bucket.Get([]byte(id)); old != nil {
			var prev SessionRecord
			if err := json.Unmarshal(old, &prev); err == nil {
				rec.Created = prev.Created
			}
		}
		val, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to serialize session: %w", err)
		}
		if err := bucket.Put([]byte(id), val); err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}
		_, err = sessionData(tx, id, roundsBucket, true)
		return err
	})
}

// GetSession returns the record of id, or ErrSessionNotFound.
func (b *BoltStore) GetSession(id string) (SessionRecord, error) {
	var rec SessionRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(sessionsBucket).Get([]byte(id))
		if val == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		if err := json.Unmarshal(val, &rec); err != nil {
			return fmt.Errorf("failed to deserialize session: %w", err)
		}
		return nil
	})
	return rec, err
}

// ListSessions returns every session ordered by id.
func (b *BoltStore) ListSessions() ([]SessionRecord, error) {
	var out []SessionRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(k, v []byte) error {
			var rec SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to deserialize session %s: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// DeleteSession removes a session and everything recorded for it.
func (b *BoltStore) DeleteSession(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := requireSession(tx, id); err != nil {
			return err
		}
		if err := tx.Bucket(sessionsBucket).Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		data := tx.Bucket(dataBucket)
		if data.Bucket([]byte(id)) != nil {
			if err := data.DeleteBucket([]byte(id)); err != nil {
				return fmt.Errorf("failed to delete session data: %w", err)
			}
		}
		return nil
	})
}

// ============================================================================
// Rounds
// ============================================================================

// SaveRound stores r under its round number, replacing any earlier copy.
func (b *BoltStore) SaveRound(id string, r types.Round) error {
	if r.Number < 0 {
		return fmt.Errorf("invalid round number %d", r.Number)
	}
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize round: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := requireSession(tx, id); err != nil {
			return err
		}
		bucket, err := sessionData(tx, id, roundsBucket, true)
		if err != nil {
			return err
		}
		if err := bucket.Put(uint64ToBytes(uint64(r.Number)), val); err != nil {
			return fmt.Errorf("failed to store round: %w", err)
		}
		return nil
	})
}

// GetRound returns round n of a session.
func (b *BoltStore) GetRound(id string, n int) (types.Round, error) {
	var r types.Round
	err := b.db.View(func(tx *bbolt.Tx) error {
		if err := requireSession(tx, id); err != nil {
			return err
		}
		bucket, err := sessionData(tx, id, roundsBucket, false)
		if err != nil {
			return err
		}
		if bucket == nil || n < 0 {
			return fmt.Errorf("%w: %d", ErrRoundNotFound, n)
		}
		val := bucket.Get(uint64ToBytes(uint64(n)))
		if val == nil {
			return fmt.Errorf("%w: %d", ErrRoundNotFound, n)
		}
		if err := json.Unmarshal(val, &r); err != nil {
			return fmt.Errorf("failed to deserialize round: %w", err)
		}
		return nil
	})
	return r, err
}

// Rounds returns the rounds of a session in round order.
func (b *BoltStore) Rounds(id string) ([]types.Round, error) {
	var out []types.Round
	err := b.db.View(func(tx *bbolt.Tx) error {
		if err := requireSession(tx, id); err != nil {
			return err
		}
		bucket, err := sessionData(tx, id, roundsBucket, false)
		if err != nil || bucket == nil {
			return err
		}
		return bucket.ForEach(func(_, v []byte) error {
			var r types.Round
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to deserialize round: %w", err)
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}

// LoadTrace assembles the stored configuration and rounds of a session.
func (b *BoltStore) LoadTrace(id string) (*types.Trace, error) {
	rec, err := b.GetSession(id)
	if err != nil {
		return nil, err
	}
	rounds, err := b.Rounds(id)
	if err != nil {
		return nil, err
	}
	return &types.Trace{Config: rec.Config, Rounds: rounds}, nil
}

// ============================================================================
// Events and history
// ============================================================================

// AppendEvent records ev and returns its sequence number. Any Seq already
// set on ev is replaced by the stored one.
func (b *BoltStore) AppendEvent(id string, ev types.Event) (uint64, error) {
	ev.Seq = 0
	val, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize event: %w", err)
	}
	var seq uint64
	err = b.db.Update(func(tx *bbolt.Tx) error {
		if err := requireSession(tx, id); err != nil {
			return err
		}
		bucket, err := sessionData(tx, id, eventsBucket, true)
		if err != nil {
			return err
		}
		seq, err = bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate event sequence: %w", err)
		}
		if err := bucket.Put(uint64ToBytes(seq), val); err != nil {
			return fmt.Errorf("failed to store event: %w", err)
		}
		return nil
	})
	return seq, err
}

// EventsSince returns events with a sequence number greater than after,
// oldest first.
func (b *BoltStore) EventsSince(id string, after uint64) ([]StoredEvent, error) {
	var out []StoredEvent
	err := b.db.View(func(tx *bbolt.Tx) error {
		if err := requireSession(tx, id); err != nil {
			return err
		}
		bucket, err := sessionData(tx, id, eventsBucket, false)
		if err != nil || bucket == nil {
			return err
		}
		c := bucket.Cursor()
		for k, v := c.Seek(uint64ToBytes(after + 1)); k != nil; k, v = c.Next() {
			var ev types.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("failed to deserialize event: %w", err)
			}
			ev.Seq = bytesToUint64(k)
			out = append(out, StoredEvent{Seq: ev.Seq, Event: ev})
		}
		return nil
	})
	return out, err
}

// Events returns every recorded event of a session, oldest first.
func (b *BoltStore) Events(id string) ([]types.Event, error) {
	stored, err := b.EventsSince(id, 0)
	if err != nil {
		return nil, err
	}
	out := make([]types.Event, len(stored))
	for i, s := range stored {
		out[i] = s.Event
	}
	return out, nil
}

// AppendHistory records the outcome of a finished round.
func (b *BoltStore) AppendHistory(id string, item types.HistoryItem) error {
	val, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to serialize history item: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := requireSession(tx, id); err != nil {
			return err
		}
		bucket, err := sessionData(tx, id, historyBucket, true)
		if err != nil {
			return err
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate history sequence: %w", err)
		}
		if err := bucket.Put(uint64ToBytes(seq), val); err != nil {
			return fmt.Errorf("failed to store history item: %w", err)
		}
		return nil
	})
}

// History returns the consensus history of a session, oldest first.
func (b *BoltStore) History(id string) ([]types.HistoryItem, error) {
	var out []types.HistoryItem
	err := b.db.View(func(tx *bbolt.Tx) error {
		if err := requireSession(tx, id); err != nil {
			return err
		}
		bucket, err := sessionData(tx, id, historyBucket, false)
		if err != nil || bucket == nil {
			return err
		}
		return bucket.ForEach(func(_, v []byte) error {
			var item types.HistoryItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("failed to deserialize history item: %w", err)
			}
			out = append(out, item)
			return nil
		})
	})
	return out, err
}
