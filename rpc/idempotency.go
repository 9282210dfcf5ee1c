package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
	"lukechampine.com/blake3"
)

var bucketIdempotency = []byte("idempotency")

// ErrIdempotencyConflict is returned when a key is reused for a different
// request body.
var ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")

// IdempotencyRecord is the cached response envelope for one key.
type IdempotencyRecord struct {
	RequestHash string    `json:"requestHash"`
	StatusCode  int       `json:"statusCode"`
	Body        []byte    `json:"body"`
	StoredAt    time.Time `json:"storedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// IdempotencyStore persists write responses so a retried submission with the
// same Idempotency-Key replays the original answer instead of reaching the
// ledger twice.
type IdempotencyStore struct {
	db  *bolt.DB
	ttl time.Duration
}

// OpenIdempotencyStore opens (and migrates) the bolt file at path.
func OpenIdempotencyStore(path string, ttl time.Duration) (*IdempotencyStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIdempotency)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{db: db, ttl: ttl}, nil
}

// Close releases the bolt handle.
func (s *IdempotencyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RequestHash fingerprints a request body.
func RequestHash(body []byte) string {
	sum := blake3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached response for key. Expired entries are deleted and
// reported as absent. A live entry recorded for another body yields
// ErrIdempotencyConflict.
func (s *IdempotencyStore) Lookup(key, requestHash string, now time.Time) (IdempotencyRecord, bool, error) {
	var record IdempotencyRecord
	found := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketIdempotency)
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &record); err != nil {
			return err
		}
		if now.After(record.ExpiresAt) {
			record = IdempotencyRecord{}
			return bucket.Delete([]byte(key))
		}
		if record.RequestHash != requestHash {
			return ErrIdempotencyConflict
		}
		found = true
		return nil
	})
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return record, found, nil
}

// Remember stores the response written for key.
func (s *IdempotencyStore) Remember(key, requestHash string, status int, body []byte, now time.Time) error {
	record := IdempotencyRecord{
		RequestHash: requestHash,
		StatusCode:  status,
		Body:        append([]byte(nil), body...),
		StoredAt:    now,
		ExpiresAt:   now.Add(s.ttl),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdempotency).Put([]byte(key), encoded)
	})
}

// Prune deletes every expired entry and returns how many were removed.
func (s *IdempotencyStore) Prune(now time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketIdempotency)
		var stale [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			var record IdempotencyRecord
			if err := json.Unmarshal(v, &record); err != nil || now.After(record.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}
