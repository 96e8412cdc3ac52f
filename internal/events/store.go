package events

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imprintworks/imprintd/internal/storage"
)

var (
	prefixEvent = []byte("e/")          // e/<seq(8,BE)> -> Event JSON
	keyEventSeq = []byte("meta/e_next") // next sequence number (8 bytes BE)
)

// Store persists the append-only event log.
type Store struct{}

// NewStore creates an event log store.
func NewStore() *Store {
	return &Store{}
}

// Append flushes a recorder's buffered events, assigning consecutive
// sequence numbers. Runs inside the caller's transaction so the events
// commit or revert together with the state change.
func (s *Store) Append(tx storage.Tx, rec *Recorder) error {
	pending := rec.Pending()
	if len(pending) == 0 {
		return nil
	}

	next, err := s.nextSeq(tx)
	if err != nil {
		return err
	}

	for i := range pending {
		pending[i].Seq = next
		data, err := json.Marshal(&pending[i])
		if err != nil {
			return fmt.Errorf("event marshal: %w", err)
		}
		if err := tx.Put(eventKey(next), data); err != nil {
			return err
		}
		next++
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	return tx.Put(keyEventSeq, buf[:])
}

// StoredEvent is an event as read back from the log; the payload is left
// raw for consumers to decode per kind.
type StoredEvent struct {
	Seq     uint64          `json:"seq"`
	Kind    Kind            `json:"kind"`
	Time    uint64          `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// List returns up to limit events with Seq >= from, in sequence order.
func (s *Store) List(tx storage.Tx, from uint64, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		return []StoredEvent{}, nil
	}

	out := []StoredEvent{}
	stop := errors.New("done")
	err := tx.ForEach(prefixEvent, func(key, value []byte) error {
		if len(key) < len(prefixEvent)+8 {
			return nil // Malformed key, skip.
		}
		seq := binary.BigEndian.Uint64(key[len(prefixEvent):])
		if seq < from {
			return nil
		}
		var ev StoredEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			return nil // Skip corrupt entries.
		}
		out = append(out, ev)
		if len(out) >= limit {
			return stop
		}
		return nil
	})
	if err != nil && !errors.Is(err, stop) {
		return nil, err
	}
	return out, nil
}

// NextSeq returns the sequence number the next appended event will get.
func (s *Store) NextSeq(tx storage.Tx) (uint64, error) {
	return s.nextSeq(tx)
}

func (s *Store) nextSeq(tx storage.Tx) (uint64, error) {
	data, err := tx.Get(keyEventSeq)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt event sequence record")
	}
	return binary.BigEndian.Uint64(data), nil
}

func eventKey(seq uint64) []byte {
	key := make([]byte, len(prefixEvent)+8)
	copy(key, prefixEvent)
	binary.BigEndian.PutUint64(key[len(prefixEvent):], seq)
	return key
}
