package state

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/exp/slices"
)

var bucketStates = []byte("states")

// Bolt is a Store persisted in a bbolt database.
type Bolt struct {
	db  *bolt.DB
	now func() time.Time
	watchers
}

var _ Store = &Bolt{}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open state db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketStates)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create bucket: %w", err)
	}
	return &Bolt{db: db, now: time.Now}, nil
}

func (b *Bolt) Get(entityID string) (State, error) {
	var st State
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketStates).Get([]byte(entityID))
		if data == nil {
			return fmt.Errorf("%s: %w", entityID, ErrNotFound)
		}
		return json.Unmarshal(data, &st)
	})
	return st, err
}

func (b *Bolt) Set(entityID, value string, attrs map[string]interface{}) (State, error) {
	var st State
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketStates)
		var prev *State
		if data := bkt.Get([]byte(entityID)); data != nil {
			var p State
			if err := json.Unmarshal(data, &p); err == nil {
				prev = &p
			}
		}
		st = next(prev, entityID, value, attrs, b.now())
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(entityID), data)
	})
	if err != nil {
		return State{}, fmt.Errorf("could not set state of %s: %w", entityID, err)
	}
	b.notify(st)
	return st, nil
}

func (b *Bolt) List() ([]State, error) {
	var result []State
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketStates)
		result = make([]State, 0, bkt.Stats().KeyN)
		return bkt.ForEach(func(_, v []byte) error {
			var st State
			if err := json.Unmarshal(v, &st); err != nil {
				return err
			}
			result = append(result, st)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("could not list states: %w", err)
	}
	return result, nil
}

func (b *Bolt) Retain(keep func(entityID string) bool) ([]string, error) {
	var removed []string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketStates)
		if err := bkt.ForEach(func(k, _ []byte) error {
			if !keep(string(k)) {
				removed = append(removed, string(k))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, id := range removed {
			if err := bkt.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not prune states: %w", err)
	}
	return removed, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

func sortByID(states []State) {
	slices.SortFunc(states, func(a, b State) int {
		switch {
		case a.EntityID < b.EntityID:
			return -1
		case a.EntityID > b.EntityID:
			return 1
		default:
			return 0
		}
	})
}
