// Package checkpoint persists per-family results so an interrupted
// multi-family run resumes without recomputing finished families.
package checkpoint

import (
	"encoding/json"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the package logging variable.
var log = logging.MustGetLogger("checkpoint")

// mainBucket is the bucket holding all family records.
var mainBucket = []byte("main")

// FamilyData stores one family checkpoint.
type FamilyData struct {
	Dup     float64
	Loss    float64
	Trans   float64
	JointLL float64
	RecLL   float64
	SeqLL   float64
	Done    bool
}

// CheckpointIO reads and writes family checkpoints in one bolt
// database.
type CheckpointIO struct {
	db *bolt.DB
}

// NewCheckpointIO creates a CheckpointIO; db may be nil, turning all
// operations into no-ops.
func NewCheckpointIO(db *bolt.DB) *CheckpointIO {
	return &CheckpointIO{db: db}
}

// Save stores one family record.
func (s *CheckpointIO) Save(family string, data *FamilyData) error {
	dataB, err := json.Marshal(data)
	if err != nil {
		log.Error("Error serializing checkpoint ", err)
		return err
	}
	err = SaveData(s.db, []byte(family), dataB)
	if err != nil {
		log.Error("Error saving checkpoint ", err)
	}
	return err
}

// Load returns the stored record for a family, or nil.
func (s *CheckpointIO) Load(family string) (*FamilyData, error) {
	b, err := LoadData(s.db, []byte(family))
	if err != nil || b == nil {
		return nil, err
	}
	var data *FamilyData
	if err = json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	if data != nil && data.Done {
		log.Noticef("Found finished checkpoint for family %s (ll=%v)", family, data.JointLL)
	}
	return data, nil
}

// SaveData saves a value in the bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(mainBucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// LoadData loads a value from the bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(mainBucket)
		if b == nil {
			return nil
		}
		v := b.Get(key)
		if v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
