package bill

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "extractions"

// DB defines the interface for database operations
type DB interface {
	// SaveExtraction saves an extraction record to the database
	SaveExtraction(record *ExtractionRecord) error

	// GetExtraction retrieves an extraction record by ID
	GetExtraction(id string) (*ExtractionRecord, error)

	// ListExtractions returns all extraction records
	ListExtractions() ([]*ExtractionRecord, error)

	// DeleteExtraction removes an extraction record from the database
	DeleteExtraction(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveExtraction saves an extraction record to the database
func (b *BoltDB) SaveExtraction(record *ExtractionRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling extraction record: %w", err)
		}
		return bucket.Put([]byte(record.ID), data)
	})
}

// GetExtraction retrieves an extraction record by ID
func (b *BoltDB) GetExtraction(id string) (*ExtractionRecord, error) {
	var record *ExtractionRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("extraction not found: %s", id)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListExtractions returns all extraction records
func (b *BoltDB) ListExtractions() ([]*ExtractionRecord, error) {
	records := make([]*ExtractionRecord, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var record ExtractionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling extraction record: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteExtraction removes an extraction record from the database
func (b *BoltDB) DeleteExtraction(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
