package expense

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	receiptsBucket = []byte("receipts")
	travelBucket   = []byte("travel")
	batchesBucket  = []byte("batches")
)

// DB defines the interface for database operations
type DB interface {
	SaveReceipt(receipt *Receipt) error
	GetReceipt(id string) (*Receipt, error)
	ListReceipts() ([]*Receipt, error)
	DeleteReceipt(id string) error

	SaveTravel(entry *TravelEntry) error
	GetTravel(id string) (*TravelEntry, error)
	ListTravel() ([]*TravelEntry, error)
	DeleteTravel(id string) error

	// SubmitBatch stores the batch and marks every member record submitted
	// in one transaction. Nothing is written if any member is missing or
	// already submitted.
	SubmitBatch(batch *SubmissionBatch) error
	GetBatch(id string) (*SubmissionBatch, error)
	ListBatches() ([]*SubmissionBatch, error)

	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens the database file and creates the buckets
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{receiptsBucket, travelBucket, batchesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func put[T any](tx *bbolt.Tx, bucket []byte, id string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return tx.Bucket(bucket).Put([]byte(id), data)
}

func get[T any](tx *bbolt.Tx, bucket []byte, id string) (*T, error) {
	data := tx.Bucket(bucket).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%s %s: %w", bucket, id, ErrNotFound)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshaling %s %s: %w", bucket, id, err)
	}
	return &v, nil
}

func list[T any](tx *bbolt.Tx, bucket []byte) ([]*T, error) {
	items := make([]*T, 0)
	err := tx.Bucket(bucket).ForEach(func(k, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return fmt.Errorf("unmarshaling %s %s: %w", bucket, k, err)
		}
		items = append(items, &item)
		return nil
	})
	return items, err
}

func remove(tx *bbolt.Tx, bucket []byte, id string) error {
	b := tx.Bucket(bucket)
	if b.Get([]byte(id)) == nil {
		return fmt.Errorf("%s %s: %w", bucket, id, ErrNotFound)
	}
	return b.Delete([]byte(id))
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, receiptsBucket, receipt.ID, receipt)
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (receipt *Receipt, err error) {
	err = b.db.View(func(tx *bbolt.Tx) error {
		receipt, err = get[Receipt](tx, receiptsBucket, id)
		return err
	})
	return receipt, err
}

// ListReceipts returns all receipts in key order
func (b *BoltDB) ListReceipts() (receipts []*Receipt, err error) {
	err = b.db.View(func(tx *bbolt.Tx) error {
		receipts, err = list[Receipt](tx, receiptsBucket)
		return err
	})
	return receipts, err
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return remove(tx, receiptsBucket, id)
	})
}

// SaveTravel saves a travel entry
func (b *BoltDB) SaveTravel(entry *TravelEntry) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, travelBucket, entry.ID, entry)
	})
}

// GetTravel retrieves a travel entry by ID
func (b *BoltDB) GetTravel(id string) (entry *TravelEntry, err error) {
	err = b.db.View(func(tx *bbolt.Tx) error {
		entry, err = get[TravelEntry](tx, travelBucket, id)
		return err
	})
	return entry, err
}

// ListTravel returns all travel entries in key order
func (b *BoltDB) ListTravel() (entries []*TravelEntry, err error) {
	err = b.db.View(func(tx *bbolt.Tx) error {
		entries, err = list[TravelEntry](tx, travelBucket)
		return err
	})
	return entries, err
}

// DeleteTravel removes a travel entry
func (b *BoltDB) DeleteTravel(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return remove(tx, travelBucket, id)
	})
}

// SubmitBatch writes the batch and flips the submitted flag on all members
func (b *BoltDB) SubmitBatch(batch *SubmissionBatch) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(batchesBucket).Get([]byte(batch.ID)) != nil {
			return fmt.Errorf("batch %s already exists: %w", batch.ID, ErrInvalid)
		}

		for _, id := range batch.ReceiptIDs {
			r, err := get[Receipt](tx, receiptsBucket, id)
			if err != nil {
				return err
			}
			if r.IsSubmitted {
				return fmt.Errorf("receipt %s: %w", id, ErrSubmitted)
			}
			r.IsSubmitted = true
			r.BatchID = batch.ID
			r.UpdatedAt = batch.CreatedAt
			if err := put(tx, receiptsBucket, id, r); err != nil {
				return err
			}
		}

		for _, id := range batch.TravelIDs {
			t, err := get[TravelEntry](tx, travelBucket, id)
			if err != nil {
				return err
			}
			if t.IsSubmitted {
				return fmt.Errorf("travel %s: %w", id, ErrSubmitted)
			}
			t.IsSubmitted = true
			t.BatchID = batch.ID
			t.UpdatedAt = batch.CreatedAt
			if err := put(tx, travelBucket, id, t); err != nil {
				return err
			}
		}

		return put(tx, batchesBucket, batch.ID, batch)
	})
}

// GetBatch retrieves a batch by ID
func (b *BoltDB) GetBatch(id string) (batch *SubmissionBatch, err error) {
	err = b.db.View(func(tx *bbolt.Tx) error {
		batch, err = get[SubmissionBatch](tx, batchesBucket, id)
		return err
	})
	return batch, err
}

// ListBatches returns all batches in key order
func (b *BoltDB) ListBatches() (batches []*SubmissionBatch, err error) {
	err = b.db.View(func(tx *bbolt.Tx) error {
		batches, err = list[SubmissionBatch](tx, batchesBucket)
		return err
	})
	return batches, err
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
