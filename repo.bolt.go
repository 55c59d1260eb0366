package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

var _ BookStorage = (*boltBookStorage)(nil) // ensure boltBookStorage implements BookStorage.

// boltBookStorage is the local change journal. It mirrors the primary
// store from the change queue and keeps the latest version of each book.
type boltBookStorage struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
}

// GetBoltDBClient setup the database and the bucket then provides a ready to use client.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, errB := tx.CreateBucketIfNotExists([]byte(config.BoltDB.BucketName)); errB != nil {
			return fmt.Errorf("failed to create %s bucket: %v", config.BoltDB.BucketName, errB)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up bucket: %v", err)
	}
	return db, nil
}

// NewBoltBookStorage provides an instance of bolt-based book journal.
func NewBoltBookStorage(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB) *boltBookStorage {
	return &boltBookStorage{
		logger: logger,
		client: client,
		config: boltConfig,
	}
}

// Close shuts down the bolt-based book storage.
func (bs *boltBookStorage) Close() error {
	return bs.client.Close()
}

func encodeJournalEntry(book BookEntity) ([]byte, error) {
	resp, err := ToReadModel(book)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

func (bs *boltBookStorage) put(book BookEntity) error {
	data, err := encodeJournalEntry(book)
	if err != nil {
		return err
	}
	return bs.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bs.config.BucketName)).Put(book.UID.Bytes(), data)
	})
}

func decodeJournalEntry(data []byte) (BookEntity, error) {
	var resp ReadResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return BookEntity{}, err
	}
	return FromReadModel(resp)
}

// Add inserts a new book record into the journal.
func (bs *boltBookStorage) Add(_ context.Context, book BookEntity) error {
	return bs.put(book)
}

// GetOne retrieves a book record based on its uid from the journal.
func (bs *boltBookStorage) GetOne(_ context.Context, uid uuid.UUID) (BookEntity, error) {
	// initialize a readable transaction.
	tx, err := bs.client.Begin(false)
	if err != nil {
		return BookEntity{}, err
	}
	defer tx.Rollback()

	result := tx.Bucket([]byte(bs.config.BucketName)).Get(uid.Bytes())
	if result == nil {
		return BookEntity{}, ErrBookNotFound
	}
	return decodeJournalEntry(result)
}

// Delete removes a book record based on its uid from the journal.
func (bs *boltBookStorage) Delete(_ context.Context, uid uuid.UUID) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bs.config.BucketName))
		if b.Get(uid.Bytes()) == nil {
			return ErrBookNotFound
		}
		return b.Delete(uid.Bytes())
	})
}

// Update replaces existing book record data or inserts it if it does not exist.
// The journal may receive an update before the matching creation.
func (bs *boltBookStorage) Update(_ context.Context, book BookEntity) error {
	return bs.put(book)
}

// Patch applies req to a journal entry within a single writable transaction.
func (bs *boltBookStorage) Patch(_ context.Context, uid uuid.UUID, req UpdateRequest, now time.Time) (BookEntity, bool, error) {
	var book BookEntity
	changed := false
	err := bs.client.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bs.config.BucketName))
		data := b.Get(uid.Bytes())
		if data == nil {
			return ErrBookNotFound
		}
		var err error
		if book, err = decodeJournalEntry(data); err != nil {
			return err
		}
		if !book.Apply(req, now) {
			return nil
		}
		if data, err = encodeJournalEntry(book); err != nil {
			return err
		}
		changed = true
		return b.Put(uid.Bytes(), data)
	})
	if err != nil {
		return BookEntity{}, false, err
	}
	return book, changed, nil
}

// GetAll retrieves a list of all books stored in the journal.
func (bs *boltBookStorage) GetAll(_ context.Context) ([]BookEntity, error) {
	tx, err := bs.client.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Create a cursor on the books' bucket.
	c := tx.Bucket([]byte(bs.config.BucketName)).Cursor()

	books := []BookEntity{}
	for k, v := c.First(); k != nil; k, v = c.Next() {
		book, err := decodeJournalEntry(v)
		if err != nil {
			var shapeErr *ShapeError
			if errors.As(err, &shapeErr) {
				bs.logger.Warn("journal: skipping malformed entry", zap.Binary("key", k), zap.Error(err))
				continue
			}
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}
