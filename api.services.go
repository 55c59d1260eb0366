package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// BookServiceProvider defines the book use cases exposed to the handlers.
type BookServiceProvider interface {
	Create(ctx context.Context, req CreateRequest) (BookEntity, error)
	GetOne(ctx context.Context, uid uuid.UUID) (BookEntity, error)
	GetAll(ctx context.Context) ([]BookEntity, error)
	Update(ctx context.Context, uid uuid.UUID, req UpdateRequest) (BookEntity, error)
	Delete(ctx context.Context, uid uuid.UUID) (BookEntity, error)
}

// BookService coordinates the primary store with the cache and the change queue.
// Only the primary store decides the outcome of a call.
type BookService struct {
	logger  *zap.Logger
	config  *Config
	clock   Clocker
	ids     UIDHandler
	storage BookStorage
	cache   BookCache
	queue   Queuer
}

func NewBookService(logger *zap.Logger, config *Config, clock Clocker, ids UIDHandler, storage BookStorage, cache BookCache, queue Queuer) BookServiceProvider {
	return &BookService{
		logger:  logger,
		config:  config,
		clock:   clock,
		ids:     ids,
		storage: storage,
		cache:   cache,
		queue:   queue,
	}
}

// Create assigns the identity and timestamps of a new book then persists it.
func (bs *BookService) Create(ctx context.Context, req CreateRequest) (BookEntity, error) {
	uid, err := bs.ids.Generate()
	if err != nil {
		return BookEntity{}, fmt.Errorf("service: generate book uid: %w", err)
	}
	book := NewBookEntity(uid, req, bs.clock.Now())
	if err = bs.storage.Add(ctx, book); err != nil {
		return BookEntity{}, err
	}

	bs.cacheSet(ctx, book)
	bs.publish(ctx, CreateQueue, book)
	return book, nil
}

// GetOne reads the cache first and falls back to the primary store.
func (bs *BookService) GetOne(ctx context.Context, uid uuid.UUID) (BookEntity, error) {
	book, err := bs.cache.Get(ctx, uid)
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		bs.logger.Warn("service: failed to read book from cache", zap.String("book.uid", uid.String()), zap.Error(err))
	}

	book, err = bs.storage.GetOne(ctx, uid)
	if err != nil {
		return BookEntity{}, err
	}
	bs.cacheSet(ctx, book)
	return book, nil
}

func (bs *BookService) GetAll(ctx context.Context) ([]BookEntity, error) {
	return bs.storage.GetAll(ctx)
}

// Update applies the present fields of req. A request which changes
// nothing returns the stored book untouched.
func (bs *BookService) Update(ctx context.Context, uid uuid.UUID, req UpdateRequest) (BookEntity, error) {
	book, changed, err := bs.storage.Patch(ctx, uid, req, bs.clock.Now())
	if err != nil {
		return BookEntity{}, err
	}
	if !changed {
		return book, nil
	}

	bs.cacheSet(ctx, book)
	bs.publish(ctx, UpdateQueue, book)
	return book, nil
}

// Delete removes the book and returns its last known state.
func (bs *BookService) Delete(ctx context.Context, uid uuid.UUID) (BookEntity, error) {
	book, err := bs.storage.GetOne(ctx, uid)
	if err != nil {
		return BookEntity{}, err
	}
	if err = bs.storage.Delete(ctx, uid); err != nil {
		return BookEntity{}, err
	}

	bs.cacheEvict(ctx, uid)
	bs.publish(ctx, DeleteQueue, BookEntity{UID: uid})
	return book, nil
}

func (bs *BookService) cacheSet(ctx context.Context, book BookEntity) {
	if err := bs.cache.Set(ctx, book); err != nil {
		bs.logger.Warn("service: failed to cache book", zap.String("book.uid", book.UID.String()), zap.Error(err))
	}
}

func (bs *BookService) cacheEvict(ctx context.Context, uid uuid.UUID) {
	if err := bs.cache.Evict(ctx, uid); err != nil {
		bs.logger.Warn("service: failed to evict book from cache", zap.String("book.uid", uid.String()), zap.Error(err))
	}
}

func (bs *BookService) publish(ctx context.Context, qid string, book BookEntity) {
	if err := bs.queue.Push(ctx, qid, book); err != nil {
		bs.logger.Error("service: failed to push book to queue", zap.String("qid", qid), zap.String("book.uid", book.UID.String()), zap.Error(err))
	}
}
