package main

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

// This file contains mocks definitions needed to perform unit tests.

type MockBookStorage struct {
	AddFunc    func(ctx context.Context, book BookEntity) error
	GetOneFunc func(ctx context.Context, uid uuid.UUID) (BookEntity, error)
	DeleteFunc func(ctx context.Context, uid uuid.UUID) error
	UpdateFunc func(ctx context.Context, book BookEntity) error
	PatchFunc  func(ctx context.Context, uid uuid.UUID, req UpdateRequest, now time.Time) (BookEntity, bool, error)
	GetAllFunc func(ctx context.Context) ([]BookEntity, error)
}

// Add mocks the behavior of book creation by the repository.
func (m *MockBookStorage) Add(ctx context.Context, book BookEntity) error {
	return m.AddFunc(ctx, book)
}

// GetOne mocks the behavior of retrieving a book by the repository.
func (m *MockBookStorage) GetOne(ctx context.Context, uid uuid.UUID) (BookEntity, error) {
	return m.GetOneFunc(ctx, uid)
}

// Delete mocks the behavior of deleting a book by the repository.
func (m *MockBookStorage) Delete(ctx context.Context, uid uuid.UUID) error {
	return m.DeleteFunc(ctx, uid)
}

// Update mocks the behavior of updating a book by the repository.
func (m *MockBookStorage) Update(ctx context.Context, book BookEntity) error {
	return m.UpdateFunc(ctx, book)
}

// Patch mocks the behavior of partially updating a book by the repository.
func (m *MockBookStorage) Patch(ctx context.Context, uid uuid.UUID, req UpdateRequest, now time.Time) (BookEntity, bool, error) {
	return m.PatchFunc(ctx, uid, req, now)
}

// GetAll mocks the behavior of retrieving all books by the repository.
func (m *MockBookStorage) GetAll(ctx context.Context) ([]BookEntity, error) {
	return m.GetAllFunc(ctx)
}

// NewMapBookStorage returns a MockBookStorage backed by a map.
func NewMapBookStorage() *MockBookStorage {
	var mu sync.Mutex
	books := map[uuid.UUID]BookEntity{}
	return &MockBookStorage{
		AddFunc: func(_ context.Context, book BookEntity) error {
			mu.Lock()
			defer mu.Unlock()
			books[book.UID] = book
			return nil
		},
		GetOneFunc: func(_ context.Context, uid uuid.UUID) (BookEntity, error) {
			mu.Lock()
			defer mu.Unlock()
			book, ok := books[uid]
			if !ok {
				return BookEntity{}, ErrBookNotFound
			}
			return book, nil
		},
		DeleteFunc: func(_ context.Context, uid uuid.UUID) error {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := books[uid]; !ok {
				return ErrBookNotFound
			}
			delete(books, uid)
			return nil
		},
		UpdateFunc: func(_ context.Context, book BookEntity) error {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := books[book.UID]; !ok {
				return ErrBookNotFound
			}
			books[book.UID] = book
			return nil
		},
		PatchFunc: func(_ context.Context, uid uuid.UUID, req UpdateRequest, now time.Time) (BookEntity, bool, error) {
			mu.Lock()
			defer mu.Unlock()
			book, ok := books[uid]
			if !ok {
				return BookEntity{}, false, ErrBookNotFound
			}
			if !book.Apply(req, now) {
				return book, false, nil
			}
			books[uid] = book
			return book, true, nil
		},
		GetAllFunc: func(_ context.Context) ([]BookEntity, error) {
			mu.Lock()
			defer mu.Unlock()
			all := make([]BookEntity, 0, len(books))
			for _, book := range books {
				all = append(all, book)
			}
			return all, nil
		},
	}
}

// MockBookCache implements a fake BookCache. Nil funcs behave like an empty cache.
type MockBookCache struct {
	GetFunc   func(ctx context.Context, uid uuid.UUID) (BookEntity, error)
	SetFunc   func(ctx context.Context, book BookEntity) error
	EvictFunc func(ctx context.Context, uid uuid.UUID) error
}

func (m *MockBookCache) Get(ctx context.Context, uid uuid.UUID) (BookEntity, error) {
	if m.GetFunc == nil {
		return BookEntity{}, ErrCacheMiss
	}
	return m.GetFunc(ctx, uid)
}

func (m *MockBookCache) Set(ctx context.Context, book BookEntity) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, book)
}

func (m *MockBookCache) Evict(ctx context.Context, uid uuid.UUID) error {
	if m.EvictFunc == nil {
		return nil
	}
	return m.EvictFunc(ctx, uid)
}

// MockQueuer implements a fake Queuer.
type MockQueuer struct {
	PushFunc func(ctx context.Context, qid string, book BookEntity) error
	PopFunc  func(ctx context.Context, qids ...string) (string, BookEntity, error)
}

func (m *MockQueuer) Push(ctx context.Context, qid string, book BookEntity) error {
	if m.PushFunc == nil {
		return nil
	}
	return m.PushFunc(ctx, qid, book)
}

func (m *MockQueuer) Pop(ctx context.Context, qids ...string) (string, BookEntity, error) {
	return m.PopFunc(ctx, qids...)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `2023-07-02T00:00:00Z` in time.RFC3339 format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler which always generates the same uid.
type MockUIDHandler struct {
	IDsHandler
	MockedUID uuid.UUID
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: uuid.Must(uuid.FromString(id))}
}

// Generate returns the predictable uid.
func (muid *MockUIDHandler) Generate() (uuid.UUID, error) {
	return muid.MockedUID, nil
}

const testBookUID = "cb8f2136-fae4-4200-85d9-3533c7f8c70d"

// newTestBook returns a complete and consistent book record.
func newTestBook() BookEntity {
	created := time.Date(2023, 7, 1, 20, 19, 10, 760463000, time.UTC)
	return BookEntity{
		UID:           uuid.Must(uuid.FromString(testBookUID)),
		Title:         "Dune",
		Author:        "Frank Herbert",
		Publisher:     "Chilton Books",
		PublishedDate: time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC),
		PageCount:     412,
		Language:      "English",
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}
