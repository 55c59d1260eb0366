package main

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrCacheMiss    = errors.New("book not cached")
)

// BookEntity represents the persisted state of a book record.
type BookEntity struct {
	UID           uuid.UUID `json:"uid" gorm:"type:uuid;primaryKey"`
	Title         string    `json:"title" gorm:"not null"`
	Author        string    `json:"author" gorm:"not null"`
	Publisher     string    `json:"publisher" gorm:"not null"`
	PublishedDate time.Time `json:"published_date" gorm:"type:date;not null"`
	PageCount     int       `json:"page_count" gorm:"not null"`
	Language      string    `json:"language" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null;autoCreateTime:false"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null;autoUpdateTime:false"`
}

// TableName overrides the default gorm table name.
func (BookEntity) TableName() string {
	return "books"
}

// NewBookEntity builds a fresh record from a validated creation request.
func NewBookEntity(uid uuid.UUID, req CreateRequest, now time.Time) BookEntity {
	return BookEntity{
		UID:           uid,
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedDate: req.PublishedDate,
		PageCount:     req.PageCount,
		Language:      req.Language,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Apply copies every field present in the update request onto the book.
// It reports whether anything changed. UpdatedAt only moves on change
// and never goes before CreatedAt.
func (b *BookEntity) Apply(req UpdateRequest, now time.Time) bool {
	changed := false
	if v, ok := req.Title.Get(); ok && v != b.Title {
		b.Title = v
		changed = true
	}
	if v, ok := req.Author.Get(); ok && v != b.Author {
		b.Author = v
		changed = true
	}
	if v, ok := req.Publisher.Get(); ok && v != b.Publisher {
		b.Publisher = v
		changed = true
	}
	if v, ok := req.PageCount.Get(); ok && v != b.PageCount {
		b.PageCount = v
		changed = true
	}
	if v, ok := req.Language.Get(); ok && v != b.Language {
		b.Language = v
		changed = true
	}

	if !changed {
		return false
	}
	if now.Before(b.CreatedAt) {
		now = b.CreatedAt
	}
	b.UpdatedAt = now
	return true
}

// BookStorage defines possible operations on book entity.
type BookStorage interface {
	Add(ctx context.Context, book BookEntity) error
	GetOne(ctx context.Context, uid uuid.UUID) (BookEntity, error)
	Update(ctx context.Context, book BookEntity) error
	// Patch applies req to the stored book as one atomic step and returns
	// its latest state. It reports false when req changed nothing.
	Patch(ctx context.Context, uid uuid.UUID, req UpdateRequest, now time.Time) (BookEntity, bool, error)
	Delete(ctx context.Context, uid uuid.UUID) error
	GetAll(ctx context.Context) ([]BookEntity, error)
}

// BookCache defines a short-lived store for read-mostly book lookups.
// Get must return ErrCacheMiss when the record is not cached.
type BookCache interface {
	Get(ctx context.Context, uid uuid.UUID) (BookEntity, error)
	Set(ctx context.Context, book BookEntity) error
	Evict(ctx context.Context, uid uuid.UUID) error
}
