package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

// Wire names of the book fields.
const (
	FieldUID           = "uid"
	FieldTitle         = "title"
	FieldAuthor        = "author"
	FieldPublisher     = "publisher"
	FieldPublishedDate = "published_date"
	FieldPageCount     = "page_count"
	FieldLanguage      = "language"
	FieldCreatedAt     = "created_at"
	FieldUpdatedAt     = "updated_at"
)

// TimestampLayout is the ISO-8601 layout used for all timestamps on the wire.
const TimestampLayout = time.RFC3339Nano

// maxPageCount keeps page_count within a 32 bits signed integer on every platform.
const maxPageCount = math.MaxInt32

var (
	errFieldRequired   = errors.New("field required")
	errFieldNull       = errors.New("must not be null")
	errNotText         = errors.New("must be a string")
	errBlankText       = errors.New("must not be empty")
	errNotDate         = errors.New("must be a calendar date such as 2006-01-02")
	errNotInteger      = errors.New("must be an integer")
	errNegativeInteger = errors.New("must be greater than or equal to 0")
	errTooLarge        = fmt.Errorf("must be less than or equal to %d", maxPageCount)
	errImmutable       = errors.New("cannot be changed after creation")
)

// dateLayouts lists the accepted calendar date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// CreateRequest holds a validated book creation payload.
type CreateRequest struct {
	Title         string
	Author        string
	Publisher     string
	PublishedDate time.Time
	PageCount     int
	Language      string
}

// Field holds an optional value of an update request.
// The zero value means no change was requested.
type Field[T any] struct {
	value T
	set   bool
}

// Set returns a field which carries a requested value.
func Set[T any](v T) Field[T] {
	return Field[T]{value: v, set: true}
}

// Get returns the requested value and whether one was provided.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.set
}

// IsSet reports whether a change was requested.
func (f Field[T]) IsSet() bool {
	return f.set
}

// UpdateRequest holds a validated partial update payload. The
// publication date is immutable once the book has been created.
type UpdateRequest struct {
	Title     Field[string]
	Author    Field[string]
	Publisher Field[string]
	PageCount Field[int]
	Language  Field[string]
}

// IsEmpty reports whether no field change was requested at all.
func (u UpdateRequest) IsEmpty() bool {
	return !u.Title.IsSet() && !u.Author.IsSet() && !u.Publisher.IsSet() &&
		!u.PageCount.IsSet() && !u.Language.IsSet()
}

// ReadResponse is the wire representation of a persisted book.
type ReadResponse struct {
	UID           string `json:"uid"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Publisher     string `json:"publisher"`
	PublishedDate string `json:"published_date"`
	PageCount     int    `json:"page_count"`
	Language      string `json:"language"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// ValidateCreate checks a decoded creation payload and returns the
// validated request. On failure the returned error is a *ValidationError
// which lists every rejected field.
func ValidateCreate(raw map[string]any) (CreateRequest, error) {
	var req CreateRequest
	var err error
	v := &fieldValidator{}

	req.Title, err = requiredValue(raw, FieldTitle, ParseText)
	v.check(FieldTitle, err)
	req.Author, err = requiredValue(raw, FieldAuthor, ParseText)
	v.check(FieldAuthor, err)
	req.Publisher, err = requiredValue(raw, FieldPublisher, ParseText)
	v.check(FieldPublisher, err)
	req.PublishedDate, err = requiredValue(raw, FieldPublishedDate, ParseCalendarDate)
	v.check(FieldPublishedDate, err)
	req.PageCount, err = requiredValue(raw, FieldPageCount, ParsePageCount)
	v.check(FieldPageCount, err)
	req.Language, err = requiredValue(raw, FieldLanguage, ParseText)
	v.check(FieldLanguage, err)

	if err = v.err(); err != nil {
		return CreateRequest{}, err
	}
	return req, nil
}

// ValidateUpdate checks a decoded partial update payload. Absent fields
// stay unchanged, explicit nulls and the publication date are rejected.
// Unknown fields are ignored.
func ValidateUpdate(raw map[string]any) (UpdateRequest, error) {
	var req UpdateRequest
	var err error
	v := &fieldValidator{}

	req.Title, err = optionalValue(raw, FieldTitle, ParseText)
	v.check(FieldTitle, err)
	req.Author, err = optionalValue(raw, FieldAuthor, ParseText)
	v.check(FieldAuthor, err)
	req.Publisher, err = optionalValue(raw, FieldPublisher, ParseText)
	v.check(FieldPublisher, err)
	if _, ok := raw[FieldPublishedDate]; ok {
		v.check(FieldPublishedDate, errImmutable)
	}
	req.PageCount, err = optionalValue(raw, FieldPageCount, ParsePageCount)
	v.check(FieldPageCount, err)
	req.Language, err = optionalValue(raw, FieldLanguage, ParseText)
	v.check(FieldLanguage, err)

	if err = v.err(); err != nil {
		return UpdateRequest{}, err
	}
	return req, nil
}

// ToReadModel renders a persisted book into its wire representation.
// It fails with a *ShapeError if the record lacks any required field.
func ToReadModel(b BookEntity) (ReadResponse, error) {
	var bad []string
	if b.UID == uuid.Nil {
		bad = append(bad, FieldUID)
	}
	for _, f := range []struct {
		name  string
		value string
	}{
		{FieldTitle, b.Title},
		{FieldAuthor, b.Author},
		{FieldPublisher, b.Publisher},
	} {
		if strings.TrimSpace(f.value) == "" {
			bad = append(bad, f.name)
		}
	}
	if b.PublishedDate.IsZero() {
		bad = append(bad, FieldPublishedDate)
	}
	if b.PageCount < 0 {
		bad = append(bad, FieldPageCount)
	}
	if strings.TrimSpace(b.Language) == "" {
		bad = append(bad, FieldLanguage)
	}
	if b.CreatedAt.IsZero() {
		bad = append(bad, FieldCreatedAt)
	}
	if b.UpdatedAt.IsZero() || b.UpdatedAt.Before(b.CreatedAt) {
		bad = append(bad, FieldUpdatedAt)
	}
	if len(bad) > 0 {
		return ReadResponse{}, &ShapeError{Fields: bad}
	}

	return ReadResponse{
		UID:           b.UID.String(),
		Title:         b.Title,
		Author:        b.Author,
		Publisher:     b.Publisher,
		PublishedDate: FormatTimestamp(b.PublishedDate),
		PageCount:     b.PageCount,
		Language:      b.Language,
		CreatedAt:     FormatTimestamp(b.CreatedAt),
		UpdatedAt:     FormatTimestamp(b.UpdatedAt),
	}, nil
}

// FromReadModel parses a wire representation back into a book record.
func FromReadModel(r ReadResponse) (BookEntity, error) {
	var bad []string
	uid, err := uuid.FromString(r.UID)
	if err != nil || uid == uuid.Nil {
		bad = append(bad, FieldUID)
	}
	published, err := time.Parse(TimestampLayout, r.PublishedDate)
	if err != nil {
		bad = append(bad, FieldPublishedDate)
	}
	created, err := time.Parse(TimestampLayout, r.CreatedAt)
	if err != nil {
		bad = append(bad, FieldCreatedAt)
	}
	updated, err := time.Parse(TimestampLayout, r.UpdatedAt)
	if err != nil {
		bad = append(bad, FieldUpdatedAt)
	}
	if len(bad) > 0 {
		return BookEntity{}, &ShapeError{Fields: bad}
	}

	b := BookEntity{
		UID:           uid,
		Title:         r.Title,
		Author:        r.Author,
		Publisher:     r.Publisher,
		PublishedDate: published.UTC(),
		PageCount:     r.PageCount,
		Language:      r.Language,
		CreatedAt:     created.UTC(),
		UpdatedAt:     updated.UTC(),
	}
	// run the same completeness checks as the forward direction.
	if _, err = ToReadModel(b); err != nil {
		return BookEntity{}, err
	}
	return b, nil
}

// FormatTimestamp renders t as ISO-8601 text in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseText accepts a non-blank string value.
func ParseText(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", errNotText
	}
	if strings.TrimSpace(s) == "" {
		return "", errBlankText
	}
	return s, nil
}

// ParseCalendarDate accepts a date string in one of the known layouts
// and returns that day at midnight UTC.
func ParseCalendarDate(value any) (time.Time, error) {
	var t time.Time
	switch d := value.(type) {
	case time.Time:
		t = d
	case string:
		s := strings.TrimSpace(d)
		parsed := false
		for _, layout := range dateLayouts {
			if pt, err := time.Parse(layout, s); err == nil {
				t, parsed = pt, true
				break
			}
		}
		if !parsed {
			return time.Time{}, errNotDate
		}
	default:
		return time.Time{}, errNotDate
	}
	if t.IsZero() {
		return time.Time{}, errNotDate
	}
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), nil
}

// ParsePageCount accepts an integral number or a base-10 numeric string
// within [0, maxPageCount].
func ParsePageCount(value any) (int, error) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, errTooLarge
		}
		n = int64(v)
	case uint32:
		n = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return 0, errTooLarge
		}
		n = int64(v)
	case float32:
		return integralFloat(float64(v))
	case float64:
		return integralFloat(v)
	case json.Number:
		i, err := v.Int64()
		if err == nil {
			n = i
			break
		}
		f, ferr := v.Float64()
		if ferr != nil {
			return 0, errNotInteger
		}
		return integralFloat(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, errNotInteger
		}
		n = i
	default:
		return 0, errNotInteger
	}
	return boundedPageCount(n)
}

func integralFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, errNotInteger
	}
	if f > maxPageCount {
		return 0, errTooLarge
	}
	if f < 0 {
		return 0, errNegativeInteger
	}
	return int(f), nil
}

func boundedPageCount(n int64) (int, error) {
	if n < 0 {
		return 0, errNegativeInteger
	}
	if n > maxPageCount {
		return 0, errTooLarge
	}
	return int(n), nil
}

// requiredValue parses raw[field] and fails if it is absent or null.
func requiredValue[T any](raw map[string]any, field string, parse func(any) (T, error)) (T, error) {
	var zero T
	value, ok := raw[field]
	if !ok {
		return zero, errFieldRequired
	}
	if value == nil {
		return zero, errFieldNull
	}
	return parse(value)
}

// optionalValue parses raw[field] when present. An absent field yields an
// unset Field while an explicit null is rejected.
func optionalValue[T any](raw map[string]any, field string, parse func(any) (T, error)) (Field[T], error) {
	value, ok := raw[field]
	if !ok {
		return Field[T]{}, nil
	}
	if value == nil {
		return Field[T]{}, errFieldNull
	}
	v, err := parse(value)
	if err != nil {
		return Field[T]{}, err
	}
	return Set(v), nil
}
