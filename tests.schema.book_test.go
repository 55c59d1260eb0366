package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreatePayload() map[string]any {
	return map[string]any{
		"title":          "Dune",
		"author":         "Frank Herbert",
		"publisher":      "Chilton",
		"published_date": "1965-08-01",
		"page_count":     412,
		"language":       "English",
	}
}

// decodePayload goes through the same decoding path as the handlers.
func decodePayload(t *testing.T, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/books", bytes.NewBufferString(body))
	raw, err := DecodeBookRequestBody(req)
	require.NoError(t, err)
	return raw
}

func requireValidationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected a validation error, got %v", err)
	return vErr
}

func TestValidateCreate(t *testing.T) {
	t.Run("should pass: dune example", func(t *testing.T) {
		req, err := ValidateCreate(validCreatePayload())
		require.NoError(t, err)
		assert.Equal(t, "Dune", req.Title)
		assert.Equal(t, "Frank Herbert", req.Author)
		assert.Equal(t, "Chilton", req.Publisher)
		assert.Equal(t, time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC), req.PublishedDate)
		assert.Equal(t, 412, req.PageCount)
		assert.Equal(t, "English", req.Language)
	})

	t.Run("should pass: decoded json body", func(t *testing.T) {
		raw := decodePayload(t, `{"title":"Dune","author":"Frank Herbert","publisher":"Chilton",
			"published_date":"1965-08-01","page_count":412,"language":"English","unknown":true}`)
		req, err := ValidateCreate(raw)
		require.NoError(t, err)
		assert.Equal(t, 412, req.PageCount)
	})

	t.Run("should fail: each missing field is named", func(t *testing.T) {
		for _, field := range []string{FieldTitle, FieldAuthor, FieldPublisher, FieldPublishedDate, FieldPageCount, FieldLanguage} {
			raw := validCreatePayload()
			delete(raw, field)
			_, err := ValidateCreate(raw)
			vErr := requireValidationError(t, err)
			assert.Equal(t, []string{field}, vErr.Fields(), field)
			assert.Equal(t, "field required", vErr.Issues[0].Reason)
		}
	})

	t.Run("should fail: partial invalid example lists every issue", func(t *testing.T) {
		_, err := ValidateCreate(map[string]any{"title": "Dune", "page_count": -5})
		vErr := requireValidationError(t, err)
		assert.ElementsMatch(t,
			[]string{FieldAuthor, FieldPublisher, FieldPublishedDate, FieldPageCount, FieldLanguage},
			vErr.Fields(),
		)
		assert.False(t, vErr.Has(FieldTitle))
	})

	t.Run("should fail: negative page count", func(t *testing.T) {
		raw := validCreatePayload()
		raw[FieldPageCount] = -1
		_, err := ValidateCreate(raw)
		vErr := requireValidationError(t, err)
		assert.Equal(t, []FieldIssue{{Field: FieldPageCount, Reason: "must be greater than or equal to 0"}}, vErr.Issues)
	})

	t.Run("should fail: wrong types and blank text", func(t *testing.T) {
		raw := validCreatePayload()
		raw[FieldTitle] = 42
		raw[FieldAuthor] = "   "
		raw[FieldLanguage] = nil
		raw[FieldPublishedDate] = "yesterday"
		raw[FieldPageCount] = "many"
		_, err := ValidateCreate(raw)
		vErr := requireValidationError(t, err)
		assert.Equal(t, []FieldIssue{
			{Field: FieldTitle, Reason: "must be a string"},
			{Field: FieldAuthor, Reason: "must not be empty"},
			{Field: FieldPublishedDate, Reason: "must be a calendar date such as 2006-01-02"},
			{Field: FieldPageCount, Reason: "must be an integer"},
			{Field: FieldLanguage, Reason: "must not be null"},
		}, vErr.Issues)
	})

	t.Run("should pass: zero page count", func(t *testing.T) {
		raw := validCreatePayload()
		raw[FieldPageCount] = 0
		req, err := ValidateCreate(raw)
		require.NoError(t, err)
		assert.Equal(t, 0, req.PageCount)
	})
}

func TestValidateUpdate(t *testing.T) {
	t.Run("should pass: empty payload changes nothing", func(t *testing.T) {
		req, err := ValidateUpdate(map[string]any{})
		require.NoError(t, err)
		assert.True(t, req.IsEmpty())
		assert.False(t, req.Title.IsSet())
		assert.False(t, req.Author.IsSet())
		assert.False(t, req.Publisher.IsSet())
		assert.False(t, req.PageCount.IsSet())
		assert.False(t, req.Language.IsSet())
	})

	t.Run("should pass: only page count changes", func(t *testing.T) {
		req, err := ValidateUpdate(decodePayload(t, `{"page_count": 500}`))
		require.NoError(t, err)
		v, ok := req.PageCount.Get()
		assert.True(t, ok)
		assert.Equal(t, 500, v)
		assert.False(t, req.Title.IsSet())
		assert.False(t, req.Author.IsSet())
		assert.False(t, req.Publisher.IsSet())
		assert.False(t, req.Language.IsSet())
		assert.False(t, req.IsEmpty())
	})

	t.Run("should fail: negative page count", func(t *testing.T) {
		_, err := ValidateUpdate(map[string]any{"page_count": -3})
		vErr := requireValidationError(t, err)
		assert.Equal(t, []string{FieldPageCount}, vErr.Fields())
	})

	t.Run("should fail: published date is immutable", func(t *testing.T) {
		_, err := ValidateUpdate(map[string]any{"published_date": "1966-01-01", "title": "Dune Messiah"})
		vErr := requireValidationError(t, err)
		assert.Equal(t, []FieldIssue{{Field: FieldPublishedDate, Reason: "cannot be changed after creation"}}, vErr.Issues)
	})

	t.Run("should fail: explicit null and blank values", func(t *testing.T) {
		_, err := ValidateUpdate(map[string]any{"title": nil, "language": "", "author": "Brian Herbert"})
		vErr := requireValidationError(t, err)
		assert.Equal(t, []FieldIssue{
			{Field: FieldTitle, Reason: "must not be null"},
			{Field: FieldLanguage, Reason: "must not be empty"},
		}, vErr.Issues)
	})
}

func TestParsePageCount(t *testing.T) {
	testCases := []struct {
		name   string
		input  any
		want   int
		reason string
	}{
		{"int", 412, 412, ""},
		{"int64", int64(7), 7, ""},
		{"integral float", float64(300), 300, ""},
		{"json number", json.Number("412"), 412, ""},
		{"json number with zero fraction", json.Number("412.0"), 412, ""},
		{"numeric string", " 12 ", 12, ""},
		{"fraction", 12.5, 0, "must be an integer"},
		{"json fraction", json.Number("1.5"), 0, "must be an integer"},
		{"negative", -1, 0, "must be greater than or equal to 0"},
		{"negative string", "-4", 0, "must be greater than or equal to 0"},
		{"too large", int64(1) << 40, 0, errTooLarge.Error()},
		{"boolean", true, 0, "must be an integer"},
		{"word", "ten", 0, "must be an integer"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePageCount(tc.input)
			if tc.reason != "" {
				require.Error(t, err)
				assert.Equal(t, tc.reason, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseCalendarDate(t *testing.T) {
	want := time.Date(1965, 8, 1, 0, 0, 0, 0, time.UTC)
	for _, input := range []string{"1965-08-01", "1965/08/01", "August 1, 1965", "Aug 1, 1965", "1965-08-01T15:04:05+02:00"} {
		t.Run(input, func(t *testing.T) {
			got, err := ParseCalendarDate(input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	// day-first and month-first numeric dates cannot be told apart.
	for _, input := range []any{"1965-13-01", "", 19650801, nil, "01-08-1965", "08-01-1965"} {
		_, err := ParseCalendarDate(input)
		assert.Error(t, err, "input %v", input)
	}
}

func TestToReadModel(t *testing.T) {
	t.Run("should pass: renders canonical text", func(t *testing.T) {
		book := newTestBook()
		view, err := ToReadModel(book)
		require.NoError(t, err)
		assert.Equal(t, ReadResponse{
			UID:           testBookUID,
			Title:         "Dune",
			Author:        "Frank Herbert",
			Publisher:     "Chilton Books",
			PublishedDate: "1965-08-01T00:00:00Z",
			PageCount:     412,
			Language:      "English",
			CreatedAt:     "2023-07-01T20:19:10.760463Z",
			UpdatedAt:     "2023-07-01T20:19:10.760463Z",
		}, view)
	})

	t.Run("should pass: timestamps are rendered in utc", func(t *testing.T) {
		book := newTestBook()
		book.UpdatedAt = book.CreatedAt.Add(time.Hour).In(time.FixedZone("WAT", 3600))
		view, err := ToReadModel(book)
		require.NoError(t, err)
		assert.Equal(t, "2023-07-01T21:19:10.760463Z", view.UpdatedAt)
	})

	t.Run("should pass: round trip reproduces the entity", func(t *testing.T) {
		book := newTestBook()
		book.UpdatedAt = book.CreatedAt.Add(36 * time.Hour)
		view, err := ToReadModel(book)
		require.NoError(t, err)
		back, err := FromReadModel(view)
		require.NoError(t, err)
		assert.Equal(t, book, back)
	})

	t.Run("should fail: incomplete entity", func(t *testing.T) {
		book := newTestBook()
		book.UID = uuid.Nil
		book.Author = ""
		book.CreatedAt = time.Time{}
		_, err := ToReadModel(book)
		var shapeErr *ShapeError
		require.True(t, errors.As(err, &shapeErr))
		assert.Equal(t, []string{FieldUID, FieldAuthor, FieldCreatedAt}, shapeErr.Fields)
	})

	t.Run("should fail: updated before created", func(t *testing.T) {
		book := newTestBook()
		book.UpdatedAt = book.CreatedAt.Add(-time.Second)
		_, err := ToReadModel(book)
		var shapeErr *ShapeError
		require.True(t, errors.As(err, &shapeErr))
		assert.Equal(t, []string{FieldUpdatedAt}, shapeErr.Fields)
	})
}

func TestFromReadModel(t *testing.T) {
	_, err := FromReadModel(ReadResponse{UID: "not-a-uuid", PublishedDate: "1965-08-01T00:00:00Z"})
	var shapeErr *ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, []string{FieldUID, FieldCreatedAt, FieldUpdatedAt}, shapeErr.Fields)
}

func TestBookEntityApply(t *testing.T) {
	later := newTestBook().CreatedAt.Add(time.Hour)

	t.Run("only present fields change", func(t *testing.T) {
		book := newTestBook()
		changed := book.Apply(UpdateRequest{PageCount: Set(500)}, later)
		assert.True(t, changed)
		assert.Equal(t, 500, book.PageCount)
		assert.Equal(t, "Dune", book.Title)
		assert.Equal(t, later, book.UpdatedAt)
	})

	t.Run("same values keep updated_at", func(t *testing.T) {
		book := newTestBook()
		changed := book.Apply(UpdateRequest{Title: Set("Dune")}, later)
		assert.False(t, changed)
		assert.Equal(t, book.CreatedAt, book.UpdatedAt)
	})

	t.Run("updated_at never goes before created_at", func(t *testing.T) {
		book := newTestBook()
		changed := book.Apply(UpdateRequest{Language: Set("French")}, book.CreatedAt.Add(-time.Hour))
		assert.True(t, changed)
		assert.Equal(t, book.CreatedAt, book.UpdatedAt)
	})
}

func TestBookSchemaConcurrentUse(t *testing.T) {
	layouts := append([]string(nil), dateLayouts...)
	sentinels := []error{errFieldRequired, errFieldNull, errNotText, errBlankText, errNotDate,
		errNotInteger, errNegativeInteger, errTooLarge, errImmutable}
	reasons := make([]string, 0, len(sentinels))
	for _, err := range sentinels {
		reasons = append(reasons, err.Error())
	}

	create := validCreatePayload()
	badCreate := map[string]any{"title": " ", "published_date": "08-01-1965", "page_count": -1}
	update := map[string]any{"title": "Dune Messiah", "page_count": "500"}
	badUpdate := map[string]any{"published_date": "1966-01-01", "language": nil}
	book := newTestBook()

	wantCreate, err := ValidateCreate(create)
	require.NoError(t, err)
	_, err = ValidateCreate(badCreate)
	require.Error(t, err)
	wantCreateErr := err.Error()
	wantUpdate, err := ValidateUpdate(update)
	require.NoError(t, err)
	_, err = ValidateUpdate(badUpdate)
	require.Error(t, err)
	wantUpdateErr := err.Error()
	wantView, err := ToReadModel(book)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				gotCreate, err := ValidateCreate(create)
				assert.NoError(t, err)
				assert.Equal(t, wantCreate, gotCreate)
				_, err = ValidateCreate(badCreate)
				assert.EqualError(t, err, wantCreateErr)

				gotUpdate, err := ValidateUpdate(update)
				assert.NoError(t, err)
				assert.Equal(t, wantUpdate, gotUpdate)
				_, err = ValidateUpdate(badUpdate)
				assert.EqualError(t, err, wantUpdateErr)

				view, err := ToReadModel(book)
				assert.NoError(t, err)
				assert.Equal(t, wantView, view)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, layouts, dateLayouts)
	for i, err := range sentinels {
		assert.Equal(t, reasons[i], err.Error())
	}
	assert.Equal(t, validCreatePayload(), create)
	assert.Equal(t, map[string]any{"title": "Dune Messiah", "page_count": "500"}, update)
	assert.Equal(t, newTestBook(), book)
}
