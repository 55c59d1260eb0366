package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// Status provides basics details about the application to the public users.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := json.NewEncoder(w).Encode(
		StatusResponse{
			RequestID: requestID,
			Status:    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
			Message:   "Hello. Book review api is available. Enjoy :)",
		},
	); err != nil {
		api.logger.Error("failed to send status response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// GetHeaders echoes a few request headers back to the caller.
func (api *APIHandler) GetHeaders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	headers := map[string]string{
		"User-Agent":      r.UserAgent(),
		"Accept-Encoding": r.Header.Get("Accept-Encoding"),
		"Referer":         r.Referer(),
		"Accept-Language": r.Header.Get("Accept-Language"),
		"Connection":      r.Header.Get("Connection"),
		"Host":            r.Host,
	}
	resp := GenericResponse(requestID, http.StatusOK, "Request headers.", nil, headers)
	if err := WriteResponse(r.Context(), w, resp); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// NotFound replies to requests on unknown endpoints.
func (api *APIHandler) NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
		errResp := NewAPIError(requestID, http.StatusNotFound, "the requested resource does not exist", EmptyData)
		if err := WriteErrorResponse(r.Context(), w, errResp); err != nil {
			api.logger.Error("failed to send error response", zap.String("request.id", requestID), zap.Error(err))
		}
	})
}

// sendError translates a failure into its status code and api error body.
func (api *APIHandler) sendError(w http.ResponseWriter, r *http.Request, message string, err error) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	status := http.StatusInternalServerError
	var data interface{} = EmptyData

	var validationErr *ValidationError
	var shapeErr *ShapeError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusUnprocessableEntity
		data = validationErr.Issues
	case errors.Is(err, ErrInvalidRequestBody), errors.Is(err, ErrInvalidBookUID):
		status = http.StatusBadRequest
		data = err.Error()
	case errors.Is(err, ErrBookNotFound):
		status = http.StatusNotFound
		message = "book does not exist"
	case errors.As(err, &shapeErr):
		message = "internal consistency fault"
	}

	logger := api.logger.With(zap.String("request.id", requestID), zap.Int("status", status))
	if status >= http.StatusInternalServerError {
		logger.Error(message, zap.Error(err))
	} else {
		logger.Info(message, zap.Error(err))
	}

	errResp := NewAPIError(requestID, status, message, data)
	if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
		logger.Error("failed to send error response", zap.Error(err))
	}
}

func (api *APIHandler) sendBook(w http.ResponseWriter, r *http.Request, status int, message string, book BookEntity) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	view, err := ToReadModel(book)
	if err != nil {
		api.sendError(w, r, "failed to render the book", err)
		return
	}
	resp := GenericResponse(requestID, status, message, nil, view)
	if err = WriteResponse(r.Context(), w, resp); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// CreateBook godoc
// @Summary      Create a book
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        book  body      object  true  "title, author, publisher, published_date, page_count, language"
// @Success      201   {object}  APIResponse{data=ReadResponse}
// @Failure      400   {object}  APIError
// @Failure      422   {object}  APIError{data=[]FieldIssue}
// @Router       /api/v1/books [post]
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw, err := DecodeBookRequestBody(r)
	if err != nil {
		api.sendError(w, r, "failed to create the book", err)
		return
	}

	req, err := ValidateCreate(raw)
	if err != nil {
		api.sendError(w, r, "failed to create the book", err)
		return
	}

	book, err := api.bookService.Create(r.Context(), req)
	if err != nil {
		api.sendError(w, r, "failed to create the book", err)
		return
	}
	api.logger.Info("success to create book",
		zap.String("book.uid", book.UID.String()),
		zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
	)
	api.sendBook(w, r, http.StatusCreated, "Book created successfully.", book)
}

// GetAllBooks godoc
// @Summary      List all books
// @Tags         books
// @Produce      json
// @Success      200  {object}  APIResponse{data=[]ReadResponse}
// @Router       /api/v1/books [get]
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(api.config.Server.LongRequestWriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		api.logger.Error("http: failed to update the write deadline", zap.String("request.id", requestID), zap.Error(err))
	}

	books, err := api.bookService.GetAll(r.Context())
	if err != nil {
		api.sendError(w, r, "failed to get all books", err)
		return
	}

	views := make([]ReadResponse, 0, len(books))
	for _, book := range books {
		view, err := ToReadModel(book)
		if err != nil {
			api.sendError(w, r, "failed to render the books", err)
			return
		}
		views = append(views, view)
	}

	api.logger.Info("success to get all books", zap.String("request.id", requestID))
	total := len(views)
	resp := GenericResponse(requestID, http.StatusOK, "All books fetched successfully.", &total, views)
	if err = WriteResponse(r.Context(), w, resp); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// GetOneBook godoc
// @Summary      Get a book
// @Tags         books
// @Produce      json
// @Param        uid  path      string  true  "book uid"
// @Success      200  {object}  APIResponse{data=ReadResponse}
// @Failure      400  {object}  APIError
// @Failure      404  {object}  APIError
// @Router       /api/v1/books/{uid} [get]
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	uid, err := api.idsHandler.Parse(ps.ByName("uid"))
	if err != nil {
		api.sendError(w, r, "book uid provided is not valid", err)
		return
	}
	book, err := api.bookService.GetOne(r.Context(), uid)
	if err != nil {
		api.sendError(w, r, "failed to get the book", err)
		return
	}
	api.sendBook(w, r, http.StatusOK, "Book fetched successfully.", book)
}

// UpdateBook godoc
// @Summary      Update some fields of a book
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        uid   path      string  true  "book uid"
// @Param        book  body      object  true  "any of title, author, publisher, page_count, language"
// @Success      200   {object}  APIResponse{data=ReadResponse}
// @Failure      400   {object}  APIError
// @Failure      404   {object}  APIError
// @Failure      422   {object}  APIError{data=[]FieldIssue}
// @Router       /api/v1/books/{uid} [patch]
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	uid, err := api.idsHandler.Parse(ps.ByName("uid"))
	if err != nil {
		api.sendError(w, r, "book uid provided is not valid", err)
		return
	}

	raw, err := DecodeBookRequestBody(r)
	if err != nil {
		api.sendError(w, r, "failed to update the book", err)
		return
	}

	req, err := ValidateUpdate(raw)
	if err != nil {
		api.sendError(w, r, "failed to update the book", err)
		return
	}

	book, err := api.bookService.Update(r.Context(), uid, req)
	if err != nil {
		api.sendError(w, r, "failed to update the book", err)
		return
	}
	api.logger.Info("success to update book",
		zap.String("book.uid", book.UID.String()),
		zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
	)
	api.sendBook(w, r, http.StatusOK, "Book updated successfully.", book)
}

// DeleteOneBook godoc
// @Summary      Delete a book
// @Tags         books
// @Produce      json
// @Param        uid  path      string  true  "book uid"
// @Success      200  {object}  APIResponse{data=ReadResponse}
// @Failure      400  {object}  APIError
// @Failure      404  {object}  APIError
// @Router       /api/v1/books/{uid} [delete]
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	uid, err := api.idsHandler.Parse(ps.ByName("uid"))
	if err != nil {
		api.sendError(w, r, "book uid provided is not valid", err)
		return
	}
	book, err := api.bookService.Delete(r.Context(), uid)
	if err != nil {
		api.sendError(w, r, "failed to delete the book", err)
		return
	}
	api.logger.Info("success to delete book",
		zap.String("book.uid", uid.String()),
		zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
	)
	api.sendBook(w, r, http.StatusOK, "Book deleted successfully.", book)
}
