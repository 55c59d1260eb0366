package main

import (
	"github.com/julienschmidt/httprouter"
)

// BooksPath is the base path of the book endpoints.
const BooksPath = "/api/v1/books"

// SetupBookRoutes injects book related the api endpoints.
func (api *APIHandler) SetupBookRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	router.GET("/", m.public(api.Index))
	router.GET("/status", m.public(api.Status))
	router.GET("/get_headers", m.public(api.GetHeaders))
	router.POST(BooksPath, m.public(api.CreateBook))
	router.GET(BooksPath, m.public(api.GetAllBooks))
	router.GET(BooksPath+"/:uid", m.public(api.GetOneBook))
	router.PATCH(BooksPath+"/:uid", m.public(api.UpdateBook))
	router.DELETE(BooksPath+"/:uid", m.public(api.DeleteOneBook))
	return router
}
