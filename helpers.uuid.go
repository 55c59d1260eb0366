package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
)

var _ UIDHandler = (*IDsHandler)(nil) // ensure IDsHandler implements UIDHandler.

var ErrInvalidBookUID = errors.New("invalid book uid")

// UIDHandler is an interface for generating and parsing book uids.
type UIDHandler interface {
	Generate() (uuid.UUID, error)
	Parse(id string) (uuid.UUID, error)
}

// IDsHandler implements the UIDHandler interface with random v4 uuids.
type IDsHandler struct{}

// NewIDsHandler returns a ready to use IDsHandler.
func NewIDsHandler() *IDsHandler {
	return &IDsHandler{}
}

// Generate provides a random unique identifier.
func (idh *IDsHandler) Generate() (uuid.UUID, error) {
	return uuid.NewV4()
}

// Parse converts a canonical uuid text into its value. The nil uuid is rejected.
func (idh *IDsHandler) Parse(id string) (uuid.UUID, error) {
	u, err := uuid.FromString(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %q: %v", ErrInvalidBookUID, id, err)
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w %q: nil uuid", ErrInvalidBookUID, id)
	}
	return u, nil
}

// GenerateRequestID provides a random request id with the given prefix.
func GenerateRequestID(prefix string) string {
	id, err := uuid.NewV4()
	if err != nil {
		return prefix + ":" + uuid.Nil.String()
	}
	return prefix + ":" + id.String()
}
