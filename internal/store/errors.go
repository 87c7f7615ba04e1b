package store

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a write violates a uniqueness constraint.
var ErrAlreadyExists = errors.New("already exists")

// translate maps driver specific constraint violations onto store errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
		return ErrAlreadyExists
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}
