// Package repository provides MongoDB access for users and tours.
package repository

import (
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Zacison/natours-backend/utils"
)

var quoted = regexp.MustCompile(`"(?:\\.|[^"\\])*"`)

// translate maps driver failures onto AppErrors. notFound is the message
// used when no document matched.
func translate(err error, notFound, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return utils.NewNotFound(notFound).WithCause(err)
	case mongo.IsDuplicateKeyError(err):
		return utils.DuplicateField(duplicateValue(err), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// duplicateValue pulls the first quoted value out of an E11000 message.
func duplicateValue(err error) string {
	if m := quoted.FindString(err.Error()); m != "" {
		return m
	}
	return "(unknown)"
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, utils.CastError("_id", id)
	}
	return oid, nil
}
