package docstore

import (
	"errors"
	"fmt"

	"eshop/internal/sentinel"
	dErrors "eshop/pkg/domain-errors"
)

// DomainError translates a store error into the domain error returned to
// clients. notFound is the message used for missing documents. Domain
// errors pass through unchanged.
func DomainError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	var dup *DuplicateKeyError
	switch {
	case errors.As(err, &dup):
		return dErrors.Wrap(err, dErrors.CodeConflict,
			fmt.Sprintf("Duplicate field value: %s. Please use another value!", dup.Field))
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, notFound)
	case errors.Is(err, sentinel.ErrInvalidID):
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "Invalid _id")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}
}
