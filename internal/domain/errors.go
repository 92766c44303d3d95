package domain

import "errors"

var (
	// ErrCatalogUnavailable is returned when no catalog source yields data.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrNotFound is returned for unknown products or cart keys.
	ErrNotFound = errors.New("not found")
	// ErrInvalidVariant is returned when a variant is not offered by the product.
	ErrInvalidVariant = errors.New("invalid variant")
	// ErrInvalidQuantity is returned when a cart mutation uses a quantity below 1.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrGuardViolation is returned when a checkout transition guard fails.
	ErrGuardViolation = errors.New("guard violation")
	// ErrPersistence is returned when an order cannot be appended to the sink.
	ErrPersistence = errors.New("order could not be recorded")
	// ErrUnsupportedSubmission is returned for embedded payloads with an unknown kind.
	ErrUnsupportedSubmission = errors.New("unsupported submission kind")
)
