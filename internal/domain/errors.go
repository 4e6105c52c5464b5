package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is returned for a record that cannot be stored. It is
// scoped to one record; importers skip the record and continue.
var ErrInvalidRecord = errors.New("invalid record")

// ValidationError describes why a single record was rejected.
type ValidationError struct {
	Chain   string
	Address string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %s/%q: %s", e.Chain, e.Address, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRecord
}
