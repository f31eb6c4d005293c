package service

import (
	"errors"
	"fmt"
)

var (
	ErrFolderNotFound = errors.New("folder not found")
	ErrInvalidRequest = errors.New("invalid publish request")
	ErrInvalidFolder  = errors.New("invalid folder")
	errDuplicateRepre = errors.New("duplicate representation name")
)

// Phase tells the caller which side effects are durable when a StoreError
// surfaces: a representation phase failure leaves the product/version
// changes committed.
type Phase string

const (
	PhaseProductVersion Phase = "product/version"
	PhaseRepresentation Phase = "representation"
)

type StoreError struct {
	Phase Phase
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed in %s phase: %v", e.Op, e.Phase, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
