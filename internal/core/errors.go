package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds shared across subsystems. Callers branch with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrAmbiguous  = errors.New("ambiguous reference")
	ErrValidation = errors.New("invalid input")
	ErrConflict   = errors.New("conflict")
	ErrMigration  = errors.New("migration failed")
	ErrStorage    = errors.New("storage failure")
	ErrTimeout    = errors.New("timed out")
	ErrWorker     = errors.New("worker failed")
)

// NotFoundError reports a missing entity by kind and reference.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Ref)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AmbiguousError reports a short id matching multiple rows.
// Candidates carries the full ids so callers can disambiguate.
type AmbiguousError struct {
	Ref        string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous id %q matches %d entries: %s",
		e.Ref, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguous
}

// ConflictError reports a name collision on rename or create.
type ConflictError struct {
	Kind string
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// MigrationError reports a failed or destructive schema migration.
type MigrationError struct {
	DB        string
	Migration string
	Reason    string
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s on %s failed: %s", e.Migration, e.DB, e.Reason)
}

func (e *MigrationError) Is(target error) bool {
	return target == ErrMigration
}
