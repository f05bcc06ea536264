// Package apperr defines the failure kinds shared by every layer. Lower layers
// wrap backend errors in one of these kinds and the HTTP boundary maps each
// kind to a response status.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig             Kind = "config_error"
	KindSourceUnavailable  Kind = "source_unavailable"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindModel              Kind = "model_error"
	KindConflict           Kind = "conflict"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		err = errors.New(string(kind))
	}
	if Is(err, kind) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Config(op string, err error) error            { return wrap(KindConfig, op, err) }
func SourceUnavailable(op string, err error) error { return wrap(KindSourceUnavailable, op, err) }
func StorageUnavailable(op string, err error) error {
	return wrap(KindStorageUnavailable, op, err)
}
func Model(op string, err error) error    { return wrap(KindModel, op, err) }
func Conflict(op string, err error) error { return wrap(KindConflict, op, err) }

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
