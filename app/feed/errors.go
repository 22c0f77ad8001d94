package feed

import (
	"errors"
	"fmt"
)

var (
	ErrLoadFailed  = errors.New("cannot load feed")
	ErrParseFailed = errors.New("cannot parse feed")
	ErrInvalid     = errors.New("invalid feed")
	ErrReadOnly    = errors.New("read-only feed")
)

// ReadOnlyError is returned for any write attempted on a Feed.
type ReadOnlyError struct {
	Field string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("cannot assign to a read-only property '%s'", e.Field)
}

func (e *ReadOnlyError) Unwrap() error {
	return ErrReadOnly
}
