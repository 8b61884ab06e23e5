package download

import (
	"errors"
	"fmt"
)

var (
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrDestinationExists = errors.New("destination exists")
)

type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
