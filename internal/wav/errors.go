package wav

import (
	"errors"
	"fmt"
)

// Structural errors returned by Parse.
var (
	ErrShortHeader        = errors.New("header window shorter than 44 bytes")
	ErrInvalidContainer   = errors.New("not a RIFF/WAVE container")
	ErrMissingFormatBlock = errors.New("format block not found at offset 12")
	ErrMissingDataBlock   = errors.New("data block not found at offset 36")
)

// TagError reports which tag failed to match and what was found instead.
type TagError struct {
	Err    error
	Offset int
	Found  [4]byte
}

func (e *TagError) Error() string {
	return fmt.Sprintf("%v: found %q at offset %d", e.Err, e.Found[:], e.Offset)
}

func (e *TagError) Unwrap() error {
	return e.Err
}

func tagError(err error, offset int, found []byte) error {
	return &TagError{Err: err, Offset: offset, Found: [4]byte(found)}
}
