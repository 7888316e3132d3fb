package dsmr

import (
	"errors"
	"fmt"
)

var (
	ErrFraming        = errors.New("dsmr: framing error")
	ErrChecksum       = errors.New("dsmr: checksum error")
	ErrHeader         = errors.New("dsmr: header error")
	ErrObisID         = errors.New("dsmr: obis id error")
	ErrValue          = errors.New("dsmr: value error")
	ErrDuplicateField = errors.New("dsmr: duplicate field")
	ErrUnknownField   = errors.New("dsmr: unknown field")
	ErrTrailingData   = errors.New("dsmr: trailing data")
)

// ParseError is returned by every decoding step. Kind is one of the
// package sentinels, so callers can match with errors.Is.
type ParseError struct {
	Kind   error
	Msg    string
	Offset int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Msg, e.Offset)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func fail(kind error, offset int, msg string) *ParseError {
	return &ParseError{Kind: kind, Msg: msg, Offset: offset}
}
