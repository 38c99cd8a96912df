package protocol

import "errors"

var (
	// ErrTruncated is returned when input ends before a value is complete.
	ErrTruncated = errors.New("truncated input")

	// ErrMalformedString is returned for strings that are not valid UTF-8
	// or that declare a negative length.
	ErrMalformedString = errors.New("malformed string")

	// ErrVarIntTooBig is returned when a varint runs past five bytes.
	ErrVarIntTooBig = errors.New("varint is too big")

	// ErrInvalidAddress is returned when a destination is not "host:port".
	ErrInvalidAddress = errors.New("invalid server address")

	// ErrFrameTooLarge is returned when the server announces an oversized frame.
	ErrFrameTooLarge = errors.New("frame too large")
)
