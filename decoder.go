package jsonpoll

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Decoder turns a raw response body into a value of type T.
//
// Implementations must be deterministic and safe to call repeatedly; the
// engine calls Decode once per tick from a single goroutine. Errors should be
// [*DecodeError] values; any other error is reported as a schema mismatch.
type Decoder[T any] interface {
	Decode(data []byte) (T, error)
}

// DecoderFunc adapts a plain function to the [Decoder] interface.
type DecoderFunc[T any] func(data []byte) (T, error)

// Decode calls f(data).
func (f DecoderFunc[T]) Decode(data []byte) (T, error) {
	return f(data)
}

// JSONDecoder decodes with [encoding/json] semantics: unknown object keys are
// ignored and missing keys leave zero values.
type JSONDecoder[T any] struct{}

// Decode unmarshals data into a fresh T.
func (JSONDecoder[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, classifyJSONError(err)
	}
	return v, nil
}

// StrictJSONDecoder is like [JSONDecoder] but treats unknown object keys and
// trailing data after the first JSON value as errors.
type StrictJSONDecoder[T any] struct{}

// Decode unmarshals data into a fresh T, rejecting unknown fields.
func (StrictJSONDecoder[T]) Decode(data []byte) (T, error) {
	var v, zero T

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return zero, classifyJSONError(err)
	}

	// exactly one JSON value is allowed
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return zero, &DecodeError{Kind: MalformedJSON, Err: err}
	}
	return v, nil
}

// classifyJSONError maps encoding/json errors onto the decode taxonomy.
func classifyJSONError(err error) *DecodeError {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &syntaxErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return &DecodeError{Kind: MalformedJSON, Err: err}
	case errors.As(err, &typeErr):
		return &DecodeError{Kind: SchemaMismatch, Err: err}
	default:
		// unknown fields and UnmarshalJSON failures land here
		return &DecodeError{Kind: SchemaMismatch, Err: err}
	}
}

// asDecodeError normalises errors from user-supplied decoders.
func asDecodeError(err error) error {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return err
	}
	return &DecodeError{Kind: SchemaMismatch, Err: err}
}
