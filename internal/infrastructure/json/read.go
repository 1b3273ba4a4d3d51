package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const DefaultMaxBodyBytes int64 = 1 << 20

var (
	ErrEmptyBody    = errors.New("request body must not be empty")
	ErrBodyTooLarge = errors.New("request body too large")
)

// Read decodes a single JSON document from the request body into dst. The
// body is capped at maxBytes (DefaultMaxBodyBytes when maxBytes <= 0).
func Read(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError

		switch {
		case errors.Is(err, io.EOF):
			return ErrEmptyBody
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, maxErr.Limit)
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("malformed JSON")
		case errors.As(err, &typeErr):
			if typeErr.Field != "" {
				return fmt.Errorf("field %q must be of type %s", typeErr.Field, typeErr.Type)
			}
			return fmt.Errorf("body must be a JSON %s", typeErr.Type)
		default:
			return err
		}
	}

	if dec.More() {
		return errors.New("body must contain a single JSON document")
	}
	return nil
}
