// Package validate holds composable string rules for domain fields.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrRequired = errors.New("this field is required")

// Validator checks a single string value.
type Validator func(value string) error

// Field runs validators in order and labels the first failure with name.
func Field(name string, validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		return nil
	}
}

// Required rejects empty and whitespace-only values.
func Required() Validator {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return ErrRequired
		}
		return nil
	}
}

// MaxLength bounds the value in characters, not bytes.
func MaxLength(max int) Validator {
	return func(v string) error {
		if n := utf8.RuneCountInString(v); n > max {
			return fmt.Errorf("must be no more than %d characters, got %d", max, n)
		}
		return nil
	}
}

// Printable rejects control characters and invalid UTF-8.
func Printable() Validator {
	return func(v string) error {
		if !utf8.ValidString(v) {
			return errors.New("must be valid UTF-8")
		}
		for _, r := range v {
			if unicode.IsControl(r) {
				return errors.New("must not contain control characters")
			}
		}
		return nil
	}
}
