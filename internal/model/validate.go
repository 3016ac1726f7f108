package model

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"
)

var (
	ErrEmptyValue   = errors.New("value is empty")
	ErrInvalidDate  = errors.New("value is not a date")
	ErrNotInteger   = errors.New("value is not an integer")
	ErrNoMatch      = errors.New("value does not match")
	ErrNotSelection = errors.New("value is not one of the allowed choices")
)

// Validator checks a single field value.
type Validator interface {
	Validate(v any) error
}

// ValidatorFunc adapts a function to [Validator].
type ValidatorFunc func(v any) error

// Validate calls f(v).
func (f ValidatorFunc) Validate(v any) error { return f(v) }

// DateLayouts are the accepted date formats, most specific first.
var DateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006"}

// NotEmpty rejects nil and empty strings.
func NotEmpty() Validator {
	return ValidatorFunc(func(v any) error {
		if isEmptyValue(v) {
			return ErrEmptyValue
		}
		return nil
	})
}

// Date accepts empty values, [time.Time] and strings in one of [DateLayouts].
func Date() Validator {
	return ValidatorFunc(func(v any) error {
		switch d := v.(type) {
		case nil, time.Time:
			return nil
		case string:
			if d == "" {
				return nil
			}
			if _, err := ParseDate(d); err != nil {
				return err
			}
			return nil
		}
		return fmt.Errorf("%w: %T", ErrInvalidDate, v)
	})
}

// ParseDate parses s with the first matching layout of [DateLayouts].
func ParseDate(s string) (time.Time, error) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Integer accepts empty values, integers and strings holding one.
func Integer() Validator {
	return ValidatorFunc(func(v any) error {
		switch n := v.(type) {
		case nil, int, int32, int64:
			return nil
		case string:
			if n == "" {
				return nil
			}
			if _, err := strconv.ParseInt(n, 10, 64); err != nil {
				return fmt.Errorf("%w: %q", ErrNotInteger, n)
			}
			return nil
		}
		return fmt.Errorf("%w: %T", ErrNotInteger, v)
	})
}

// Regex accepts empty values and strings matching pattern.
func Regex(pattern string) (Validator, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrInvalidArgument, pattern, err)
	}
	return ValidatorFunc(func(v any) error {
		if isEmptyValue(v) {
			return nil
		}
		s := fmt.Sprint(v)
		if !re.MatchString(s) {
			return fmt.Errorf("%w: %q !~ %s", ErrNoMatch, s, pattern)
		}
		return nil
	}), nil
}

// OneOf accepts empty values and values equal to one of choices.
func OneOf(choices ...any) Validator {
	return ValidatorFunc(func(v any) error {
		if isEmptyValue(v) || slices.Contains(choices, v) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrNotSelection, v)
	})
}
