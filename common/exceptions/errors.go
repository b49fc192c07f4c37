package exceptions

import (
	"errors"
	"strings"
)

type multiError struct {
	errors []error
}

func (e *multiError) Error() string {
	messages := make([]string, 0, len(e.errors))
	for _, err := range e.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, " | ")
}

func (e *multiError) Unwrap() []error {
	return e.errors
}

// Errors joins the non-nil errors, returning nil when there are none.
func Errors(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if multi, isMulti := err.(*multiError); isMulti {
			filtered = append(filtered, multi.errors...)
		} else {
			filtered = append(filtered, err)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	}
	return &multiError{filtered}
}

// IsMulti reports whether err matches any target; a joined error matches only
// when every inner error does.
func IsMulti(err error, targetList ...error) bool {
	if multi, isMulti := err.(*multiError); isMulti {
		for _, inner := range multi.errors {
			if !IsMulti(inner, targetList...) {
				return false
			}
		}
		return true
	}
	for _, target := range targetList {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
