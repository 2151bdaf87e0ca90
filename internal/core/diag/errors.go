package diag

import (
	"strings"
)

// ErrorList is just a list of errors.
// It is used to collect failures across several pipeline files.
type ErrorList []error

// ToStringList returns the list of errors as a slice of strings.
func (e *ErrorList) ToStringList() []string {
	errStrings := make([]string, len(*e))
	for i, err := range *e {
		errStrings[i] = err.Error()
	}
	return errStrings
}

// Error implements the error interface.
// It returns a string with all the errors separated by a blank line.
func (e ErrorList) Error() string {
	return strings.Join(e.ToStringList(), "\n\n")
}

// Unwrap allows errors.Is and errors.As to inspect every error in the list.
func (e ErrorList) Unwrap() []error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// ErrOrNil returns nil for an empty list.
func (e ErrorList) ErrOrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// FileError attaches the pipeline file to an error.
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return e.File + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error { return e.Err }
