// Package sanitize validates the operator-supplied names that end up in
// vector store requests and on-disk paths.
//
// Keyspace and collection names must match ^[A-Za-z0-9][A-Za-z0-9_.-]*$
// and be at most 255 bytes, which every supported store accepts.
package sanitize

import (
	"errors"
	"fmt"
	"regexp"
)

// MaxNameLength is the longest accepted keyspace or collection name.
const MaxNameLength = 255

// ErrInvalidName indicates a keyspace or collection name is malformed.
var ErrInvalidName = errors.New("invalid name")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateName checks a keyspace or collection name. field names the
// setting in error messages.
//
// Examples:
//
//	"fr_site"       -> ok
//	"vector.v2"     -> ok
//	"../etc"        -> ErrInvalidName
//	"sites/fr"      -> ErrInvalidName
func ValidateName(name, field string) error {
	if name == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidName, field)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %s longer than %d bytes", ErrInvalidName, field, MaxNameLength)
	}
	if name == "." || name == ".." || !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %s %q must be letters, digits, '_', '.' or '-' and start with a letter or digit", ErrInvalidName, field, name)
	}
	return nil
}
