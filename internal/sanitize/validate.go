package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrPathTraversal indicates a path escapes its allowed root.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")
)

// JoinWithin joins elem onto root and returns the cleaned absolute path.
// It fails when the result would leave root.
func JoinWithin(root, elem string) (string, error) {
	if root == "" {
		return "", ErrEmptyPath
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}
	if elem == "" {
		return absRoot, nil
	}
	if filepath.IsAbs(elem) {
		return "", fmt.Errorf("%w: %q is absolute", ErrPathTraversal, elem)
	}

	joined := filepath.Join(absRoot, elem)
	rel, err := filepath.Rel(absRoot, joined)
	if err != nil {
		return "", fmt.Errorf("%w: path outside root", ErrPathTraversal)
	}
	// Rel yields ".." or "../x" once the path escapes.
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrPathTraversal, elem, absRoot)
	}
	return joined, nil
}
