// Package storage provides the artifact store: named objects grouped by
// scope (one scope per business results directory).
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Object describes a stored artifact.
type Object struct {
	Scope   string
	Name    string
	Size    int64
	ModTime time.Time
}

// Key returns the scope/name locator of the object.
func (o Object) Key() string {
	return JoinKey(o.Scope, o.Name)
}

// Store lists, reads, writes and deletes artifacts. The empty scope is the
// store root. Implementations must be safe for concurrent use; Write must
// be durable before it returns.
type Store interface {
	// ListScopes returns the non-hidden scopes, sorted.
	ListScopes(ctx context.Context) ([]string, error)
	// List returns the objects directly inside scope, sorted by name.
	// A missing scope yields an empty list.
	List(ctx context.Context, scope string) ([]Object, error)
	Read(ctx context.Context, scope, name string) ([]byte, error)
	Write(ctx context.Context, scope, name string, data []byte) error
	// Delete removes an object and reports whether it existed.
	Delete(ctx context.Context, scope, name string) (bool, error)
}

// NameError reports a scope or object name that would escape the store.
type NameError struct {
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("invalid storage name: %q", e.Name)
}

// JoinKey builds a scope/name locator.
func JoinKey(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "/" + name
}

// SplitKey splits a scope/name locator at its last slash.
func SplitKey(key string) (scope, name string) {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}

// ReadKey reads the object addressed by a scope/name locator.
func ReadKey(ctx context.Context, s Store, key string) ([]byte, error) {
	scope, name := SplitKey(key)
	return s.Read(ctx, scope, name)
}

// validName rejects names that are empty, hidden-path tricks, or contain
// separators.
func validName(name string, allowEmpty bool) error {
	if name == "" {
		if allowEmpty {
			return nil
		}
		return &NameError{Name: name}
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return &NameError{Name: name}
	}
	return nil
}
