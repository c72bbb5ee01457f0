// Package store persists the service's flat JSON documents.
//
// Each collection is one named document that is read whole and replaced
// whole. Backends guarantee that Update calls for the same document never
// interleave, so read-modify-write cycles cannot lose each other's changes.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Document names.
const (
	DocUsers       = "users"
	DocAdmins      = "admins"
	DocPermissions = "permissions"
	DocRequests    = "requests"
	DocApprovals   = "approvals"
	DocBlacklist   = "blacklist"
)

// MutateFunc receives the current document body (nil when the document does
// not exist yet) and returns the body to persist.
type MutateFunc func(current []byte) ([]byte, error)

// Store is a named-document store.
type Store interface {
	// Read returns the document body, or nil when the document does not exist.
	Read(ctx context.Context, name string) ([]byte, error)
	// Update runs fn as the single writer of the named document.
	Update(ctx context.Context, name string, fn MutateFunc) error
	Ping(ctx context.Context) error
	Close() error
}

// Load decodes a document into a T. Missing, blank and null documents
// yield init().
func Load[T any](ctx context.Context, s Store, name string, init func() T) (T, error) {
	raw, err := s.Read(ctx, name)
	if err != nil {
		var zero T
		return zero, err
	}

	return decode(name, raw, init)
}

// Mutate decodes a document, applies fn and persists the result as the
// document's single writer. When fn returns an error nothing is written.
func Mutate[T any](ctx context.Context, s Store, name string, init func() T, fn func(doc *T) error) error {
	return s.Update(ctx, name, func(current []byte) ([]byte, error) {
		doc, err := decode(name, current, init)
		if err != nil {
			return nil, err
		}

		if err := fn(&doc); err != nil {
			return nil, err
		}

		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		return out, nil
	})
}

func decode[T any](name string, raw []byte, init func() T) (T, error) {
	doc := init()
	if isEmptyDocument(raw) {
		return doc, nil
	}

	if err := json.Unmarshal(raw, &doc); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s: %w", name, err)
	}
	return doc, nil
}

// isEmptyDocument reports whether raw carries no document at all. A JSON
// null counts as missing so it falls back to the defaults.
func isEmptyDocument(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
