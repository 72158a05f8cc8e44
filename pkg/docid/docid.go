// Package docid is the boundary between host-supplied object identifiers and
// the index. Identifiers enter the index only as canonical DocumentURL values;
// internal document numbers never leave it.
package docid

import (
	"fmt"
	"net/url"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// ObjectID is a stable identifier minted by the host's object store.
type ObjectID interface {
	URI() string
	// IsTemporary reports whether the identifier may still change, for
	// example before the object is first saved.
	IsTemporary() bool
}

// URI is an ObjectID for hosts whose identifiers are already URIs. It is
// always considered finalized.
type URI string

func (u URI) URI() string       { return string(u) }
func (u URI) IsTemporary() bool { return false }

// DocumentURL is the canonical string form of a finalized ObjectID.
type DocumentURL struct {
	raw string
}

// New canonicalizes id. Temporary, empty, or scheme-less identifiers are
// rejected with ErrInvalidDocumentID.
func New(id ObjectID) (DocumentURL, error) {
	if id == nil {
		return DocumentURL{}, fmt.Errorf("nil object id: %w", apperrors.ErrInvalidDocumentID)
	}
	if id.IsTemporary() {
		return DocumentURL{}, fmt.Errorf("temporary object id %q: %w", id.URI(), apperrors.ErrInvalidDocumentID)
	}
	return Parse(id.URI())
}

// Parse canonicalizes a raw URI string.
func Parse(raw string) (DocumentURL, error) {
	if raw == "" {
		return DocumentURL{}, fmt.Errorf("empty uri: %w", apperrors.ErrInvalidDocumentID)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return DocumentURL{}, fmt.Errorf("parsing uri %q: %w: %w", raw, apperrors.ErrInvalidDocumentID, err)
	}
	if u.Scheme == "" {
		return DocumentURL{}, fmt.Errorf("uri %q has no scheme: %w", raw, apperrors.ErrInvalidDocumentID)
	}
	return DocumentURL{raw: u.String()}, nil
}

func (d DocumentURL) String() string { return d.raw }

func (d DocumentURL) IsZero() bool { return d.raw == "" }

func (d DocumentURL) MarshalText() ([]byte, error) { return []byte(d.raw), nil }

func (d *DocumentURL) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Resolver maps a DocumentURL found by a search back to the host's object.
type Resolver interface {
	Resolve(u DocumentURL) (ObjectID, bool)
}

// MapResolver resolves from a fixed set of objects keyed by canonical URL.
type MapResolver map[string]ObjectID

// Add registers id under its canonical URL.
func (m MapResolver) Add(id ObjectID) error {
	u, err := New(id)
	if err != nil {
		return err
	}
	m[u.String()] = id
	return nil
}

func (m MapResolver) Resolve(u DocumentURL) (ObjectID, bool) {
	id, ok := m[u.String()]
	return id, ok
}
