package docid

import (
	"encoding/json"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type managedID struct {
	uri       string
	temporary bool
}

func (m managedID) URI() string       { return m.uri }
func (m managedID) IsTemporary() bool { return m.temporary }

func TestNewAcceptsFinalizedID(t *testing.T) {
	u, err := New(managedID{uri: "x-objects://store/Note/p1"})

	require.NoError(t, err)
	assert.Equal(t, "x-objects://store/Note/p1", u.String())
	assert.False(t, u.IsZero())
}

func TestNewRejectsInvalidIDs(t *testing.T) {
	tests := []struct {
		name string
		id   ObjectID
	}{
		{"nil", nil},
		{"temporary", managedID{uri: "x-objects:///Note/t42", temporary: true}},
		{"empty", URI("")},
		{"no scheme", URI("just/a/path")},
		{"malformed", URI("://bad")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id)
			assert.ErrorIs(t, err, apperrors.ErrInvalidDocumentID)
		})
	}
}

func TestDocumentURLTextRoundTrip(t *testing.T) {
	u, err := Parse("doc://a/1")
	require.NoError(t, err)

	data, err := json.Marshal(map[string]DocumentURL{"url": u})
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"doc://a/1"}`, string(data))

	var decoded map[string]DocumentURL
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, u, decoded["url"])
}

func TestMapResolver(t *testing.T) {
	r := MapResolver{}
	require.NoError(t, r.Add(URI("doc://a/1")))
	assert.ErrorIs(t, r.Add(managedID{uri: "doc://a/2", temporary: true}), apperrors.ErrInvalidDocumentID)

	u, _ := Parse("doc://a/1")
	id, ok := r.Resolve(u)
	require.True(t, ok)
	assert.Equal(t, "doc://a/1", id.URI())

	missing, _ := Parse("doc://a/9")
	_, ok = r.Resolve(missing)
	assert.False(t, ok)
}
