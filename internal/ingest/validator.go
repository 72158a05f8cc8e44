package ingest

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/docid"
)

const (
	maxURILength  = 2048
	maxTextLength = 8 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// Validate checks a message before it reaches the indexer. An empty Op is
// treated as OpIndex.
func Validate(msg *Message) error {
	errs := make(map[string]string)

	if msg.Op == "" {
		msg.Op = OpIndex
	}
	switch msg.Op {
	case OpIndex, OpRemove, OpProperties:
	default:
		errs["op"] = fmt.Sprintf("unknown op %q", msg.Op)
	}

	uri := strings.TrimSpace(msg.URI)
	switch {
	case uri == "":
		errs["uri"] = "uri is required"
	case len(uri) > maxURILength:
		errs["uri"] = fmt.Sprintf("uri must be at most %d characters", maxURILength)
	default:
		if _, err := docid.Parse(uri); err != nil {
			errs["uri"] = "uri must be an absolute uri with a scheme"
		}
	}
	msg.URI = uri

	if msg.Op == OpIndex && len(msg.Text) > maxTextLength {
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxTextLength)
	}
	if msg.Op != OpProperties && msg.Properties != nil {
		errs["properties"] = fmt.Sprintf("properties are only accepted with op %q", OpProperties)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
