package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

const snapshotVersion = 1

type opKind string

const (
	opIndex  opKind = "index"
	opRemove opKind = "remove"
	opProps  opKind = "props"
)

// record is one entry of the mutation log.
type record struct {
	Op     opKind           `json:"op"`
	Doc    uint32           `json:"doc"`
	URL    string           `json:"url,omitempty"`
	Length int              `json:"len,omitempty"`
	Terms  map[string][]int `json:"terms,omitempty"`
	Props  *Properties      `json:"props,omitempty"`
}

type snapshotDoc struct {
	Number uint32           `json:"n"`
	URL    string           `json:"url"`
	Length int              `json:"len"`
	Terms  map[string][]int `json:"terms,omitempty"`
	Props  *Properties      `json:"props,omitempty"`
}

type snapshot struct {
	Version    int                 `json:"version"`
	Type       Type                `json:"type"`
	Analysis   analysis.Properties `json:"analysis"`
	MaxDoc     uint32              `json:"max_doc"`
	Generation uint64              `json:"generation"`
	Documents  []snapshotDoc       `json:"documents"`
}

func (x *Index) encodeSnapshot() ([]byte, error) {
	snap := snapshot{
		Version:    snapshotVersion,
		Type:       x.typ,
		Analysis:   x.analyzer.Properties(),
		MaxDoc:     x.maxDoc,
		Generation: x.generation,
		Documents:  make([]snapshotDoc, 0, len(x.docs)),
	}
	for _, doc := range x.docs {
		if doc.Tombstoned {
			continue
		}
		sd := snapshotDoc{
			Number: doc.Number,
			URL:    doc.URL,
			Length: doc.Length,
			Terms:  doc.Terms,
		}
		if p, ok := x.props[doc.Number]; ok {
			sd.Props = &p
		}
		snap.Documents = append(snap.Documents, sd)
	}
	sort.Slice(snap.Documents, func(i, j int) bool {
		return snap.Documents[i].Number < snap.Documents[j].Number
	})
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*snapshot, error) {
	var snap snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot: %w", apperrors.ErrOpenFailed, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", apperrors.ErrOpenFailed, snap.Version)
	}
	if _, err := ParseType(string(snap.Type)); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrOpenFailed, err)
	}
	return &snap, nil
}

func encodeRecord(r record) []byte {
	// record holds only maps, strings, and numbers, so Marshal cannot fail.
	data, _ := json.Marshal(r)
	return data
}

func decodeRecord(data []byte) (record, error) {
	var r record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return record{}, err
	}
	if r.Props != nil {
		props, err := NormalizeProperties(*r.Props)
		if err != nil {
			return record{}, err
		}
		r.Props = &props
	}
	return r, nil
}

// replay applies a decoded log record to the in-memory state.
func (x *Index) replay(r record) error {
	switch r.Op {
	case opIndex:
		if r.URL == "" {
			return fmt.Errorf("index record for doc %d has no url", r.Doc)
		}
		if prev, ok := x.docs[r.Doc]; ok && !prev.Tombstoned {
			x.unlink(prev)
		}
		x.link(&Document{Number: r.Doc, URL: r.URL, Length: r.Length, Terms: r.Terms})
		if r.Doc > x.maxDoc {
			x.maxDoc = r.Doc
		}
	case opRemove:
		doc, ok := x.docs[r.Doc]
		if !ok || doc.Tombstoned {
			return fmt.Errorf("remove record for unknown doc %d", r.Doc)
		}
		x.tombstone(doc)
	case opProps:
		if _, ok := x.liveDoc(r.Doc); !ok {
			return fmt.Errorf("props record for unknown doc %d", r.Doc)
		}
		if r.Props == nil {
			delete(x.props, r.Doc)
		} else {
			x.props[r.Doc] = *r.Props
		}
	default:
		return fmt.Errorf("unknown record op %q", r.Op)
	}
	return nil
}
