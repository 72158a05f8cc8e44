package storage

import (
	"fmt"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// Memory keeps the index image in a byte buffer. It has no durability, but
// its image can be exported with Bytes and reopened with OpenMemory.
type Memory struct {
	mu     sync.Mutex
	codec  Codec
	image  []byte
	closed bool
}

// NewMemory returns an empty memory backend.
func NewMemory(codec Codec) (*Memory, error) {
	image, err := encodeImage(codec, nil)
	if err != nil {
		return nil, err
	}
	return &Memory{codec: codec, image: image}, nil
}

// OpenMemory validates an exported image and wraps a copy of it.
func OpenMemory(image []byte) (*Memory, error) {
	cp := append([]byte(nil), image...)
	codec, _, _, err := decodeImage(cp)
	if err != nil {
		return nil, err
	}
	return &Memory{codec: codec, image: cp}, nil
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Load() ([]byte, [][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, apperrors.ErrClosed
	}
	_, snapshot, records, err := decodeImage(append([]byte(nil), m.image...))
	return snapshot, records, err
}

func (m *Memory) Append(records ...[]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return apperrors.ErrClosed
	}
	frames, err := encodeFrames(m.codec, records)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	m.image = append(m.image, frames...)
	return nil
}

func (m *Memory) Replace(snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return apperrors.ErrClosed
	}
	image, err := encodeImage(m.codec, snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	m.image = image
	return nil
}

func (m *Memory) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.image))
}

// Bytes returns a copy of the current image.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.image...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
