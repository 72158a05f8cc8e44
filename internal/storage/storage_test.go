package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allCodecs = []Codec{CodecNone, CodecZstd, CodecLZ4}

func TestCodecRoundTrip(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("x"),
		bytes.Repeat([]byte("posting list "), 500),
	}
	for _, codec := range allCodecs {
		for _, in := range inputs {
			enc, err := codec.encode(in)
			require.NoError(t, err)
			dec, err := codec.decode(enc)
			require.NoError(t, err)
			assert.Equal(t, len(in), len(dec), "codec %s", codec)
			assert.True(t, bytes.Equal(in, dec), "codec %s", codec)
		}
	}
}

func TestParseCodec(t *testing.T) {
	for _, codec := range allCodecs {
		parsed, err := ParseCodec(codec.String())
		require.NoError(t, err)
		assert.Equal(t, codec, parsed)
	}
	_, err := ParseCodec("brotli")
	assert.Error(t, err)
}

func TestMemoryAppendAndReplace(t *testing.T) {
	for _, codec := range allCodecs {
		t.Run(codec.String(), func(t *testing.T) {
			m, err := NewMemory(codec)
			require.NoError(t, err)

			snapshot, records, err := m.Load()
			require.NoError(t, err)
			assert.Empty(t, snapshot)
			assert.Empty(t, records)

			require.NoError(t, m.Replace([]byte(`{"base":true}`)))
			require.NoError(t, m.Append([]byte("one"), []byte("two")))
			require.NoError(t, m.Append([]byte("three")))

			snapshot, records, err = m.Load()
			require.NoError(t, err)
			assert.Equal(t, `{"base":true}`, string(snapshot))
			assert.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("three")}, records)

			require.NoError(t, m.Replace([]byte("compacted")))
			snapshot, records, err = m.Load()
			require.NoError(t, err)
			assert.Equal(t, "compacted", string(snapshot))
			assert.Empty(t, records)
		})
	}
}

func TestMemoryExportAndReopen(t *testing.T) {
	m, err := NewMemory(CodecZstd)
	require.NoError(t, err)
	require.NoError(t, m.Replace([]byte("snap")))
	require.NoError(t, m.Append([]byte("rec")))

	reopened, err := OpenMemory(m.Bytes())
	require.NoError(t, err)
	snapshot, records, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, "snap", string(snapshot))
	assert.Equal(t, [][]byte{[]byte("rec")}, records)
	assert.Equal(t, m.Size(), reopened.Size())
}

func TestCorruptImagesAreRejected(t *testing.T) {
	m, err := NewMemory(CodecNone)
	require.NoError(t, err)
	require.NoError(t, m.Replace([]byte("snapshot-bytes")))
	require.NoError(t, m.Append([]byte("record-one")))
	good := m.Bytes()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func([]byte) []byte { return nil }},
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xff; return b }},
		{"bad version", func(b []byte) []byte { b[4] = 9; return b }},
		{"snapshot flipped", func(b []byte) []byte { b[HeaderSize] ^= 0x01; return b }},
		{"frame flipped", func(b []byte) []byte { b[len(b)-1] ^= 0x01; return b }},
		{"torn tail", func(b []byte) []byte { return b[:len(b)-3] }},
		{"torn frame header", func(b []byte) []byte { return append(b, 0x01, 0x02) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image := tt.mutate(append([]byte(nil), good...))
			_, err := OpenMemory(image)
			assert.ErrorIs(t, err, apperrors.ErrOpenFailed)
		})
	}
}

func TestMemoryClosed(t *testing.T) {
	m, err := NewMemory(CodecNone)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	assert.ErrorIs(t, m.Append([]byte("x")), apperrors.ErrClosed)
	assert.ErrorIs(t, m.Replace(nil), apperrors.ErrClosed)
	_, _, err = m.Load()
	assert.ErrorIs(t, err, apperrors.ErrClosed)
}

func TestFileLifecycle(t *testing.T) {
	for _, codec := range allCodecs {
		t.Run(codec.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "idx", "notes.didx")

			fb, err := OpenFile(path, CreateNew, codec)
			require.NoError(t, err)
			require.NoError(t, fb.Replace([]byte("snap")))
			require.NoError(t, fb.Append([]byte("a"), []byte("b")))
			size := fb.Size()
			require.NoError(t, fb.Close())

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, size, info.Size())

			reopened, err := OpenFile(path, OpenExisting, CodecNone)
			require.NoError(t, err)
			defer reopened.Close()
			snapshot, records, err := reopened.Load()
			require.NoError(t, err)
			assert.Equal(t, "snap", string(snapshot))
			assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, records)
			assert.Equal(t, codec, reopened.codec)
		})
	}
}

func TestFileCreateRefusesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.didx")
	fb, err := OpenFile(path, CreateNew, CodecNone)
	require.NoError(t, err)
	require.NoError(t, fb.Close())

	_, err = OpenFile(path, CreateNew, CodecNone)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	fb, err = OpenFile(path, Overwrite, CodecLZ4)
	require.NoError(t, err)
	require.NoError(t, fb.Close())
}

func TestFileOpenFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenFile(filepath.Join(dir, "missing.didx"), OpenExisting, CodecNone)
	assert.ErrorIs(t, err, apperrors.ErrOpenFailed)

	garbage := filepath.Join(dir, "garbage.didx")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not an index"), 0o644))
	_, err = OpenFile(garbage, OpenExisting, CodecNone)
	assert.ErrorIs(t, err, apperrors.ErrOpenFailed)

	// a failed open must release the lock
	require.NoError(t, os.WriteFile(garbage, nil, 0o644))
	fb, err := OpenFile(garbage, Overwrite, CodecNone)
	require.NoError(t, err)
	require.NoError(t, fb.Close())
}

func TestFileIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.didx")
	fb, err := OpenFile(path, CreateNew, CodecNone)
	require.NoError(t, err)

	_, err = OpenFile(path, OpenExisting, CodecNone)
	assert.ErrorIs(t, err, apperrors.ErrOpenFailed)
	assert.Error(t, Destroy(path))

	require.NoError(t, fb.Close())
	second, err := OpenFile(path, OpenExisting, CodecNone)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestFileReplaceDropsLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.didx")
	fb, err := OpenFile(path, CreateNew, CodecZstd)
	require.NoError(t, err)
	defer fb.Close()

	require.NoError(t, fb.Append([]byte("stale")))
	require.NoError(t, fb.Replace([]byte("fresh")))
	snapshot, records, err := fb.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(snapshot))
	assert.Empty(t, records)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestDestroy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.didx")
	fb, err := OpenFile(path, CreateNew, CodecNone)
	require.NoError(t, err)
	require.NoError(t, fb.Close())

	require.NoError(t, Destroy(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, Destroy(path))
}
