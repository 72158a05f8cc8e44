package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// Image layout: a 64-byte header, the encoded snapshot, then zero or more
// log frames of [payloadLen u32][crc32 u32][payload].
const (
	MagicBytes    uint32 = 0x44494458
	FormatVersion uint16 = 1
	HeaderSize    int    = 64
	frameHeader   int    = 8
)

type header struct {
	Version     uint16
	Codec       Codec
	SnapshotLen uint64
	SnapshotCRC uint32
}

func (h header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], MagicBytes)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = byte(h.Codec)
	binary.LittleEndian.PutUint64(buf[8:16], h.SnapshotLen)
	binary.LittleEndian.PutUint32(buf[16:20], h.SnapshotCRC)
	return buf
}

func parseHeader(buf []byte) (header, error) {
	if len(buf) < HeaderSize {
		return header{}, fmt.Errorf("image is %d bytes, shorter than header", len(buf))
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != MagicBytes {
		return header{}, fmt.Errorf("bad magic 0x%08x", magic)
	}
	h := header{
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		Codec:       Codec(buf[6]),
		SnapshotLen: binary.LittleEndian.Uint64(buf[8:16]),
		SnapshotCRC: binary.LittleEndian.Uint32(buf[16:20]),
	}
	if h.Version != FormatVersion {
		return header{}, fmt.Errorf("unsupported format version %d", h.Version)
	}
	if !h.Codec.valid() {
		return header{}, fmt.Errorf("unknown codec %d", h.Codec)
	}
	return h, nil
}

// encodeImage builds a complete image holding only a snapshot.
func encodeImage(codec Codec, snapshot []byte) ([]byte, error) {
	payload, err := codec.encode(snapshot)
	if err != nil {
		return nil, err
	}
	h := header{
		Version:     FormatVersion,
		Codec:       codec,
		SnapshotLen: uint64(len(payload)),
		SnapshotCRC: crc32.ChecksumIEEE(payload),
	}
	return append(h.marshal(), payload...), nil
}

// encodeFrames encodes records as log frames to append after an image.
func encodeFrames(codec Codec, records [][]byte) ([]byte, error) {
	var out []byte
	for _, rec := range records {
		payload, err := codec.encode(rec)
		if err != nil {
			return nil, err
		}
		var hdr [frameHeader]byte
		binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload)))
		binary.LittleEndian.PutUint32(hdr[4:8], crc32.ChecksumIEEE(payload))
		out = append(out, hdr[:]...)
		out = append(out, payload...)
	}
	return out, nil
}

// decodeImage validates an image and returns its codec, snapshot, and log
// records. Any structural damage, including a torn trailing frame, is
// reported as ErrOpenFailed.
func decodeImage(data []byte) (Codec, []byte, [][]byte, error) {
	h, err := parseHeader(data)
	if err != nil {
		return 0, nil, nil, corrupt(err)
	}
	end := uint64(HeaderSize) + h.SnapshotLen
	if end > uint64(len(data)) {
		return 0, nil, nil, corrupt(fmt.Errorf("snapshot of %d bytes exceeds image", h.SnapshotLen))
	}
	payload := data[HeaderSize:end]
	if crc32.ChecksumIEEE(payload) != h.SnapshotCRC {
		return 0, nil, nil, corrupt(fmt.Errorf("snapshot checksum mismatch"))
	}
	snapshot, err := h.Codec.decode(payload)
	if err != nil {
		return 0, nil, nil, corrupt(fmt.Errorf("decoding snapshot: %w", err))
	}

	var records [][]byte
	rest := data[end:]
	for offset := end; len(rest) > 0; {
		if len(rest) < frameHeader {
			return 0, nil, nil, corrupt(fmt.Errorf("torn frame header at offset %d", offset))
		}
		n := uint64(binary.LittleEndian.Uint32(rest[0:4]))
		sum := binary.LittleEndian.Uint32(rest[4:8])
		if uint64(len(rest)-frameHeader) < n {
			return 0, nil, nil, corrupt(fmt.Errorf("torn frame at offset %d", offset))
		}
		framePayload := rest[frameHeader : uint64(frameHeader)+n]
		if crc32.ChecksumIEEE(framePayload) != sum {
			return 0, nil, nil, corrupt(fmt.Errorf("frame checksum mismatch at offset %d", offset))
		}
		rec, err := h.Codec.decode(framePayload)
		if err != nil {
			return 0, nil, nil, corrupt(fmt.Errorf("decoding frame at offset %d: %w", offset, err))
		}
		records = append(records, rec)
		offset += uint64(frameHeader) + n
		rest = rest[uint64(frameHeader)+n:]
	}
	return h.Codec, snapshot, records, nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: corrupt index image: %w", apperrors.ErrOpenFailed, err)
}
