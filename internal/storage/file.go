package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/gofrs/flock"
)

// File stores the index image in a single file guarded by an exclusive
// lock on "<path>.lock".
type File struct {
	path   string
	lock   *flock.Flock
	f      *os.File
	codec  Codec
	size   int64
	closed bool
	logger *slog.Logger
}

// OpenFile opens or creates the index file at path. codec applies only when
// a new image is written; an existing image keeps the codec in its header.
func OpenFile(path string, mode Mode, codec Codec) (*File, error) {
	if !codec.valid() {
		return nil, fmt.Errorf("opening %s: %w", path, apperrors.ErrInvalidInput)
	}
	if mode != OpenExisting {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}
	if mode == OpenExisting {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrOpenFailed, path, err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: locking %s: %w", apperrors.ErrOpenFailed, path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s is in use by another indexer", apperrors.ErrOpenFailed, path)
	}

	fb := &File{
		path:   path,
		lock:   lock,
		codec:  codec,
		logger: slog.Default().With("component", "file-backend", "path", path),
	}
	if err := fb.init(mode); err != nil {
		lock.Unlock()
		return nil, err
	}
	fb.logger.Debug("index file opened", "mode", mode.String(), "codec", fb.codec.String(), "size", fb.size)
	return fb, nil
}

func (fb *File) init(mode Mode) error {
	switch mode {
	case CreateNew:
		if info, err := os.Stat(fb.path); err == nil && info.Size() > 0 {
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, fb.path)
		}
		return fb.Replace(nil)
	case Overwrite:
		return fb.Replace(nil)
	case OpenExisting:
		f, err := os.OpenFile(fb.path, os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", apperrors.ErrOpenFailed, fb.path, err)
		}
		data, err := os.ReadFile(fb.path)
		if err != nil {
			f.Close()
			return fmt.Errorf("%w: reading %s: %w", apperrors.ErrOpenFailed, fb.path, err)
		}
		codec, _, _, err := decodeImage(data)
		if err != nil {
			f.Close()
			return err
		}
		fb.f = f
		fb.codec = codec
		fb.size = int64(len(data))
		return nil
	default:
		return fmt.Errorf("unknown open mode %d: %w", mode, apperrors.ErrInvalidInput)
	}
}

func (fb *File) Name() string { return fb.path }

func (fb *File) Load() ([]byte, [][]byte, error) {
	if fb.f == nil {
		return nil, nil, apperrors.ErrClosed
	}
	data := make([]byte, fb.size)
	if _, err := fb.f.ReadAt(data, 0); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", fb.path, err)
	}
	_, snapshot, records, err := decodeImage(data)
	return snapshot, records, err
}

func (fb *File) Append(records ...[]byte) error {
	if fb.f == nil {
		return apperrors.ErrClosed
	}
	if len(records) == 0 {
		return nil
	}
	frames, err := encodeFrames(fb.codec, records)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	if _, err := fb.f.WriteAt(frames, fb.size); err != nil {
		return fb.rollback(fmt.Errorf("writing %d records: %w", len(records), err))
	}
	if err := fb.f.Sync(); err != nil {
		return fb.rollback(fmt.Errorf("syncing %s: %w", fb.path, err))
	}
	fb.size += int64(len(frames))
	return nil
}

func (fb *File) rollback(cause error) error {
	if err := fb.f.Truncate(fb.size); err != nil {
		fb.logger.Error("failed to truncate after append error", "size", fb.size, "error", err)
		return errors.Join(cause, err)
	}
	return cause
}

// Replace writes a fresh image to a temporary file and renames it over the
// index file.
func (fb *File) Replace(snapshot []byte) error {
	if fb.closed {
		return apperrors.ErrClosed
	}
	image, err := encodeImage(fb.codec, snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	tmpPath := fb.path + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp index file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp index file: %w", err)
	}
	if err := os.Rename(tmpPath, fb.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming index file: %w", err)
	}

	f, err := os.OpenFile(fb.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("reopening index file: %w", err)
	}
	if fb.f != nil {
		fb.f.Close()
	}
	fb.f = f
	fb.size = int64(len(image))
	return nil
}

func (fb *File) Size() int64 { return fb.size }

func (fb *File) Close() error {
	if fb.closed {
		return nil
	}
	fb.closed = true
	var err error
	if fb.f != nil {
		err = fb.f.Close()
		fb.f = nil
	}
	if unlockErr := fb.lock.Unlock(); unlockErr != nil {
		err = errors.Join(err, unlockErr)
	}
	return err
}

// Destroy deletes the index file at path together with its lock and
// temporary files. It fails if another indexer holds the index open.
func Destroy(path string) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("destroying %s: index is in use", path)
	}
	defer lock.Unlock()

	var errs []error
	for _, p := range []string{path, path + ".tmp", path + ".lock"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
