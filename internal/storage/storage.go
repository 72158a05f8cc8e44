// Package storage persists serialized index state. A backend holds one
// snapshot plus an append-only log of mutation records; Replace swaps in a
// new snapshot and discards the log.
package storage

// Backend is the persistence contract the index core writes through.
type Backend interface {
	Name() string
	// Load returns the current snapshot and every record appended after it.
	// An empty snapshot means no state has been written yet.
	Load() (snapshot []byte, records [][]byte, err error)
	// Append durably adds records to the log. On error nothing is added.
	Append(records ...[]byte) error
	// Replace atomically installs snapshot and drops the log.
	Replace(snapshot []byte) error
	// Size reports the bytes held by the backend.
	Size() int64
	Close() error
}

// Mode selects how a file backend treats an existing path.
type Mode int

const (
	// CreateNew fails with ErrAlreadyExists when the path has content.
	CreateNew Mode = iota
	// OpenExisting fails with ErrOpenFailed when the path is missing or
	// does not hold a valid image.
	OpenExisting
	// Overwrite discards whatever the path holds.
	Overwrite
)

func (m Mode) String() string {
	switch m {
	case CreateNew:
		return "create"
	case OpenExisting:
		return "open"
	case Overwrite:
		return "overwrite"
	default:
		return "unknown"
	}
}
