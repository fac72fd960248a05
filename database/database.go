// Package database holds the key-value stores a tree can be saved to. The
// tree writes its leaves and history sizes through a Batcher so a save is
// applied all at once.
package database

type (
	KeyValueReader interface {
		// Has retrieves if a key is present in the key-value data store.
		Has(key []byte) (bool, error)

		// Get retrieves the given key if it's present in the key-value data store.
		// A missing key yields ErrDatabaseNotFound.
		Get(key []byte) ([]byte, error)
	}
	KeyValueWriter interface {
		// Set inserts the given value into the key-value data store.
		Set(key []byte, value []byte) error

		// Delete removes the key from the key-value data store.
		Delete(key []byte) error
	}
	TreeDB interface {
		KeyValueReader
		KeyValueWriter
		// NewBatch creates a write-only database that buffers changes to its host db
		// until a final write is called.
		NewBatch() Batcher
		Close() error
	}

	Batcher interface {
		KeyValueWriter

		// Write flushes any accumulated data to the host database.
		Write() error

		// Reset resets the batch for reuse.
		Reset()

		// ValueSize retrieves the amount of data queued up for writing.
		ValueSize() int
	}
)
