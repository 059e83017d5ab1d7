package repository

import "github.com/cockroachdb/pebble/vfs"

// Option applies a configuration option to the PebbleStore.
type Option func(*PebbleStore)

// WithFS opens the database on fs instead of the OS filesystem.
func WithFS(fs vfs.FS) Option {
	return func(s *PebbleStore) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithSync makes every write wait for the WAL to reach stable storage.
func WithSync(sync bool) Option {
	return func(s *PebbleStore) { s.syncWrites = sync }
}
