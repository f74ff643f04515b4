// Package store persists modelling output in an embedded BadgerDB: spilled
// wavefield snapshots for reverse-time migration and generated shot gathers.
package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

type Options struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
}

// DB wraps a BadgerDB instance. It is safe for concurrent use.
type DB struct {
	db     *badger.DB
	logger zerolog.Logger
}

// badgerLogger adapts zerolog to badger's Logger interface.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}

func Open(opts Options, logger zerolog.Logger) (*DB, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("store: path is required for a persistent database")
	}

	var bo badger.Options
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0750); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", opts.Path, err)
		}
		bo = badger.DefaultOptions(opts.Path)
	}
	bo = bo.WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{logger: logger.With().Str("component", "badger").Logger()})

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &DB{db: db, logger: logger}, nil
}

// OpenInMemory opens a throwaway database.
func OpenInMemory() (*DB, error) {
	return Open(Options{InMemory: true}, zerolog.Nop())
}

func (d *DB) Close() error {
	return d.db.Close()
}

// putGrid writes a rows×cols grid under prefix, chunked so that no value
// reaches badger's size limit. The header is written after the chunks.
func (d *DB) putGrid(prefix []byte, rows, cols int, data []float64) error {
	wb := d.db.NewWriteBatch()
	for j := 0; j < chunkCount(len(data)); j++ {
		lo := j * chunkSamples
		hi := min(lo+chunkSamples, len(data))
		if err := wb.Set(chunkKey(prefix, j), encodeSamples(data[lo:hi])); err != nil {
			wb.Cancel()
			return err
		}
	}
	if err := wb.Set(headerKey(prefix), encodeShape(rows, cols)); err != nil {
		wb.Cancel()
		return err
	}
	return wb.Flush()
}

// getGrid reassembles the grid stored under prefix. A missing header is
// badger.ErrKeyNotFound; a missing or short chunk is ErrCorrupt.
func (d *DB) getGrid(prefix []byte) (rows, cols int, data []float64, err error) {
	err = d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(headerKey(prefix))
		if err != nil {
			return err
		}
		hdr, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if rows, cols, err = decodeShape(hdr); err != nil {
			return err
		}
		data = make([]float64, rows*cols)
		for j := 0; j < chunkCount(len(data)); j++ {
			lo := j * chunkSamples
			hi := min(lo+chunkSamples, len(data))
			item, err := txn.Get(chunkKey(prefix, j))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: chunk %d missing", ErrCorrupt, j)
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(v []byte) error {
				return decodeSamples(v, data[lo:hi])
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, nil, err
	}
	return rows, cols, data, nil
}

// keys lists every key under prefix in ascending order.
func (d *DB) keys(prefix []byte) ([][]byte, error) {
	var out [][]byte
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return out, err
}

func (d *DB) remove(keys [][]byte) error {
	wb := d.db.NewWriteBatch()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			wb.Cancel()
			return err
		}
	}
	return wb.Flush()
}
