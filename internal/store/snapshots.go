package store

import (
	"errors"
	"fmt"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/wave"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// SnapshotVolume spills the retained wavefield samples of one run to the
// database under a private key namespace. Close deletes them.
type SnapshotVolume struct {
	db     *DB
	prefix []byte
	nt     int
	keep   func(int) bool
	kept   int
}

// NewVolume allocates a volume of nt samples that retains those accepted by
// keep. A nil keep retains every sample. DB is usable as an rtm.Backing.
func (d *DB) NewVolume(nt int, keep func(sample int) bool) (wave.Volume, error) {
	return d.Snapshots(nt, keep), nil
}

func (d *DB) Snapshots(nt int, keep func(sample int) bool) *SnapshotVolume {
	if keep == nil {
		keep = func(int) bool { return true }
	}
	id := uuid.New()
	prefix := append([]byte("snap/"), id[:]...)
	prefix = append(prefix, '/')
	return &SnapshotVolume{db: d, prefix: prefix, nt: nt, keep: keep}
}

func (v *SnapshotVolume) Len() int { return v.nt }

func (v *SnapshotVolume) Retains(sample int) bool {
	return sample >= 0 && sample < v.nt && v.keep(sample)
}

func (v *SnapshotVolume) Store(sample int, f *grid.Field) error {
	if !v.Retains(sample) {
		return nil
	}
	if err := v.db.putGrid(indexKey(v.prefix, sample), f.NZ, f.NX, f.Data); err != nil {
		return err
	}
	v.kept++
	return nil
}

// At reads a sample back. A decode or read failure other than a missing
// key is logged and reported as absent.
func (v *SnapshotVolume) At(sample int) (*grid.Field, bool) {
	if !v.Retains(sample) {
		return nil, false
	}
	nz, nx, data, err := v.db.getGrid(indexKey(v.prefix, sample))
	if err == nil {
		return &grid.Field{NZ: nz, NX: nx, Data: data}, true
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false
	}
	v.db.logger.Error().Err(err).Int("sample", sample).Msg("snapshot read failed")
	return nil, false
}

// Kept is the number of samples stored so far.
func (v *SnapshotVolume) Kept() int { return v.kept }

func (v *SnapshotVolume) Close() error {
	keys, err := v.db.keys(v.prefix)
	if err != nil {
		return fmt.Errorf("store: list snapshots: %w", err)
	}
	v.kept = 0
	if err := v.db.remove(keys); err != nil {
		return fmt.Errorf("store: drop snapshots: %w", err)
	}
	return nil
}
