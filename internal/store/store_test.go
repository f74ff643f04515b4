package store

import (
	"errors"
	"testing"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/shots"
	"github.com/0x5844/seismig/internal/wave"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSnapshotVolumeRoundTrip(t *testing.T) {
	db := openTestDB(t)
	vol := db.Snapshots(10, wave.EveryNth(3))
	assert.Equal(t, 10, vol.Len())

	for k := 0; k < 10; k++ {
		f := grid.New(3, 4)
		for i := range f.Data {
			f.Data[i] = float64(k*100+i) - 0.5
		}
		require.NoError(t, vol.Store(k, f))
	}
	assert.Equal(t, 4, vol.Kept(), "samples 0, 3, 6, 9")

	got, ok := vol.At(6)
	require.True(t, ok)
	assert.Equal(t, 3, got.NZ)
	assert.Equal(t, 4, got.NX)
	assert.Equal(t, 600-0.5, got.Data[0])
	assert.Equal(t, 611-0.5, got.Data[11])

	_, ok = vol.At(5)
	assert.False(t, ok)

	require.NoError(t, vol.Close())
	_, ok = vol.At(6)
	assert.False(t, ok, "closed volumes drop their samples")
}

func TestVolumesAreIsolated(t *testing.T) {
	db := openTestDB(t)
	a, err := db.NewVolume(2, nil)
	require.NoError(t, err)
	b, err := db.NewVolume(2, nil)
	require.NoError(t, err)

	require.NoError(t, a.Store(0, grid.Filled(1, 1, 1)))
	require.NoError(t, b.Store(0, grid.Filled(1, 1, 2)))
	fa, ok := a.At(0)
	require.True(t, ok)
	fb, ok := b.At(0)
	require.True(t, ok)
	assert.Equal(t, 1.0, fa.Data[0])
	assert.Equal(t, 2.0, fb.Data[0])
}

func TestShotsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := db.Shots("layered")

	for _, src := range []int{7, 2, 300} {
		obs := wave.NewRecord(2, 3)
		bg := wave.NewRecord(2, 3)
		for i := range obs.Data {
			obs.Data[i] = float64(src + i)
			bg.Data[i] = float64(i) / 4
		}
		g, err := shots.NewGather(src, obs, bg)
		require.NoError(t, err)
		require.NoError(t, s.Put(g))
	}

	sources, err := s.Sources()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 7, 300}, sources)

	g, err := s.Get(7)
	require.NoError(t, err)
	assert.Equal(t, 7, g.Source)
	assert.Equal(t, 2, g.Observed.Receivers)
	for i := range g.Scattered.Data {
		assert.Equal(t, g.Observed.Data[i]-g.Background.Data[i], g.Scattered.Data[i])
	}

	_, err = s.Get(8)
	assert.True(t, errors.Is(err, badger.ErrKeyNotFound))

	other, err := db.Shots("other").Sources()
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestShotsStoreReferenceScaleRecords(t *testing.T) {
	db := openTestDB(t)
	s := db.Shots("reference")

	// 100 receivers × 2668 samples is about 2 MiB per record.
	const receivers, nt = 100, 2668
	for src := 0; src < 5; src++ {
		obs := wave.NewRecord(receivers, nt)
		bg := wave.NewRecord(receivers, nt)
		for i := range obs.Data {
			obs.Data[i] = float64(src*len(obs.Data) + i)
			bg.Data[i] = float64(i) / 8
		}
		g, err := shots.NewGather(src, obs, bg)
		require.NoError(t, err)
		require.NoError(t, s.Put(g), "source %d", src)
	}

	sources, err := s.Sources()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, sources)

	g, err := s.Get(3)
	require.NoError(t, err)
	require.Equal(t, receivers, g.Observed.Receivers)
	require.Equal(t, nt, g.Observed.NT)
	n := receivers * nt
	for _, i := range []int{0, chunkSamples - 1, chunkSamples, n - 1} {
		assert.Equal(t, float64(3*n+i), g.Observed.Data[i])
		assert.Equal(t, float64(i)/8, g.Background.Data[i])
	}
}

func TestSnapshotVolumeLargeFrames(t *testing.T) {
	db := openTestDB(t)
	vol := db.Snapshots(2, nil)

	f := grid.New(400, 400)
	for i := range f.Data {
		f.Data[i] = float64(i)
	}
	require.NoError(t, vol.Store(1, f))

	got, ok := vol.At(1)
	require.True(t, ok)
	assert.Equal(t, f.Data, got.Data)

	require.NoError(t, vol.Close())
	keys, err := db.keys(vol.prefix)
	require.NoError(t, err)
	assert.Empty(t, keys, "every chunk is dropped")
}

func TestMissingChunkIsCorrupt(t *testing.T) {
	db := openTestDB(t)
	prefix := []byte("grid/")
	data := make([]float64, chunkSamples+1)
	require.NoError(t, db.putGrid(prefix, 1, len(data), data))
	require.NoError(t, db.remove([][]byte{chunkKey(prefix, 1)}))

	_, _, _, err := db.getGrid(prefix)
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, _, _, err = db.getGrid([]byte("absent/"))
	assert.True(t, errors.Is(err, badger.ErrKeyNotFound))
}

func TestDecodeRejectsTruncatedValues(t *testing.T) {
	buf := encodeSamples([]float64{1, 2, 3, 4})
	assert.True(t, errors.Is(decodeSamples(buf[:len(buf)-1], make([]float64, 4)), ErrCorrupt))
	assert.True(t, errors.Is(decodeSamples(buf, make([]float64, 3)), ErrCorrupt))
	_, _, err := decodeShape(encodeShape(2, 2)[:3])
	assert.True(t, errors.Is(err, ErrCorrupt))
}
