package vector

import (
	"math/rand"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/streamtree/btree"
	"github.com/npillmayer/streamtree/store"
	"github.com/stretchr/testify/require"
)

func newVector(t *testing.T, profile store.Profile) *Vector {
	t.Helper()
	mem, err := store.Open(store.Options{BlockSize: 256, Profile: profile})
	require.NoError(t, err)
	t.Cleanup(mem.Close)
	snap, err := mem.NewSnapshot()
	require.NoError(t, err)
	v, err := New(snap, Options{Bits: 16})
	require.NoError(t, err)
	return v
}

func TestAppendGetSet(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "streamtree")
	defer teardown()
	//
	v := newVector(t, store.COW)
	for i := 0; i < 500; i++ {
		require.NoError(t, v.Append(uint64(i)))
	}
	require.NoError(t, v.Append(1, 2, 3))
	require.Equal(t, 503, v.Len())
	x, err := v.Get(499)
	require.NoError(t, err)
	require.Equal(t, uint64(499), x)
	require.NoError(t, v.Set(10, 1000))
	x, err = v.Get(10)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), x)
	_, err = v.Get(503)
	require.ErrorIs(t, err, btree.ErrIndexOutOfBounds)
	require.ErrorIs(t, v.Set(0, 1<<16), btree.ErrInvalidEntry)
}

func TestPrefixAndSearch(t *testing.T) {
	for _, profile := range []store.Profile{store.COW, store.InPlace} {
		v := newVector(t, profile)
		rnd := rand.New(rand.NewSource(9))
		ref := make([]uint64, 2000)
		for i := range ref {
			ref[i] = uint64(rnd.Intn(100))
		}
		require.NoError(t, v.Append(ref...))
		prefix := make([]uint64, len(ref)+1)
		for i, x := range ref {
			prefix[i+1] = prefix[i] + x
		}
		total, err := v.Total()
		require.NoError(t, err)
		require.Equal(t, prefix[len(ref)], total, profile.String())
		for round := 0; round < 300; round++ {
			pos := rnd.Intn(len(ref) + 1)
			got, err := v.Prefix(pos)
			require.NoError(t, err)
			require.Equal(t, prefix[pos], got, "prefix(%d)", pos)
			target := uint64(rnd.Intn(int(total)) + 1)
			p, before, ok, err := v.Search(target)
			require.NoError(t, err)
			require.True(t, ok)
			require.Less(t, before, target)
			require.GreaterOrEqual(t, before+ref[p], target)
			require.Equal(t, prefix[p], before)
		}
		_, before, ok, err := v.Search(total + 1)
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, total, before)
	}
}

func TestInsertRemoveValues(t *testing.T) {
	v := newVector(t, store.COW)
	ref := make([]uint64, 0, 1200)
	for i := 0; i < 1000; i++ {
		ref = append(ref, uint64(i%300))
	}
	require.NoError(t, v.Append(ref...))
	mid := []uint64{7, 7, 7, 7, 7}
	require.NoError(t, v.InsertAt(400, mid...))
	ref = append(ref[:400], append(append([]uint64(nil), mid...), ref[400:]...)...)
	require.NoError(t, v.Remove(100, 250))
	ref = append(ref[:100], ref[350:]...)
	got, err := v.Values(0, v.Len())
	require.NoError(t, err)
	require.Equal(t, ref, got)
	got, err = v.Values(95, 160)
	require.NoError(t, err)
	require.Equal(t, ref[95:160], got)
	require.NoError(t, v.Tree().Check())
}
