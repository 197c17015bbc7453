package writer

import (
	"testing"

	"github.com/ngdp-go/casc/archive"
	"github.com/stretchr/testify/require"
)

func TestPlaceFitsInExistingArchive(t *testing.T) {
	table := []ArchiveInfo{
		{ID: 0, Size: 1000, State: archive.Thawed},
		{ID: 1, Size: 0, State: archive.Thawed},
	}
	plan, err := Place(table, 100, 1<<20)
	require.NoError(t, err)
	require.EqualValues(t, 0, plan.ArchiveID)
	require.False(t, plan.CreateNew)
	require.EqualValues(t, 1000+archive.LocalHeaderSize, plan.PayloadStart)
}

func TestPlaceSkipsFrozenAndTooSmall(t *testing.T) {
	table := []ArchiveInfo{
		{ID: 0, Size: 999_999, State: archive.Thawed}, // almost full
		{ID: 1, Size: 500, State: archive.Frozen},     // frozen, skip regardless of space
		{ID: 2, Size: 0, State: archive.Thawed},
	}
	plan, err := Place(table, 100, 1_000_000)
	require.NoError(t, err)
	require.EqualValues(t, 2, plan.ArchiveID)
}

func TestPlaceTieBreaksOnLowerID(t *testing.T) {
	table := []ArchiveInfo{
		{ID: 5, Size: 0, State: archive.Thawed},
		{ID: 2, Size: 0, State: archive.Thawed},
	}
	plan, err := Place(table, 10, 1000)
	require.NoError(t, err)
	require.EqualValues(t, 2, plan.ArchiveID)
}

func TestPlaceCreatesNewArchiveWhenNoneFit(t *testing.T) {
	table := []ArchiveInfo{
		{ID: 0, Size: 1000, State: archive.Thawed},
	}
	plan, err := Place(table, 100, 1000)
	require.NoError(t, err)
	require.True(t, plan.CreateNew)
	require.EqualValues(t, 1, plan.ArchiveID)
}

func TestPlaceReturnsStoreFullAtArchiveCap(t *testing.T) {
	table := []ArchiveInfo{
		{ID: MaxArchives, Size: 1000, State: archive.Thawed},
	}
	_, err := Place(table, 100, 1000)
	require.ErrorIs(t, err, ErrStoreFull)
}

func TestFreeSpaceTableGrowAndSnapshot(t *testing.T) {
	tbl := NewFreeSpaceTable()
	tbl.Set(ArchiveInfo{ID: 0, Size: 100, State: archive.Thawed})
	tbl.Grow(0, 50)

	snap := tbl.Snapshot()
	require.Len(t, snap, 1)
	require.EqualValues(t, 150, snap[0].Size)
}
