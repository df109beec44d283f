// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flatbase

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDBName returns a unique database name (sans extension) rooted in
// a scratch directory that is removed when the test completes.
func testDBName(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test")
}

func liftersTable() *Table {
	return NewTable().
		AddField("Name", AttrText16).
		AddField("Squat", AttrInt).
		AddField("Press", AttrInt).
		AddField("Deadlift", AttrInt).
		AddField("Wilks", AttrFloat)
}

func TestCreateThenLoadRoundTrips(t *testing.T) {
	name := testDBName(t)
	table := liftersTable()

	store, err := Create(name, table)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), store.RecordCount())

	loaded, err := Load(name)
	require.NoError(t, err)
	assert.True(t, loaded.Table().Equal(store.Table()))
	assert.Equal(t, uint32(0), loaded.RecordCount())
}

func TestInsertAssignsSequentialIDs(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		r := NewRecord(store.Table())
		r.AddText16("Name", "Josh")
		require.NoError(t, store.Insert(r))
		assert.Equal(t, uint32(i+1), r.GetID())
	}
	assert.Equal(t, uint32(3), store.RecordCount())
}

func TestInsertThenSearchInt(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	r := NewRecord(store.Table())
	r.AddText16("Name", "Josh")
	r.AddInt("Squat", 245)
	require.NoError(t, store.Insert(r))

	found, err := store.SearchInt("Squat", 245)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, uint32(1), found[0].GetID())
	assert.Equal(t, NewFixedString16("Josh").String(), found[0].GetText16("Name"))
}

func TestSearchOnUnknownFieldReturnsEmptyNotError(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	found, err := store.SearchInt("NoSuchField", 1)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSearchWithMismatchedTypeReturnsEmpty(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	found, err := store.SearchFloat("Squat", 1) // Squat is an int field
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUpdateOverwritesExistingSlot(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	r := NewRecord(store.Table())
	r.AddInt("Squat", 245)
	require.NoError(t, store.Insert(r))

	update := NewRecord(store.Table())
	update.SetID(1)
	update.AddInt("Squat", 999)
	require.NoError(t, store.Update(update))

	found, err := store.SearchInt("Squat", 999)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, uint32(1), found[0].GetID())
}

func TestUpdateUnknownIDReturnsErrNotFound(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	r := NewRecord(store.Table())
	r.SetID(99)
	err = store.Update(r)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateZeroIDReturnsErrNotFound(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	r := NewRecord(store.Table())
	err = store.Update(r)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestUpdateTombstonedSlotReturnsErrNotFound exercises the redesign
// flag that rejects writes onto a tombstoned slot instead of silently
// resurrecting it with new contents.
func TestUpdateTombstonedSlotReturnsErrNotFound(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Insert(NewRecord(store.Table())))
	}
	// 1 of 3 slots tombstoned stays below the compaction threshold, so
	// slot 1 is still on disk with identifier 0.
	require.NoError(t, store.Remove(1))

	update := NewRecord(store.Table())
	update.SetID(1)
	update.AddInt("Squat", 1)
	err = store.Update(update)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveExcludesRecordFromSearch(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	r := NewRecord(store.Table())
	r.AddFloat("Wilks", 235.72)
	require.NoError(t, store.Insert(r))

	require.NoError(t, store.Remove(1))

	found, err := store.SearchFloat("Wilks", 235.72)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRemoveZeroIDIsNoop(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)
	assert.NoError(t, store.Remove(0))
}

func TestRemoveOutOfRangeIDIsNoop(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)
	assert.NoError(t, store.Remove(500))
}

func TestRemoveAlreadyRemovedIsNoop(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	r := NewRecord(store.Table())
	require.NoError(t, store.Insert(r))
	require.NoError(t, store.Remove(1))
	assert.NoError(t, store.Remove(1))
}

// TestCompactionTriggersAtHalfTombstoneRatio drives four inserts and
// two removals (the 50% tombstone boundary) and asserts the file has
// been rewritten: record_count drops to the live count and the
// surviving records keep their relative order under reassigned ids.
func TestCompactionTriggersAtHalfTombstoneRatio(t *testing.T) {
	store, err := Create(testDBName(t), liftersTable())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		r := NewRecord(store.Table())
		r.AddInt("Squat", int32(i+1))
		require.NoError(t, store.Insert(r))
	}

	require.NoError(t, store.Remove(2))
	require.NoError(t, store.Remove(3))

	assert.Equal(t, uint32(2), store.RecordCount())
	assert.Equal(t, uint32(0), store.RemovedCount())

	found, err := store.SearchInt("Squat", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, uint32(1), found[0].GetID())

	found, err = store.SearchInt("Squat", 4)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, uint32(2), found[0].GetID())

	_, statErr := os.Stat(store.path() + tmpExt)
	assert.True(t, os.IsNotExist(statErr), "compaction scratch file must not survive a successful compaction")
}

func TestCompactionSurvivesStaleScratchFile(t *testing.T) {
	name := testDBName(t)
	store, err := Create(name, liftersTable())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		r := NewRecord(store.Table())
		require.NoError(t, store.Insert(r))
	}

	require.NoError(t, os.WriteFile(store.path()+tmpExt, []byte("stale"), 0o644))

	require.NoError(t, store.Remove(1))
	assert.Equal(t, uint32(1), store.RecordCount())
}

func TestLoadCountsTombstonesIntoRemovedCount(t *testing.T) {
	name := testDBName(t)
	store, err := Create(name, liftersTable())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		r := NewRecord(store.Table())
		require.NoError(t, store.Insert(r))
	}
	require.NoError(t, store.Remove(1))

	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), loaded.RemovedCount())
	assert.Equal(t, uint32(4), loaded.RecordCount())
}

func TestLoadRejectsMismatchedRecordSize(t *testing.T) {
	name := testDBName(t)
	store, err := Create(name, liftersTable())
	require.NoError(t, err)
	require.NoError(t, store.Insert(NewRecord(store.Table())))

	f, err := os.OpenFile(store.path(), os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.Seek(store.tableOffset()+4, io.SeekStart)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xFF, 0xFF, 0xFF, 0x7F}) // implausibly large record_size
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Load(name)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestMutatingWithoutLoadedTableReturnsErrNotLoaded(t *testing.T) {
	store := &Store{}
	assert.ErrorIs(t, store.Insert(NewRecord(nil)), ErrNotLoaded)
	assert.ErrorIs(t, store.Update(NewRecord(nil)), ErrNotLoaded)
	assert.ErrorIs(t, store.Remove(1), ErrNotLoaded)
}
