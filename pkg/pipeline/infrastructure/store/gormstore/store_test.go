package gormstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/store"
	"github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/gormstore"
	_ "github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/gormstore/drivers/sqlite"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

func openStore(t *testing.T) *gormstore.Store {
	t.Helper()
	s, err := gormstore.Open(gormstore.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newRecord(stage, structureName, batchTag string) *model.JobRecord {
	return model.NewJobRecord(stage, map[string]string{
		model.MetaStructureName: structureName,
		model.MetaBatchTag:      batchTag,
		model.MetaJobInfo:       model.JobInfoMOFDiscovery,
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := gormstore.Open(gormstore.Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestPutAssignsSequence(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := newRecord(model.StageAnalyzeInitial, "s1", "b1")
	second := newRecord(model.StageValidateInitial, "s1", "b1")
	require.NoError(t, s.Put(ctx, first))
	require.NoError(t, s.Put(ctx, second))

	assert.Greater(t, first.Sequence, int64(0))
	assert.Greater(t, second.Sequence, first.Sequence)
}

func TestPutRejectsDuplicateID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r := newRecord(model.StageAnalyzeInitial, "s1", "b1")
	require.NoError(t, s.Put(ctx, r))

	dup := newRecord(model.StageAnalyzeInitial, "s1", "b1")
	dup.ID = r.ID
	err := s.Put(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrRecordExists)

	// The rejected write must not leave a second row behind.
	records, err := s.Query(ctx, store.Where(store.Eq("metadata."+model.MetaBatchTag, "b1")))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestQueryByBatchTagAndSequence(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	var pivot int64
	for i := 0; i < 3; i++ {
		r := newRecord(model.StageAnalyzeInitial, "s1", "b1")
		require.NoError(t, s.Put(ctx, r))
		if i == 0 {
			pivot = r.Sequence
		}
	}
	require.NoError(t, s.Put(ctx, newRecord(model.StageAnalyzeInitial, "s2", "other")))

	records, err := s.Query(ctx, store.Where(store.Eq("metadata."+model.MetaBatchTag, "b1")))
	require.NoError(t, err)
	assert.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].Sequence, records[i-1].Sequence)
	}

	records, err = s.Query(ctx, store.Where(
		store.Eq("metadata."+model.MetaBatchTag, "b1"),
		store.Gt("sequence", pivot),
	))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestQueryByArbitraryMetadata(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tagged := newRecord(model.StageAnalyzeInitial, "s1", "b1")
	tagged.Metadata["source"] = "core-mof"
	require.NoError(t, s.Put(ctx, tagged))
	require.NoError(t, s.Put(ctx, newRecord(model.StageAnalyzeInitial, "s2", "b1")))

	records, err := s.Query(ctx, store.Where(store.Eq("metadata.source", "core-mof")))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "s1", records[0].StructureName())
}

func TestRecordRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r := newRecord(model.StageValidateInitial, "s1", "b1")
	r.MarkAsCompleted([]byte(`{"is_mof":true,"probe":"N2"}`))
	require.NoError(t, s.Put(ctx, r))

	got, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, model.StageValidateInitial, got.Name)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.JSONEq(t, `{"is_mof":true,"probe":"N2"}`, string(got.Output))
	assert.Equal(t, "s1", got.StructureName())
}

func TestFindByIDNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.FindByID(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrRecordNotFound)
}
