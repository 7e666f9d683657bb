package inmemory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/store"
	"github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/inmemory"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

func record(stage, structureName, batchTag string) *model.JobRecord {
	return model.NewJobRecord(stage, map[string]string{
		model.MetaStructureName: structureName,
		model.MetaBatchTag:      batchTag,
		model.MetaJobInfo:       model.JobInfoMOFDiscovery,
	})
}

func TestPutAssignsMonotonicSequence(t *testing.T) {
	s := inmemory.NewStore()
	ctx := context.Background()

	r1 := record(model.StageAnalyzeInitial, "s1", "b1")
	r2 := record(model.StageValidateInitial, "s1", "b1")
	require.NoError(t, s.Put(ctx, r1))
	require.NoError(t, s.Put(ctx, r2))

	assert.Greater(t, r2.Sequence, r1.Sequence)
}

func TestPutRejectsDuplicateID(t *testing.T) {
	s := inmemory.NewStore()
	ctx := context.Background()

	r := record(model.StageAnalyzeInitial, "s1", "b1")
	require.NoError(t, s.Put(ctx, r))

	err := s.Put(ctx, r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrRecordExists))
}

func TestQueryByMetadata(t *testing.T) {
	s := inmemory.NewStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, record(model.StageAnalyzeInitial, "s1", "b1")))
	require.NoError(t, s.Put(ctx, record(model.StageAnalyzeInitial, "s2", "b1")))
	require.NoError(t, s.Put(ctx, record(model.StageAnalyzeInitial, "s3", "b2")))

	got, err := s.Query(ctx, store.Where(store.Eq("metadata."+model.MetaBatchTag, "b1")))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.Query(ctx, store.Where(
		store.Eq("metadata."+model.MetaBatchTag, "b1"),
		store.Eq("metadata."+model.MetaStructureName, "s2"),
	))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s2", got[0].StructureName())
}

func TestQueryBySequence(t *testing.T) {
	s := inmemory.NewStore()
	ctx := context.Background()

	r1 := record(model.StageAnalyzeInitial, "s1", "b1")
	r2 := record(model.StageValidateInitial, "s1", "b1")
	r3 := record(model.StageRelax, "s1", "b1")
	for _, r := range []*model.JobRecord{r1, r2, r3} {
		require.NoError(t, s.Put(ctx, r))
	}

	got, err := s.Query(ctx, store.Where(store.Gt("sequence", r1.Sequence)))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// ordered by sequence
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Sequence, got[i-1].Sequence)
	}
}

func TestQueryByName(t *testing.T) {
	s := inmemory.NewStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, record(model.StageAnalyzeInitial, "s1", "b1")))
	require.NoError(t, s.Put(ctx, record(model.StageRelax, "s1", "b1")))

	got, err := s.Query(ctx, store.Where(store.Eq("name", model.StageRelax)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.StageRelax, got[0].Name)
}

func TestFindByID(t *testing.T) {
	s := inmemory.NewStore()
	ctx := context.Background()

	r := record(model.StageAnalyzeInitial, "s1", "b1")
	require.NoError(t, s.Put(ctx, r))

	got, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	_, err = s.FindByID(ctx, "no-such-id")
	assert.True(t, errors.Is(err, exception.ErrRecordNotFound))
}

func TestStoreReturnsCopies(t *testing.T) {
	s := inmemory.NewStore()
	ctx := context.Background()

	r := record(model.StageAnalyzeInitial, "s1", "b1")
	require.NoError(t, s.Put(ctx, r))

	got, err := s.Query(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got[0].Metadata[model.MetaStructureName] = "mutated"
	again, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "s1", again.StructureName())
}
