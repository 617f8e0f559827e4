package vectora

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vectora/blobstore"
	"github.com/hupe1980/vectora/job"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	src := New(WithBlobStore(store))
	defer src.Close()

	setupReady(t, src, "products")

	want, err := src.SimilarByIDs(ctx, "products", []uint64{0, 1, 2})
	require.NoError(t, err)

	blobName, err := src.SaveDataset(ctx, "products")
	require.NoError(t, err)
	assert.Contains(t, blobName, "products/")

	dst := New(WithBlobStore(store))
	defer dst.Close()

	require.NoError(t, dst.LoadDataset(ctx, "products"))
	require.True(t, dst.IsValid("products"))

	info, err := dst.Info("products")
	require.NoError(t, err)
	assert.Equal(t, "FastText", info.ModelKind)
	assert.Equal(t, 3, info.Records)
	assert.Equal(t, 3, info.IndexedVectors)

	got, err := dst.SimilarByIDs(ctx, "products", []uint64{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Text queries work too: the embedder is rebuilt from the stored corpus.
	results, err := dst.SimilarByData(ctx, "products", []string{"green tea kettle"}, func(o *QueryOptions) {
		o.TopK = 1
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), results[0].Neighbors[0].ID)
}

func TestSaveWithoutBlobStore(t *testing.T) {
	svc := New()
	defer svc.Close()

	setupReady(t, svc, "ds")

	_, err := svc.SaveDataset(context.Background(), "ds")
	assert.ErrorIs(t, err, ErrNoBlobStore)

	assert.ErrorIs(t, svc.LoadDataset(context.Background(), "ds"), ErrNoBlobStore)
}

func TestLoadIntoExistingName(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	svc := New(WithBlobStore(store))
	defer svc.Close()

	setupReady(t, svc, "ds")

	_, err := svc.SaveDataset(ctx, "ds")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.LoadDataset(ctx, "ds"), ErrDatasetExists)
}

func TestLoadMissingSnapshot(t *testing.T) {
	svc := New(WithBlobStore(blobstore.NewMemoryStore()))
	defer svc.Close()

	err := svc.LoadDataset(context.Background(), "nope")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestSaveUntrainedDataset(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	src := New(WithBlobStore(store))
	defer src.Close()

	_, err := src.InsertTexts(ctx, "staging", testTexts)
	require.NoError(t, err)

	_, err = src.SaveDataset(ctx, "staging")
	require.NoError(t, err)

	dst := New(WithBlobStore(store))
	defer dst.Close()

	require.NoError(t, dst.LoadDataset(ctx, "staging"))

	state, err := dst.Status("staging")
	require.NoError(t, err)
	require.Equal(t, StateDataLoaded, state)

	// The restored records train like the originals.
	j, err := dst.SetupDatabase(ctx, "staging")
	require.NoError(t, err)
	status, err := j.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, job.StatusSucceeded, status)

	results, err := dst.SimilarByIDs(ctx, "staging", []uint64{0}, func(o *QueryOptions) {
		o.TopK = 1
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), results[0].Neighbors[0].ID)
}

func TestSaveAdvancesLatestPointer(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	src := New(WithBlobStore(store))
	defer src.Close()

	_, err := src.InsertTexts(ctx, "ds", []string{"first"})
	require.NoError(t, err)
	_, err = src.SaveDataset(ctx, "ds")
	require.NoError(t, err)

	_, err = src.InsertTexts(ctx, "ds", []string{"second"})
	require.NoError(t, err)
	second, err := src.SaveDataset(ctx, "ds")
	require.NoError(t, err)

	names, err := store.List(ctx, "ds/")
	require.NoError(t, err)
	assert.Len(t, names, 3) // two snapshots plus the pointer

	dst := New(WithBlobStore(store))
	defer dst.Close()

	require.NoError(t, dst.LoadDataset(ctx, "ds"))

	info, err := dst.Info("ds")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Records, "pointer must resolve to %s", second)
}

func TestSaveWhileTraining(t *testing.T) {
	store := blobstore.NewMemoryStore()
	svc, j := blockedTraining(t, "ds")

	// blockedTraining builds its own service without a store; snapshot the
	// state guard with one wired in.
	svc.store = store

	_, err := svc.SaveDataset(context.Background(), "ds")

	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StateTraining, invalid.State)

	j.Cancel()
	_, _ = j.Wait(context.Background())
}

func TestDeleteRawDataThenSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	src := New(WithBlobStore(store))
	defer src.Close()

	setupReady(t, src, "ds")
	require.NoError(t, src.DeleteRawData(ctx, "ds"))

	_, err := src.SaveDataset(ctx, "ds")
	require.NoError(t, err)

	dst := New(WithBlobStore(store))
	defer dst.Close()

	require.NoError(t, dst.LoadDataset(ctx, "ds"))
	require.True(t, dst.IsValid("ds"))

	// The training corpus travels with the snapshot, so text queries still
	// work even though the raw records were deleted before saving.
	results, err := dst.SimilarByData(ctx, "ds", []string{"red running shoe"}, func(o *QueryOptions) {
		o.TopK = 1
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), results[0].Neighbors[0].ID)
}
