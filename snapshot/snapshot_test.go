package snapshot

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vectora/blobstore"
	"github.com/hupe1980/vectora/codec"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Dataset:   "products",
		ModelKind: "FastText",
		Dimension: 4,
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Records: map[uint64]string{
			0: "red running shoe",
			1: "blue running shoe",
			2: "green tea kettle",
		},
		IDs: []uint64{0, 1, 2},
		Vectors: [][]float32{
			{0.1, 0.2, 0.3, 0.4},
			{0.1, 0.2, 0.3, 0.5},
			{0.9, 0.8, 0.7, 0.6},
		},
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(compression.String(), func(t *testing.T) {
			in := testSnapshot()

			var buf bytes.Buffer
			err := Write(&buf, in, func(o *Options) {
				o.Compression = compression
			})
			require.NoError(t, err)

			out, err := Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, in, out)
			assert.True(t, out.Trained())
		})
	}
}

func TestWriteReadWithJSONCodec(t *testing.T) {
	in := testSnapshot()

	var buf bytes.Buffer
	err := Write(&buf, in, func(o *Options) {
		o.Codec = codec.JSON{}
	})
	require.NoError(t, err)

	out, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUntrainedSnapshot(t *testing.T) {
	in := &Snapshot{
		Dataset:   "staging",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Records:   map[uint64]string{7: "only raw data"},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in))

	out, err := Read(&buf)
	require.NoError(t, err)
	assert.False(t, out.Trained())
	assert.Equal(t, in.Records, out.Records)
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a snapshot at all")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestReadDetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testSnapshot()))

	data := buf.Bytes()
	data[len(data)-1] ^= 0xFF

	_, err := Read(bytes.NewReader(data))
	var mismatch *ChecksumMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	in := testSnapshot()

	require.NoError(t, Save(ctx, store, "products/00001.snap", in))

	out, err := Load(ctx, store, "products/00001.snap")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(context.Background(), blobstore.NewMemoryStore(), "nope")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
