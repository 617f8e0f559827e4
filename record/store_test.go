package record

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertRoundTrip(t *testing.T) {
	s := NewStore()

	records := []Record{
		{ID: 5, Text: "five"},
		{ID: 1, Text: "one"},
		{ID: 9, Text: "nine"},
	}

	result, err := s.Insert(context.Background(), records, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)
	assert.Empty(t, result.Failed)

	for _, r := range records {
		text, ok := s.Get(r.ID)
		require.True(t, ok, "id %d", r.ID)
		assert.Equal(t, r.Text, text)
	}

	assert.Equal(t, []uint64{1, 5, 9}, s.IDs())
}

func TestAssignIDs(t *testing.T) {
	records := AssignIDs([]string{"a", "b", "c"})

	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, uint64(i), r.ID)
	}
	assert.Equal(t, "b", records[1].Text)
}

func TestWithIDs(t *testing.T) {
	records, err := WithIDs([]uint64{3, 7}, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, Record{ID: 7, Text: "y"}, records[1])

	_, err = WithIDs([]uint64{1}, []string{"x", "y"})
	require.Error(t, err)
}

func TestInsertDuplicateIDsRejected(t *testing.T) {
	s := NewStore()

	_, err := s.Insert(context.Background(), []Record{{ID: 1, Text: "first"}}, 0)
	require.NoError(t, err)

	result, err := s.Insert(context.Background(), []Record{
		{ID: 1, Text: "again"},
		{ID: 2, Text: "second"},
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, uint64(1), result.Failed[0].ID)

	var dup *DuplicateIDError
	require.ErrorAs(t, result.Failed[0].Err, &dup)
	assert.Equal(t, uint64(1), dup.ID)

	// The original text is untouched.
	text, _ := s.Get(1)
	assert.Equal(t, "first", text)
}

func TestInsertDuplicateWithinBatch(t *testing.T) {
	s := NewStore()

	result, err := s.Insert(context.Background(), []Record{
		{ID: 1, Text: "a"},
		{ID: 1, Text: "b"},
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	require.Len(t, result.Failed, 1)

	text, _ := s.Get(1)
	assert.Equal(t, "a", text)
}

func TestInsertChunkFailureKeepsEarlierChunks(t *testing.T) {
	s := NewStore()

	_, err := s.Insert(context.Background(), []Record{{ID: 10, Text: "x"}}, 0)
	require.NoError(t, err)

	// Chunk 1 (ids 0,1) succeeds; chunk 2 contains the collision.
	records := []Record{
		{ID: 0, Text: "a"},
		{ID: 1, Text: "b"},
		{ID: 10, Text: "boom"},
		{ID: 11, Text: "c"},
	}
	result, err := s.Insert(context.Background(), records, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Inserted)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, uint64(10), result.Failed[0].ID)
	assert.Equal(t, 4, s.Len())
}

func TestInsertCancellation(t *testing.T) {
	s := NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := make([]Record, 100)
	for i := range records {
		records[i] = Record{ID: uint64(i), Text: fmt.Sprintf("r%d", i)}
	}

	_, err := s.Insert(ctx, records, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Len())
}

func TestClearIdempotent(t *testing.T) {
	s := NewStore()

	_, err := s.Insert(context.Background(), AssignIDs([]string{"a", "b"}), 0)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	s.Clear()
	assert.Zero(t, s.Len())

	// Clearing an empty store is a no-op.
	s.Clear()
	assert.Zero(t, s.Len())
}

func TestAllOrderedByID(t *testing.T) {
	s := NewStore()

	_, err := s.Insert(context.Background(), []Record{
		{ID: 42, Text: "later"},
		{ID: 7, Text: "earlier"},
	}, 0)
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, uint64(7), all[0].ID)
	assert.Equal(t, uint64(42), all[1].ID)
}
