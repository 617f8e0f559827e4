package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"the quick brown fox",
	"jumps over the lazy dog",
	"pack my box with five dozen liquor jugs",
}

func TestParseModelKind(t *testing.T) {
	tests := []struct {
		input   string
		want    ModelKind
		wantErr bool
	}{
		{"FastText", ModelKindFastText, false},
		{"Text", ModelKindText, false},
		{"fasttext", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, err := ParseModelKind(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestNewByKind(t *testing.T) {
	ft, err := New(ModelKindFastText)
	require.NoError(t, err)
	assert.Equal(t, ModelKindFastText, ft.Kind())

	te, err := New(ModelKindText)
	require.NoError(t, err)
	assert.Equal(t, ModelKindText, te.Kind())

	_, err = New(ModelKind(99))
	require.Error(t, err)
}

func TestFastTextRequiresTraining(t *testing.T) {
	ft := NewFastText()
	assert.False(t, ft.Trained())

	_, err := ft.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, ErrNotTrained)

	require.NoError(t, ft.Train(context.Background(), corpus))
	assert.True(t, ft.Trained())

	vectors, err := ft.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Len(t, vectors[0], ft.Dimension())
}

func TestFastTextEmptyCorpus(t *testing.T) {
	ft := NewFastText()
	assert.ErrorIs(t, ft.Train(context.Background(), nil), ErrEmptyCorpus)
}

func TestFastTextDeterministic(t *testing.T) {
	ft1 := NewFastText()
	ft2 := NewFastText()
	require.NoError(t, ft1.Train(context.Background(), corpus))
	require.NoError(t, ft2.Train(context.Background(), corpus))

	v1, err := ft1.Embed(context.Background(), []string{"quick fox"})
	require.NoError(t, err)
	v2, err := ft2.Embed(context.Background(), []string{"quick fox"})
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
}

func TestFastTextSimilarTextsAreCloser(t *testing.T) {
	ft := NewFastText()
	require.NoError(t, ft.Train(context.Background(), corpus))

	vectors, err := ft.Embed(context.Background(), []string{
		"the quick brown fox",
		"a quick brown fox",
		"five dozen liquor jugs",
	})
	require.NoError(t, err)

	near := squaredL2(vectors[0], vectors[1])
	far := squaredL2(vectors[0], vectors[2])
	assert.Less(t, near, far)
}

func TestFastTextCustomDimension(t *testing.T) {
	ft := NewFastText(func(o *FastTextOptions) {
		o.Dimension = 16
	})
	require.NoError(t, ft.Train(context.Background(), corpus))

	vectors, err := ft.Embed(context.Background(), []string{"fox", "dog"})
	require.NoError(t, err)
	for _, v := range vectors {
		assert.Len(t, v, 16)
	}
}

func TestTextEncoder(t *testing.T) {
	te := NewTextEncoder()

	vectors, err := te.Embed(context.Background(), []string{"hello world", "hello world", "something else"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	for _, v := range vectors {
		assert.Len(t, v, te.Dimension())
	}

	// Deterministic without any training step.
	assert.Equal(t, vectors[0], vectors[1])
	assert.NotEqual(t, vectors[0], vectors[2])
}

func TestTextEncoderEmptyText(t *testing.T) {
	te := NewTextEncoder(func(o *TextEncoderOptions) {
		o.Dimension = 8
	})

	vectors, err := te.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vectors[0])
}

func TestEmbedCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	te := NewTextEncoder()
	_, err := te.Embed(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)

	ft := NewFastText()
	require.NoError(t, ft.Train(context.Background(), corpus))
	_, err = ft.Embed(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "42"}, tokenize("Hello, WORLD! 42"))
	assert.Empty(t, tokenize("...!!!"))
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
