package embed

import (
	"context"
	"hash/fnv"
)

// TextEncoderOptions contains configuration options for the text encoder.
type TextEncoderOptions struct {
	// Dimension is the output vector dimensionality.
	Dimension int
}

// DefaultTextEncoderOptions contains the default configuration options for
// the text encoder.
var DefaultTextEncoderOptions = TextEncoderOptions{
	Dimension: 384,
}

// TextEncoder is the pre-trained inference-only encoder variant. It maps
// token counts into a fixed-dimension space via signed feature hashing and
// L2-normalizes the result, so it needs no per-dataset training.
//
// Deterministic and safe for concurrent use.
type TextEncoder struct {
	opts TextEncoderOptions
}

// Compile-time check to ensure TextEncoder satisfies the Embedder contract.
var _ Embedder = (*TextEncoder)(nil)

// NewTextEncoder creates a new text encoder.
func NewTextEncoder(optFns ...func(o *TextEncoderOptions)) *TextEncoder {
	opts := DefaultTextEncoderOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return &TextEncoder{opts: opts}
}

// Kind returns ModelKindText.
func (t *TextEncoder) Kind() ModelKind { return ModelKindText }

// Dimension returns the fixed output dimensionality.
func (t *TextEncoder) Dimension() int { return t.opts.Dimension }

// Embed produces one vector per input text, in input order.
func (t *TextEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = t.embedOne(text)
	}
	return vectors, nil
}

func (t *TextEncoder) embedOne(text string) []float32 {
	vec := make([]float32, t.opts.Dimension)

	for _, token := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()

		idx := int(sum % uint64(t.opts.Dimension))
		// Sign trick keeps hash collisions from biasing the vector upward.
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	normalize(vec)
	return vec
}
