package embed

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// FastTextOptions contains configuration options for the FastText encoder.
type FastTextOptions struct {
	// Dimension is the output vector dimensionality.
	Dimension int

	// MinN and MaxN bound the character n-gram lengths used for subword
	// hashing. Words shorter than MinN still contribute a whole-word gram.
	MinN int
	MaxN int
}

// DefaultFastTextOptions contains the default configuration options for the
// FastText encoder.
var DefaultFastTextOptions = FastTextOptions{
	Dimension: 100,
	MinN:      3,
	MaxN:      6,
}

// FastText is an unsupervised subword-hashing encoder in the spirit of
// fastText. Train fits per-token inverse document frequencies on the
// dataset's own corpus; Embed averages idf-weighted subword vectors.
//
// The encoder is deterministic: the same corpus and text always produce the
// same vector. Safe for concurrent use after Train.
type FastText struct {
	opts FastTextOptions

	mu       sync.RWMutex
	idf      map[string]float32
	docCount int
	trained  bool
}

// Compile-time check to ensure FastText is trainable.
var _ Trainable = (*FastText)(nil)

// NewFastText creates a new untrained FastText encoder.
func NewFastText(optFns ...func(o *FastTextOptions)) *FastText {
	opts := DefaultFastTextOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return &FastText{opts: opts}
}

// Kind returns ModelKindFastText.
func (f *FastText) Kind() ModelKind { return ModelKindFastText }

// Dimension returns the fixed output dimensionality.
func (f *FastText) Dimension() int { return f.opts.Dimension }

// Trained reports whether Train has completed at least once.
func (f *FastText) Trained() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.trained
}

// Train fits inverse document frequencies on the corpus. Calling Train again
// refits from scratch.
func (f *FastText) Train(ctx context.Context, corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}

	df := make(map[string]int)
	for i, text := range corpus {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		seen := make(map[string]struct{})
		for _, token := range tokenize(text) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			df[token]++
		}
	}

	n := len(corpus)
	idf := make(map[string]float32, len(df))
	for token, count := range df {
		idf[token] = float32(math.Log(float64(n)/(1+float64(count))) + 1)
	}

	f.mu.Lock()
	f.idf = idf
	f.docCount = n
	f.trained = true
	f.mu.Unlock()

	return nil
}

// Embed produces one vector per input text, in input order.
// Returns ErrNotTrained before Train has completed.
func (f *FastText) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.RLock()
	idf := f.idf
	docCount := f.docCount
	trained := f.trained
	f.mu.RUnlock()

	if !trained {
		return nil, ErrNotTrained
	}

	// Weight for tokens never seen during training.
	unknownWeight := float32(math.Log(float64(docCount)+1) + 1)

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = f.embedOne(text, idf, unknownWeight)
	}
	return vectors, nil
}

func (f *FastText) embedOne(text string, idf map[string]float32, unknownWeight float32) []float32 {
	dim := f.opts.Dimension
	vec := make([]float32, dim)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	tokenVec := make([]float32, dim)
	var totalWeight float32
	for _, token := range tokens {
		weight, ok := idf[token]
		if !ok {
			weight = unknownWeight
		}

		clear(tokenVec)
		grams := subwords(token, f.opts.MinN, f.opts.MaxN)
		for _, gram := range grams {
			addHashVector(tokenVec, gram)
		}
		inv := weight / float32(len(grams))
		for j := range vec {
			vec[j] += tokenVec[j] * inv
		}
		totalWeight += weight
	}

	for j := range vec {
		vec[j] /= totalWeight
	}
	normalize(vec)
	return vec
}

// subwords returns the boundary-marked whole word plus its character n-grams
// of lengths minN..maxN.
func subwords(token string, minN, maxN int) []string {
	marked := "<" + token + ">"
	grams := []string{marked}

	runes := []rune(marked)
	for n := minN; n <= maxN; n++ {
		if n >= len(runes) {
			break
		}
		for i := 0; i+n <= len(runes); i++ {
			grams = append(grams, string(runes[i:i+n]))
		}
	}
	return grams
}

// addHashVector adds the deterministic pseudo-random basis vector of s to dst.
func addHashVector(dst []float32, s string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	state := h.Sum64()

	for j := range dst {
		state = splitmix64(state)
		// Map the top 53 bits onto [-1, 1).
		dst[j] += float32(state>>11)/float32(1<<52) - 1
	}
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	z := x
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	z *= 0x94d049bb133111eb
	z ^= z >> 31
	return z
}

func normalize(v []float32) {
	var norm2 float32
	for _, x := range v {
		norm2 += x * x
	}
	if norm2 == 0 {
		return
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
}
