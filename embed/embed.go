// Package embed defines the embedding backend contract and ships two
// built-in encoders: an unsupervised trainable FastText-style encoder and a
// pre-trained hashing text encoder.
//
// Encoders are selected by configuration (ModelKind), not by subclassing, and
// are stateless per Embed call: a backend may be shared across datasets.
package embed

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotTrained is returned when a trainable encoder is used before Train.
	ErrNotTrained = errors.New("embedder has not been trained")

	// ErrEmptyCorpus is returned when Train is called with no records.
	ErrEmptyCorpus = errors.New("training corpus is empty")
)

// ModelKind selects the embedding model family for a dataset.
type ModelKind int

const (
	// ModelKindFastText is the unsupervised word-embedding family, trained
	// on the dataset's own records.
	ModelKindFastText ModelKind = iota

	// ModelKindText is the pre-trained contextual text encoder family,
	// usable without training.
	ModelKindText
)

// String returns the wire name of the model kind.
func (k ModelKind) String() string {
	switch k {
	case ModelKindFastText:
		return "FastText"
	case ModelKindText:
		return "Text"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// ParseModelKind parses a wire name into a ModelKind.
func ParseModelKind(s string) (ModelKind, error) {
	switch s {
	case "FastText":
		return ModelKindFastText, nil
	case "Text":
		return ModelKindText, nil
	default:
		return 0, fmt.Errorf("unknown model kind: %q", s)
	}
}

// Embedder produces fixed-dimension vectors for batches of raw text.
//
// Dimension is deterministic per encoder instance and never changes after
// construction, so all vectors of a dataset are comparable.
type Embedder interface {
	// Kind returns the model family of this encoder.
	Kind() ModelKind

	// Dimension returns the fixed output dimensionality.
	Dimension() int

	// Embed produces one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Trainable is an Embedder that must learn from a corpus before it can embed.
type Trainable interface {
	Embedder

	// Train fits the encoder on the given corpus. Calling Train again
	// refits from scratch.
	Train(ctx context.Context, corpus []string) error
}

// New creates an untrained encoder of the given kind with default options.
func New(kind ModelKind) (Embedder, error) {
	switch kind {
	case ModelKindFastText:
		return NewFastText(), nil
	case ModelKindText:
		return NewTextEncoder(), nil
	default:
		return nil, fmt.Errorf("unknown model kind: %v", kind)
	}
}
