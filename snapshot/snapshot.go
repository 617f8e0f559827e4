// Package snapshot persists datasets to a blob store.
//
// A snapshot carries everything needed to restore a dataset: its records,
// the embedding model kind, and (for trained datasets) the raw vectors, so
// the index is rebuilt on load without re-embedding. Files are
// self-describing: the header records format version, codec name, and
// compression, and the payload is checksummed.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/vectora/blobstore"
	"github.com/hupe1980/vectora/codec"
)

var (
	magic         = [4]byte{'V', 'T', 'S', '1'}
	formatVersion = uint16(1)
)

// Compression selects the payload compression of a snapshot file.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// String returns a string representation of the Compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// ChecksumMismatchError is returned when a snapshot payload fails
// verification.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("snapshot checksum mismatch: expected %08x, got %08x", e.Expected, e.Actual)
}

// Snapshot is the persisted form of a dataset.
//
// Records always travel with the snapshot. IDs and Vectors are present only
// for trained datasets; restoring rebuilds the index directly from them.
type Snapshot struct {
	Dataset   string    `json:"dataset"`
	ModelKind string    `json:"model_kind,omitempty"`
	Dimension int       `json:"dimension,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Records map[uint64]string `json:"records"`

	IDs     []uint64    `json:"ids,omitempty"`
	Vectors [][]float32 `json:"vectors,omitempty"`
}

// Trained reports whether the snapshot carries a trained index.
func (s *Snapshot) Trained() bool {
	return len(s.IDs) > 0 && len(s.Vectors) == len(s.IDs)
}

// Options configure snapshot writing.
type Options struct {
	// Codec marshals the payload. Defaults to codec.Default.
	Codec codec.Codec

	// Compression of the payload. Defaults to CompressionZstd.
	Compression Compression
}

// DefaultOptions returns the default snapshot write options.
func DefaultOptions() Options {
	return Options{
		Codec:       codec.Default,
		Compression: CompressionZstd,
	}
}

// Write encodes the snapshot to w.
//
// Layout:
//  1. header: magic, version, compression, codec name
//  2. payload checksum (CRC32 of the compressed payload)
//  3. payload length
//  4. payload (codec-marshaled, compressed)
func Write(w io.Writer, snap *Snapshot, optFns ...func(o *Options)) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}

	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	codecName := opts.Codec.Name()
	if len(codecName) > 0xFF {
		return fmt.Errorf("snapshot codec name too long: %d", len(codecName))
	}

	plain, err := opts.Codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	payload, err := compress(plain, opts.Compression)
	if err != nil {
		return err
	}

	// Header (8 bytes + codec name)
	// [0:4] magic
	// [4:6] version
	// [6]   compression
	// [7]   codec name len
	var hdr [8]byte
	copy(hdr[0:4], magic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], formatVersion)
	hdr[6] = uint8(opts.Compression)
	hdr[7] = uint8(len(codecName))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte(codecName)); err != nil {
		return err
	}

	var trailer [12]byte
	binary.LittleEndian.PutUint32(trailer[0:4], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint64(trailer[4:12], uint64(len(payload)))
	if _, err := w.Write(trailer[:]); err != nil {
		return err
	}

	_, err = w.Write(payload)
	return err
}

// Read decodes a snapshot from r, selecting codec and compression from the
// header.
func Read(r io.Reader) (*Snapshot, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	if [4]byte(hdr[0:4]) != magic {
		return nil, fmt.Errorf("unsupported snapshot format: bad magic")
	}
	if ver := binary.LittleEndian.Uint16(hdr[4:6]); ver != formatVersion {
		return nil, fmt.Errorf("unsupported snapshot format version: %d", ver)
	}

	compression := Compression(hdr[6])

	nameBytes := make([]byte, int(hdr[7]))
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return nil, fmt.Errorf("read snapshot codec name: %w", err)
	}

	c, ok := codec.ByName(string(nameBytes))
	if !ok {
		return nil, fmt.Errorf("unsupported snapshot codec %q", string(nameBytes))
	}

	var trailer [12]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return nil, fmt.Errorf("read snapshot payload header: %w", err)
	}
	checksum := binary.LittleEndian.Uint32(trailer[0:4])
	length := binary.LittleEndian.Uint64(trailer[4:12])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read snapshot payload: %w", err)
	}

	if actual := crc32.ChecksumIEEE(payload); actual != checksum {
		return nil, &ChecksumMismatchError{Expected: checksum, Actual: actual}
	}

	plain, err := decompress(payload, compression)
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := c.Unmarshal(plain, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot to a blob store under the given name.
func Save(ctx context.Context, store blobstore.BlobStore, name string, snap *Snapshot, optFns ...func(o *Options)) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	if err := Write(w, snap, optFns...); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Load reads a snapshot from a blob store.
func Load(ctx context.Context, store blobstore.BlobStore, name string) (*Snapshot, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = blob.Close() }()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return nil, err
	}
	return Read(bytes.NewReader(data))
}

func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("init zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot compression %d", uint8(c))
	}
}

func decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("init zstd decoder: %w", err)
		}
		defer dec.Close()
		plain, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return plain, nil
	case CompressionLZ4:
		plain, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return plain, nil
	default:
		return nil, fmt.Errorf("unsupported snapshot compression %d", uint8(c))
	}
}
