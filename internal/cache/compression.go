package cache

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

type CompressionOptions struct {
	// MinSize is the smallest payload worth compressing.
	MinSize int
	// Level is a zstd level, 1 fastest to 3 best.
	Level int
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{MinSize: 512, Level: 2}
}

// compressor pools zstd encoders and decoders.
type compressor struct {
	opts     CompressionOptions
	encoders sync.Pool
	decoders sync.Pool
}

func newCompressor(opts CompressionOptions) (*compressor, error) {
	level := zstd.EncoderLevelFromZstd(opts.Level)

	// Build once up front so bad options fail here, not inside a pool.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	c := &compressor{opts: opts}
	c.encoders.New = func() any {
		e, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
		return e
	}
	c.decoders.New = func() any {
		d, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return d
	}
	c.encoders.Put(enc)
	c.decoders.Put(dec)
	return c, nil
}

// compress returns the payload to store and whether it was compressed.
func (c *compressor) compress(content []byte) ([]byte, bool) {
	if len(content) < c.opts.MinSize {
		return content, false
	}
	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)

	out := enc.EncodeAll(content, make([]byte, 0, len(content)/2))
	if len(out) >= len(content) {
		return content, false
	}
	return out, true
}

func (c *compressor) decompress(payload []byte) ([]byte, error) {
	if len(payload) < len(zstdMagic) || !bytes.Equal(payload[:len(zstdMagic)], zstdMagic) {
		return payload, nil
	}
	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)
	return dec.DecodeAll(payload, nil)
}
