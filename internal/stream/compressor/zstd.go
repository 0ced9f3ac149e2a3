package compressor

import (
	"github.com/klauspost/compress/zstd"

	"github.com/lk2023060901/objection-go/pkg/util/hardware"
	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

// ZstdCompressor 基于 klauspost/compress/zstd，持有独立的 encoder/decoder 实例。
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ Compressor = (*ZstdCompressor)(nil)

// NewZstdCompressor 创建一个 ZstdCompressor，并发度为 concurrency，<= 0 时取主机 CPU 核心数。
func NewZstdCompressor(concurrency int, maxDecodedSize uint64) (*ZstdCompressor, error) {
	if concurrency <= 0 {
		concurrency = hardware.GetCPUNum()
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithZeroFrames(true),
		zstd.WithEncoderConcurrency(concurrency),
	)
	if err != nil {
		return nil, err
	}
	decOpts := []zstd.DOption{zstd.WithDecoderConcurrency(concurrency)}
	if maxDecodedSize > 0 {
		decOpts = append(decOpts, zstd.WithDecoderMaxMemory(maxDecodedSize))
	}
	dec, err := zstd.NewReader(nil, decOpts...)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &ZstdCompressor{
		enc: enc,
		dec: dec,
	}, nil
}

func (c *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c == nil || c.enc == nil {
		return nil, zstd.ErrEncoderClosed
	}
	return c.enc.EncodeAll(src, dst[:0]), nil
}

func (c *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if c == nil || c.dec == nil {
		return nil, zstd.ErrDecoderClosed
	}
	out, err := c.dec.DecodeAll(src, dst[:0])
	if err != nil {
		return nil, merr.WrapErrIoCorrupted(err.Error(), "zstd decompress")
	}
	return out, nil
}

// Close 释放内部 encoder/decoder 持有的资源，再次使用将返回 ErrEncoderClosed/ErrDecoderClosed。
func (c *ZstdCompressor) Close() {
	if c == nil {
		return
	}
	if c.enc != nil {
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
}
