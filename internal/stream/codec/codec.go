package codec

import (
	"io"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/objection-go/internal/stream"
	"github.com/lk2023060901/objection-go/internal/stream/compressor"
	"github.com/lk2023060901/objection-go/internal/stream/crypto"
	"github.com/lk2023060901/objection-go/internal/stream/framer"
	"github.com/lk2023060901/objection-go/internal/stream/serializer"
	"github.com/lk2023060901/objection-go/pkg/log"
	"github.com/lk2023060901/objection-go/pkg/util/merr"
	"github.com/lk2023060901/objection-go/pkg/version"
)

// 帧标志位。
const (
	FlagCompressed uint8 = 1 << 0
	FlagEncrypted  uint8 = 1 << 1
)

// Codec 抽象了从对象到帧、以及从帧回到对象的完整流程。
//
// 写出：msg --> serializer --> [compress?] --> [encrypt?] --> framer.WriteFrame
//
// 读入：framer.ReadFrame --> [decrypt?] --> [decompress?] --> serializer --> msg
type Codec interface {
	// Encode 将对象编码并作为一帧写入 w。
	Encode(w io.Writer, msg any) error

	// Decode 读取一帧并解码到 msg，返回帧标志位。msg 为 nil 时只读取帧。
	Decode(r io.Reader, msg any) (uint8, error)

	// DecodeRaw 读取一帧并返回标志位与已解密、解压的负载。
	DecodeRaw(r io.Reader) (uint8, []byte, error)
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Framer     framer.Framer
	Serializer serializer.Serializer
	Compressor compressor.Compressor // 允许为 nil（内部使用 NopCompressor）
	Encryptor  crypto.Encryptor      // 允许为 nil（内部使用 NopEncryptor）

	EnableCompression bool
	EnableEncryption  bool
	// MinCompressSize 为触发压缩的最小负载字节数。
	MinCompressSize int
}

type codec struct {
	log.Binder

	framer     framer.Framer
	serializer serializer.Serializer
	compressor compressor.Compressor
	encryptor  crypto.Encryptor

	compress        bool
	encrypt         bool
	minCompressSize int
}

var _ Codec = (*codec)(nil)

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.Framer == nil {
		return nil, merr.WrapErrParameterInvalidMsg("codec: framer is nil")
	}
	if opts.Serializer == nil {
		return nil, merr.WrapErrParameterInvalidMsg("codec: serializer is nil")
	}

	c := &codec{
		framer:          opts.Framer,
		serializer:      opts.Serializer,
		compressor:      compressor.NopCompressor{},
		encryptor:       crypto.NopEncryptor{},
		compress:        opts.EnableCompression,
		encrypt:         opts.EnableEncryption,
		minCompressSize: opts.MinCompressSize,
	}
	if opts.Compressor != nil {
		c.compressor = opts.Compressor
	}
	if opts.Encryptor != nil {
		c.encryptor = opts.Encryptor
	}
	c.SetLogger(log.With(log.FieldComponent("stream")).WithRateGroup("stream.reject", 1, 30))
	return c, nil
}

func (c *codec) Encode(w io.Writer, msg any) error {
	if w == nil {
		return merr.WrapErrParameterInvalidMsg("codec: writer is nil")
	}
	if msg == nil {
		return merr.WrapErrParameterInvalidMsg("codec: msg is nil")
	}

	body, err := c.serializer.Marshal(msg)
	if err != nil {
		return wrapStage(err, stream.StageSerialize)
	}

	var flags uint8
	if c.compress && len(body) > 0 && len(body) >= c.minCompressSize {
		body, err = c.compressor.Compress(nil, body)
		if err != nil {
			return wrapStage(err, stream.StageCompress)
		}
		flags |= FlagCompressed
	}
	if c.encrypt && len(body) > 0 {
		flags |= FlagEncrypted
		body, err = c.encryptor.Encrypt(body, buildAAD(flags))
		if err != nil {
			return wrapStage(err, stream.StageEncrypt)
		}
	}

	if err := c.framer.WriteFrame(w, &framer.Frame{Flags: flags, Payload: body}); err != nil {
		return wrapStage(err, stream.StageWriteFrame)
	}
	return nil
}

func (c *codec) DecodeRaw(r io.Reader) (uint8, []byte, error) {
	if r == nil {
		return 0, nil, merr.WrapErrParameterInvalidMsg("codec: reader is nil")
	}
	frame, err := c.framer.ReadFrame(r)
	if err != nil {
		return 0, nil, wrapStage(err, stream.StageReadFrame)
	}
	data := frame.Payload

	if frame.Flags&FlagEncrypted != 0 {
		if !c.encrypt {
			return 0, nil, c.reject(frame.Flags, stream.StageDecrypt, "encrypted payload but encryption disabled")
		}
		if len(data) == 0 {
			return 0, nil, c.reject(frame.Flags, stream.StageDecrypt, "encrypted payload is empty")
		}
		data, err = c.encryptor.Decrypt(data, buildAAD(frame.Flags))
		if err != nil {
			return 0, nil, wrapStage(err, stream.StageDecrypt)
		}
	}

	if frame.Flags&FlagCompressed != 0 {
		if !c.compress {
			return 0, nil, c.reject(frame.Flags, stream.StageDecompress, "compressed payload but compression disabled")
		}
		if len(data) == 0 {
			return 0, nil, c.reject(frame.Flags, stream.StageDecompress, "compressed payload is empty")
		}
		data, err = c.compressor.Decompress(nil, data)
		if err != nil {
			return 0, nil, wrapStage(err, stream.StageDecompress)
		}
	}
	return frame.Flags, data, nil
}

func (c *codec) Decode(r io.Reader, msg any) (uint8, error) {
	flags, data, err := c.DecodeRaw(r)
	if err != nil {
		return 0, err
	}
	if msg != nil && len(data) > 0 {
		if err := c.serializer.Unmarshal(data, msg); err != nil {
			return 0, wrapStage(err, stream.StageDeserialize)
		}
	}
	return flags, nil
}

func (c *codec) reject(flags uint8, stage stream.Stage, reason string) error {
	c.Logger().RatedWarn(1, "reject frame", zap.Uint8("flags", flags), zap.Stringer("stage", stage), zap.String("reason", reason))
	return wrapStage(merr.WrapErrIoCorrupted(reason), stage)
}

func wrapStage(err error, stage stream.Stage) error {
	return errors.Wrapf(err, "stream %s", stage)
}

// buildAAD 将格式主版本与帧标志位编码为关联数据，使篡改标志位的帧无法通过验签。
func buildAAD(flags uint8) []byte {
	return []byte{uint8(version.WireFormat.Major), flags}
}
