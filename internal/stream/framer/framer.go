package framer

import (
	"encoding/binary"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

// Frame 为一帧数据：标志位与负载。
type Frame struct {
	Flags   uint8
	Payload []byte
}

// Framer 抽象了基于 Frame 的打包/解包能力。
//
// 约定：一帧数据的格式为 4 字节大端长度 + flags:u8 + payload，长度包含 flags 字节。
type Framer interface {
	// WriteFrame 将 Frame 打包为一帧并写入到 w 中。
	WriteFrame(w io.Writer, f *Frame) error

	// ReadFrame 从 r 中读取一帧数据。
	ReadFrame(r io.Reader) (*Frame, error)
}

// LengthPrefixedFramer 使用长度前缀（4 字节大端）作为帧边界。
type LengthPrefixedFramer struct {
	// MaxFrameSize 为允许的最大帧大小，单位字节，为 0 时使用默认值。
	MaxFrameSize uint32
}

const (
	defaultMaxFrameSize uint32 = 16 * 1024 * 1024 // 16MB
	headerSize                 = 4
	flagsSize                  = 1
)

var _ Framer = (*LengthPrefixedFramer)(nil)

// NewLengthPrefixedFramer 创建一个长度前缀帧编码器，maxFrameSize 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFrameSize uint32) *LengthPrefixedFramer {
	if maxFrameSize == 0 {
		maxFrameSize = defaultMaxFrameSize
	}
	return &LengthPrefixedFramer{
		MaxFrameSize: maxFrameSize,
	}
}

// WriteFrame 将 Frame 编码为长度前缀帧并写入。
func (f *LengthPrefixedFramer) WriteFrame(w io.Writer, frame *Frame) error {
	if frame == nil {
		return merr.WrapErrParameterInvalidMsg("framer: frame is nil")
	}
	length := uint64(flagsSize) + uint64(len(frame.Payload))
	if length > uint64(f.effectiveMaxSize()) {
		return merr.WrapErrParameterTooLarge("frame", int(length), int(f.effectiveMaxSize()))
	}

	var header [headerSize + flagsSize]byte
	binary.BigEndian.PutUint32(header[:headerSize], uint32(length))
	header[headerSize] = frame.Flags

	if _, err := w.Write(header[:]); err != nil {
		return merr.WrapErrIo("write frame header", err)
	}
	if len(frame.Payload) == 0 {
		return nil
	}
	if _, err := w.Write(frame.Payload); err != nil {
		return merr.WrapErrIo("write frame payload", err)
	}
	return nil
}

// ReadFrame 从流中读取一帧数据。返回的 Payload 归调用方所有。
func (f *LengthPrefixedFramer) ReadFrame(r io.Reader) (*Frame, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, merr.WrapErrIo("read frame header", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > f.effectiveMaxSize() {
		return nil, merr.WrapErrParameterTooLarge("frame", int(length), int(f.effectiveMaxSize()))
	}
	if length < flagsSize {
		return nil, merr.WrapErrIoCorrupted("frame without flags")
	}

	// 使用 ByteBuffer 池降低频繁 make 带来的分配与 GC 压力。
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if cap(buf.B) < int(length) {
		buf.B = make([]byte, int(length))
	} else {
		buf.B = buf.B[:int(length)]
	}
	if _, err := io.ReadFull(r, buf.B); err != nil {
		return nil, merr.WrapErrIo("read frame body", err)
	}

	frame := &Frame{Flags: buf.B[0]}
	if length > flagsSize {
		frame.Payload = append([]byte(nil), buf.B[flagsSize:]...)
	}
	return frame, nil
}

func (f *LengthPrefixedFramer) effectiveMaxSize() uint32 {
	if f == nil || f.MaxFrameSize == 0 {
		return defaultMaxFrameSize
	}
	return f.MaxFrameSize
}
